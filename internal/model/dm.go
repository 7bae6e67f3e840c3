package model

import "time"

// Conversation is an unordered pair of participants. At most one row exists
// per pair; lookups check both orderings.
type Conversation struct {
	ID               string    `json:"id"`
	Participant1ID   string    `json:"participant1_id"`
	Participant1Name string    `json:"participant1_name"`
	Participant2ID   string    `json:"participant2_id"`
	Participant2Name string    `json:"participant2_name"`
	LastMessageAt    time.Time `json:"last_message_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// Other returns the participant opposite to userID.
func (c *Conversation) Other(userID string) string {
	if c.Participant1ID == userID {
		return c.Participant2ID
	}
	return c.Participant1ID
}

// Has reports whether userID is one of the two participants.
func (c *Conversation) Has(userID string) bool {
	return c.Participant1ID == userID || c.Participant2ID == userID
}

type DirectMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
