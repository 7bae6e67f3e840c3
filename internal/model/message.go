package model

import "time"

type Message struct {
	ID        string     `json:"id"`
	ChannelID string     `json:"channel_id"`
	UserID    string     `json:"user_id"`
	Username  string     `json:"username"`
	Content   string     `json:"content"`
	IsBot     bool       `json:"is_bot"`
	ReplyToID *string    `json:"reply_to_id,omitempty"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	// Hydrated for history reads; nil/empty on the bare record.
	ReplyTo     *ReplyPreview   `json:"reply_to,omitempty"`
	Reactions   []ReactionGroup `json:"reactions,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
}

// ReplyPreview is the one-level reply reference attached to history reads.
// Replies do not chain transitively for display.
type ReplyPreview struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Content  string `json:"content"`
}

type Attachment struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	Filename  string `json:"filename,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

type Reaction struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionGroup is aggregated reaction info for display.
type ReactionGroup struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

type PinnedMessage struct {
	MessageID  string    `json:"message_id"`
	ChannelID  string    `json:"channel_id"`
	PinnedByID string    `json:"pinned_by_id"`
	PinnedAt   time.Time `json:"pinned_at"`
	Message    *Message  `json:"message,omitempty"`
}
