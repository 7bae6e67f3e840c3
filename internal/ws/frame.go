package ws

import (
	"time"

	"github.com/communityhub/internal/model"
)

type EventType string

// Client-to-server frame types.
const (
	EventJoin          EventType = "join"
	EventJoinChannel   EventType = "join_channel"
	EventLeaveChannel  EventType = "leave_channel"
	EventSwitchChannel EventType = "switch_channel"
	EventSendMessage   EventType = "send_message"
	// EventMessage is the legacy shorthand for send_message without a
	// channel_id. Valid only while the connection is joined to exactly
	// one channel.
	EventMessage        EventType = "message"
	EventEditMessage    EventType = "edit_message"
	EventDeleteMessage  EventType = "delete_message"
	EventAddReaction    EventType = "add_reaction"
	EventRemoveReaction EventType = "remove_reaction"
	EventSendDM         EventType = "send_dm"
)

// Server-to-client frame types. EventTyping travels both ways.
const (
	EventAuthSuccess     EventType = "auth_success"
	EventError           EventType = "error"
	EventHistory         EventType = "history"
	EventJoinedChannel   EventType = "joined_channel"
	EventLeftChannel     EventType = "left_channel"
	EventPresenceUpdate  EventType = "presence_update"
	EventNewMessage      EventType = "new_message"
	EventMessageEdited   EventType = "message_edited"
	EventMessageDeleted  EventType = "message_deleted"
	EventTyping          EventType = "typing"
	EventReactionAdded   EventType = "reaction_added"
	EventReactionRemoved EventType = "reaction_removed"
	EventMessagePinned   EventType = "message_pinned"
	EventMessageUnpinned EventType = "message_unpinned"
	EventNewDM           EventType = "new_dm"
)

// IncomingFrame is what the client sends to the server. One flat envelope
// for every frame type; handlers read the fields they need.
type IncomingFrame struct {
	Type EventType `json:"type"`

	// For join (bearer-token auth)
	Token string `json:"token,omitempty"`

	// For channel operations and sends
	ChannelID string `json:"channel_id,omitempty"`
	Content   string `json:"content,omitempty"`
	ReplyToID string `json:"reply_to_id,omitempty"`

	Attachments []model.Attachment `json:"attachments,omitempty"`

	// For edit/delete/reactions
	MessageID string `json:"message_id,omitempty"`
	Emoji     string `json:"emoji,omitempty"`

	// For direct messages
	ConversationID string `json:"conversation_id,omitempty"`
}

// OutgoingFrame is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingFrame struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// ErrorFrame reports a rejected frame without closing the connection.
func ErrorFrame(msg string) OutgoingFrame {
	return OutgoingFrame{Type: EventError, Payload: ErrorPayload{Message: msg}}
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// AuthSuccessPayload confirms a token join.
type AuthSuccessPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// HistoryPayload carries the recent-message window pushed after a channel
// join or switch. Messages are in chronological order.
type HistoryPayload struct {
	ChannelID string          `json:"channel_id"`
	Messages  []model.Message `json:"messages"`
}

// JoinedChannelPayload confirms channel membership on this connection.
type JoinedChannelPayload struct {
	ChannelID string `json:"channel_id"`
}

// PresencePayload is broadcast to a channel when a user's availability
// there changes.
type PresencePayload struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Online    bool   `json:"online"`
}

// MessageEditedPayload is broadcast when a message is edited.
type MessageEditedPayload struct {
	MessageID string    `json:"message_id"`
	ChannelID string    `json:"channel_id"`
	Content   string    `json:"content"`
	EditedAt  time.Time `json:"edited_at"`
}

// MessageDeletedPayload is broadcast when a message is deleted.
type MessageDeletedPayload struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
}

// ReactionPayload is broadcast when a reaction is added or removed.
type ReactionPayload struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Emoji     string `json:"emoji"`
}

// PinPayload is broadcast when a message is pinned or unpinned.
type PinPayload struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	PinnedBy  string `json:"pinned_by,omitempty"`
}

// TypingPayload is relayed to everyone else in the channel.
type TypingPayload struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
}
