package model

import "time"

type Poll struct {
	ID            string     `json:"id"`
	ChannelID     string     `json:"channel_id"`
	CreatorID     string     `json:"creator_id"`
	CreatorName   string     `json:"creator_name"`
	Question      string     `json:"question"`
	Options       []string   `json:"options"`
	AllowMultiple bool       `json:"allow_multiple"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`

	Votes []PollVote `json:"votes,omitempty"`
}

type PollVote struct {
	PollID      string    `json:"poll_id"`
	UserID      string    `json:"user_id"`
	OptionIndex int       `json:"option_index"`
	CreatedAt   time.Time `json:"created_at"`
}
