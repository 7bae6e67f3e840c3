package model

import "time"

// Member roles. Privileged roles are a strict superset of member capabilities.
const (
	RoleOwner     = "owner"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleMember    = "member"
)

// PrivilegedRole reports whether the role carries moderation capabilities.
func PrivilegedRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

type Community struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	OwnerID     string    `json:"owner_id"`
	IsVerified  bool      `json:"is_verified"`
	IsPublic    bool      `json:"is_public"`
	// MemberCount is maintained as a running counter by join/leave, never
	// recomputed per query.
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type ChannelType string

const (
	ChannelTypeChat         ChannelType = "chat"
	ChannelTypeAnnouncement ChannelType = "announcement"
)

type Channel struct {
	ID          string      `json:"id"`
	CommunityID string      `json:"community_id"`
	Name        string      `json:"name"`
	Type        ChannelType `json:"type"`
	Position    int         `json:"position"`
	// IsLocked channels reject member-authored sends; privileged roles and
	// bots may still post.
	IsLocked    bool      `json:"is_locked"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type Member struct {
	CommunityID string    `json:"community_id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	IsOnline    bool      `json:"is_online"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Bot authors messages attributed to itself rather than to any human member.
// Its API key is a long-lived secret distinct from user credentials.
type Bot struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"community_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	APIKey      string    `json:"-"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}
