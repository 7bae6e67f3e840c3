// Package storage defines the session store behind the ambient cookie
// identity scheme. Implementations: redis.Client, memory.Client (for -dev
// without Redis).
package storage

import (
	"context"
	"time"
)

// SessionTTL bounds how long an ambient session stays valid without renewal.
const SessionTTL = 7 * 24 * time.Hour

// SessionStore maps a session id to the authenticated user. The store is the
// authority for the cookie path: a missing or expired entry rejects the
// handshake outright.
type SessionStore interface {
	SetSession(ctx context.Context, sessionID, userID, username string) error
	// GetSession returns ("", "", nil) when the session is unknown or expired.
	GetSession(ctx context.Context, sessionID string) (userID, username string, err error)
	DeleteSession(ctx context.Context, sessionID string) error
	Close() error
}
