// Package memory is the in-process session store used with -dev, so the hub
// runs without Redis. Sessions are lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/communityhub/internal/storage"
)

type item struct {
	userID   string
	username string
	exp      time.Time
}

type Client struct {
	mu       sync.RWMutex
	sessions map[string]item
}

func New() *Client {
	return &Client{sessions: make(map[string]item)}
}

func (c *Client) Close() error { return nil }

func (c *Client) SetSession(ctx context.Context, sessionID, userID, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = item{userID: userID, username: username, exp: time.Now().Add(storage.SessionTTL)}
	return nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (string, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.sessions[sessionID]
	if !ok || time.Now().After(v.exp) {
		return "", "", nil
	}
	return v.userID, v.username, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
	return nil
}
