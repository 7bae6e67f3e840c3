package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := New()

	require.NoError(t, c.SetSession(ctx, "s1", "u1", "alice"))

	userID, username, err := c.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "alice", username)
}

func TestUnknownSession(t *testing.T) {
	c := New()
	userID, username, err := c.GetSession(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, userID)
	assert.Empty(t, username)
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	c := New()
	require.NoError(t, c.SetSession(ctx, "s1", "u1", "alice"))
	require.NoError(t, c.DeleteSession(ctx, "s1"))

	userID, _, err := c.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, userID)
}

func TestExpiredSession(t *testing.T) {
	ctx := context.Background()
	c := New()
	require.NoError(t, c.SetSession(ctx, "s1", "u1", "alice"))

	// Force the entry past its deadline instead of waiting out the TTL.
	c.mu.Lock()
	v := c.sessions["s1"]
	v.exp = time.Now().Add(-time.Second)
	c.sessions["s1"] = v
	c.mu.Unlock()

	userID, _, err := c.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, userID)
}
