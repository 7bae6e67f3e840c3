package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communityhub/internal/storage"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	srv := miniredis.RunT(t)
	c, err := New(context.Background(), "redis://"+srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	require.NoError(t, c.SetSession(ctx, "s1", "u1", "alice"))

	userID, username, err := c.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "alice", username)
}

func TestUnknownSession(t *testing.T) {
	c := testClient(t)
	userID, username, err := c.GetSession(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, userID)
	assert.Empty(t, username)
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)
	require.NoError(t, c.SetSession(ctx, "s1", "u1", "alice"))
	require.NoError(t, c.DeleteSession(ctx, "s1"))

	userID, _, err := c.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, userID)
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	c, err := New(ctx, "redis://"+srv.Addr())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SetSession(ctx, "s1", "u1", "alice"))
	srv.FastForward(storage.SessionTTL + 1)

	userID, _, err := c.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, userID)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), "not-a-url")
	assert.Error(t, err)
}
