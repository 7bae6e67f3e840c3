package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, err := tm.Issue("user-1", "alice", "hub-abc-12345678")
	require.NoError(t, err)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "hub-abc-12345678", claims.PortableID)
	assert.Equal(t, tokenIssuer, claims.Issuer)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a", time.Hour).Issue("user-1", "alice", "p")
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", -time.Minute)
	token, err := tm.Issue("user-1", "alice", "p")
	require.NoError(t, err)

	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	_, err := tm.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIDs(t *testing.T) {
	sid, err := NewSessionID()
	require.NoError(t, err)
	assert.Len(t, sid, 64)

	pid, err := NewPortableID()
	require.NoError(t, err)
	assert.True(t, len(pid) > 4 && pid[:4] == "hub-")

	key, err := NewBotKey()
	require.NoError(t, err)
	assert.Len(t, key, 4+64)
	assert.Equal(t, "bot_", key[:4])
}
