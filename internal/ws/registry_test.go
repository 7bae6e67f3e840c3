package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(userID string) *Client {
	return NewClient(nil, nil, userID, "user-"+userID)
}

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry()
	c := testClient("u1")

	r.Add(c)
	assert.Equal(t, 1, r.Total())
	assert.True(t, r.UserOnline("u1"))

	left, last := r.Remove(c)
	assert.Empty(t, left)
	assert.True(t, last)
	assert.Equal(t, 0, r.Total())
	assert.False(t, r.UserOnline("u1"))

	// removing again is a no-op
	_, last = r.Remove(c)
	assert.False(t, last)
	assert.Equal(t, 0, r.Total())
}

func TestRegistryAddIdempotent(t *testing.T) {
	r := NewRegistry()
	c := testClient("u1")

	r.Add(c)
	r.Join("ch1", c)
	r.Add(c)

	assert.Equal(t, 1, r.Total())
	assert.True(t, r.InChannel("ch1", c), "repeat add keeps channel memberships")

	r.Remove(c)
	assert.Equal(t, 0, r.Total())
	assert.Empty(t, r.AllClients())
	assert.False(t, r.UserOnline("u1"))
}

func TestRegistryMultipleConnections(t *testing.T) {
	r := NewRegistry()
	a := testClient("u1")
	b := testClient("u1")
	r.Add(a)
	r.Add(b)

	_, last := r.Remove(a)
	assert.False(t, last, "user still has a live connection")
	assert.True(t, r.UserOnline("u1"))

	_, last = r.Remove(b)
	assert.True(t, last)
	assert.False(t, r.UserOnline("u1"))
}

func TestRegistryJoinLeave(t *testing.T) {
	r := NewRegistry()
	c := testClient("u1")
	r.Add(c)

	assert.True(t, r.Join("ch1", c))
	assert.False(t, r.Join("ch1", c), "second join is a no-op")
	assert.True(t, r.InChannel("ch1", c))
	assert.ElementsMatch(t, []string{"ch1"}, r.ChannelsOf(c))
	assert.Len(t, r.ChannelClients("ch1"), 1)

	assert.True(t, r.Leave("ch1", c))
	assert.False(t, r.Leave("ch1", c), "second leave is a no-op")
	assert.False(t, r.InChannel("ch1", c))
	assert.Empty(t, r.ChannelClients("ch1"))
}

func TestRegistryJoinWithoutAdd(t *testing.T) {
	r := NewRegistry()
	c := testClient("u1")

	assert.False(t, r.Join("ch1", c))
	assert.False(t, r.InChannel("ch1", c))
}

func TestRegistryLeaveAll(t *testing.T) {
	r := NewRegistry()
	c := testClient("u1")
	r.Add(c)
	r.Join("ch1", c)
	r.Join("ch2", c)

	left := r.LeaveAll(c)
	assert.ElementsMatch(t, []string{"ch1", "ch2"}, left)
	assert.Empty(t, r.ChannelsOf(c))
	assert.Empty(t, r.ChannelClients("ch1"))
	assert.Empty(t, r.ChannelClients("ch2"))

	assert.Nil(t, r.LeaveAll(c))
}

func TestRegistryRemoveReportsChannels(t *testing.T) {
	r := NewRegistry()
	a := testClient("u1")
	b := testClient("u2")
	r.Add(a)
	r.Add(b)
	r.Join("ch1", a)
	r.Join("ch1", b)
	r.Join("ch2", a)

	left, last := r.Remove(a)
	assert.ElementsMatch(t, []string{"ch1", "ch2"}, left)
	assert.True(t, last)

	// ch1 still has b; ch2 was pruned
	require.Len(t, r.ChannelClients("ch1"), 1)
	assert.Empty(t, r.ChannelClients("ch2"))
}

func TestRegistryUserClients(t *testing.T) {
	r := NewRegistry()
	a := testClient("u1")
	b := testClient("u1")
	c := testClient("u2")
	r.Add(a)
	r.Add(b)
	r.Add(c)

	assert.Len(t, r.UserClients("u1"), 2)
	assert.Len(t, r.UserClients("u2"), 1)
	assert.Empty(t, r.UserClients("u3"))
	assert.Len(t, r.AllClients(), 3)
}
