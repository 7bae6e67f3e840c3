package ws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHub() *Hub {
	return NewHub(nil, nil, nil, nil, nil, nil, nil, 0, nil)
}

// recvFrame pulls the next frame off the client's send buffer.
func recvFrame(t *testing.T, c *Client) OutgoingFrame {
	t.Helper()
	select {
	case frame := <-c.send:
		return frame
	default:
		t.Fatal("expected a frame on the send buffer")
		return OutgoingFrame{}
	}
}

func assertErrorFrame(t *testing.T, c *Client, msg string) {
	t.Helper()
	frame := recvFrame(t, c)
	require.Equal(t, EventError, frame.Type)
	payload, ok := frame.Payload.(ErrorPayload)
	require.True(t, ok)
	assert.Equal(t, msg, payload.Message)
}

func isClosed(c *Client) bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func TestPendingClientMustJoinFirst(t *testing.T) {
	h := testHub()
	c := NewPendingClient(h, nil)

	h.HandleFrame(context.Background(), c, IncomingFrame{Type: EventSendMessage, ChannelID: "ch1", Content: "hi"})

	assertErrorFrame(t, c, "authentication required")
	assert.True(t, isClosed(c))
}

func TestPendingJoinWithoutToken(t *testing.T) {
	h := testHub()
	c := NewPendingClient(h, nil)

	h.HandleFrame(context.Background(), c, IncomingFrame{Type: EventJoin})

	assertErrorFrame(t, c, "token required")
	assert.True(t, isClosed(c))
}

func TestUnknownFrameKeepsConnection(t *testing.T) {
	h := testHub()
	c := NewClient(h, nil, "u1", "alice")

	h.HandleFrame(context.Background(), c, IncomingFrame{Type: "bogus"})

	assertErrorFrame(t, c, "unknown frame type")
	assert.False(t, isClosed(c))
}

func TestRepeatedJoinAcknowledged(t *testing.T) {
	h := testHub()
	c := NewClient(h, nil, "u1", "alice")

	h.HandleFrame(context.Background(), c, IncomingFrame{Type: EventJoin})

	frame := recvFrame(t, c)
	require.Equal(t, EventAuthSuccess, frame.Type)
	payload, ok := frame.Payload.(AuthSuccessPayload)
	require.True(t, ok)
	assert.Equal(t, "u1", payload.UserID)
	assert.Equal(t, "alice", payload.Username)
	assert.False(t, isClosed(c))
}

func TestSendMessageValidation(t *testing.T) {
	h := testHub()
	c := NewClient(h, nil, "u1", "alice")
	h.registry.Add(c)

	tests := []struct {
		name    string
		frame   IncomingFrame
		wantErr string
	}{
		{
			name:    "missing channel",
			frame:   IncomingFrame{Type: EventSendMessage, Content: "hi"},
			wantErr: "channel_id required",
		},
		{
			name:    "empty content",
			frame:   IncomingFrame{Type: EventSendMessage, ChannelID: "ch1", Content: "   "},
			wantErr: "content required",
		},
		{
			name:    "too long",
			frame:   IncomingFrame{Type: EventSendMessage, ChannelID: "ch1", Content: longContent(2001)},
			wantErr: "message too long",
		},
		{
			name:    "not joined",
			frame:   IncomingFrame{Type: EventSendMessage, ChannelID: "ch1", Content: "hi"},
			wantErr: "join the channel first",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.HandleFrame(context.Background(), c, tt.frame)
			assertErrorFrame(t, c, tt.wantErr)
		})
	}
}

func longContent(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}

func TestLegacyMessageNeedsSingleChannel(t *testing.T) {
	h := testHub()
	c := NewClient(h, nil, "u1", "alice")
	h.registry.Add(c)

	// Not joined anywhere: the target channel is ambiguous.
	h.HandleFrame(context.Background(), c, IncomingFrame{Type: EventMessage, Content: "hi"})
	assertErrorFrame(t, c, "ambiguous channel, use send_message with channel_id")

	// Joined to two channels: still ambiguous.
	h.registry.Join("ch1", c)
	h.registry.Join("ch2", c)
	h.HandleFrame(context.Background(), c, IncomingFrame{Type: EventMessage, Content: "hi"})
	assertErrorFrame(t, c, "ambiguous channel, use send_message with channel_id")
}

func TestTypingBroadcastExcludesSender(t *testing.T) {
	h := testHub()
	sender := NewClient(h, nil, "u1", "alice")
	peer := NewClient(h, nil, "u2", "bob")
	h.registry.Add(sender)
	h.registry.Add(peer)
	h.registry.Join("ch1", sender)
	h.registry.Join("ch1", peer)

	h.HandleFrame(context.Background(), sender, IncomingFrame{Type: EventTyping, ChannelID: "ch1"})

	frame := recvFrame(t, peer)
	require.Equal(t, EventTyping, frame.Type)
	payload, ok := frame.Payload.(TypingPayload)
	require.True(t, ok)
	assert.Equal(t, "u1", payload.UserID)
	assert.Equal(t, "ch1", payload.ChannelID)

	select {
	case <-sender.send:
		t.Fatal("sender should not receive its own typing event")
	default:
	}
}

func TestTypingOutsideChannelIgnored(t *testing.T) {
	h := testHub()
	c := NewClient(h, nil, "u1", "alice")
	h.registry.Add(c)

	h.HandleFrame(context.Background(), c, IncomingFrame{Type: EventTyping, ChannelID: "ch1"})

	select {
	case <-c.send:
		t.Fatal("expected no frame")
	default:
	}
}

func TestReactionFrameValidation(t *testing.T) {
	h := testHub()
	c := NewClient(h, nil, "u1", "alice")
	h.registry.Add(c)

	h.HandleFrame(context.Background(), c, IncomingFrame{Type: EventAddReaction, MessageID: "m1"})
	assertErrorFrame(t, c, "message_id and emoji required")

	h.HandleFrame(context.Background(), c, IncomingFrame{Type: EventRemoveReaction, Emoji: "👍"})
	assertErrorFrame(t, c, "message_id and emoji required")
}

func TestEditFrameValidation(t *testing.T) {
	h := testHub()
	c := NewClient(h, nil, "u1", "alice")
	h.registry.Add(c)

	h.HandleFrame(context.Background(), c, IncomingFrame{Type: EventEditMessage, MessageID: "m1", Content: "  "})
	assertErrorFrame(t, c, "message_id and content required")

	h.HandleFrame(context.Background(), c, IncomingFrame{Type: EventDeleteMessage})
	assertErrorFrame(t, c, "message_id required")
}

func TestDMFrameValidation(t *testing.T) {
	h := testHub()
	c := NewClient(h, nil, "u1", "alice")
	h.registry.Add(c)

	h.HandleFrame(context.Background(), c, IncomingFrame{Type: EventSendDM, Content: "hi"})
	assertErrorFrame(t, c, "conversation_id and content required")

	h.HandleFrame(context.Background(), c, IncomingFrame{Type: EventSendDM, ConversationID: "conv1"})
	assertErrorFrame(t, c, "conversation_id and content required")
}

func TestRegisterIsSynchronous(t *testing.T) {
	h := testHub()
	c := NewPendingClient(h, nil)

	// No Run goroutine: admission must not depend on the hub loop.
	h.Register(c)

	assert.Equal(t, 1, h.pendingCount())
	assert.False(t, isClosed(c))
}

func TestRegisterEnforcesConnectionLimit(t *testing.T) {
	h := NewHub(nil, nil, nil, nil, nil, nil, nil, 1, nil)
	first := NewPendingClient(h, nil)
	second := NewPendingClient(h, nil)

	h.Register(first)
	h.Register(second)

	assert.False(t, isClosed(first))
	assert.True(t, isClosed(second))
}

func TestSlowClientClosed(t *testing.T) {
	h := testHub()
	c := NewClient(h, nil, "u1", "alice")

	for i := 0; i < sendBufSize; i++ {
		h.sendToClient(c, OutgoingFrame{Type: EventTyping})
	}
	assert.False(t, isClosed(c))

	h.sendToClient(c, OutgoingFrame{Type: EventTyping})
	assert.True(t, isClosed(c))
}

func TestBroadcastChannelTargetsJoinedOnly(t *testing.T) {
	h := testHub()
	in := NewClient(h, nil, "u1", "alice")
	out := NewClient(h, nil, "u2", "bob")
	h.registry.Add(in)
	h.registry.Add(out)
	h.registry.Join("ch1", in)

	h.BroadcastChannel("ch1", OutgoingFrame{Type: EventNewMessage})

	frame := recvFrame(t, in)
	assert.Equal(t, EventNewMessage, frame.Type)
	select {
	case <-out.send:
		t.Fatal("client outside the channel should not receive the frame")
	default:
	}
}
