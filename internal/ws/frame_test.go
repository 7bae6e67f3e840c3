package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncomingFrameDecode(t *testing.T) {
	raw := `{"type":"send_message","channel_id":"ch1","content":"hello","reply_to_id":"m9"}`
	var frame IncomingFrame
	require.NoError(t, json.Unmarshal([]byte(raw), &frame))
	assert.Equal(t, EventSendMessage, frame.Type)
	assert.Equal(t, "ch1", frame.ChannelID)
	assert.Equal(t, "hello", frame.Content)
	assert.Equal(t, "m9", frame.ReplyToID)
}

func TestErrorFrameEncode(t *testing.T) {
	data, err := json.Marshal(ErrorFrame("nope"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","payload":{"message":"nope"}}`, string(data))
}
