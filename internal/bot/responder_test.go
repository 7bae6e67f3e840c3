package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communityhub/internal/model"
)

type fakeStore struct {
	saved []*model.Message
	err   error
}

func (s *fakeStore) Create(ctx context.Context, m *model.Message) error {
	if s.err != nil {
		return s.err
	}
	m.ID = "saved"
	s.saved = append(s.saved, m)
	return nil
}

type fakeAnswerer struct {
	answer string
	err    error
}

func (a *fakeAnswerer) Answer(ctx context.Context, question string) (string, error) {
	return a.answer, a.err
}

func userMessage(channelID, content string) *model.Message {
	return &model.Message{
		ID:        "msg-1",
		ChannelID: channelID,
		UserID:    "user-1",
		Username:  "alice",
		Content:   content,
	}
}

func TestResponderAnswers(t *testing.T) {
	store := &fakeStore{}
	r := NewResponder("ch-support", "bot-1", "Support Bot", store, &fakeAnswerer{answer: "Try resetting your password."})

	reply, ok := r.Handle(context.Background(), userMessage("ch-support", "how do I reset my password?"))
	require.True(t, ok)
	require.Len(t, store.saved, 1)

	assert.Equal(t, "ch-support", reply.ChannelID)
	assert.Equal(t, "bot-1", reply.UserID)
	assert.Equal(t, "Support Bot", reply.Username)
	assert.True(t, reply.IsBot)
	assert.Equal(t, "Try resetting your password.", reply.Content)
	require.NotNil(t, reply.ReplyToID)
	assert.Equal(t, "msg-1", *reply.ReplyToID)
}

func TestResponderSkipsOtherChannels(t *testing.T) {
	store := &fakeStore{}
	r := NewResponder("ch-support", "bot-1", "Support Bot", store, &fakeAnswerer{answer: "hi"})

	_, ok := r.Handle(context.Background(), userMessage("ch-general", "hello"))
	assert.False(t, ok)
	assert.Empty(t, store.saved)
}

func TestResponderSkipsOwnMessages(t *testing.T) {
	store := &fakeStore{}
	r := NewResponder("ch-support", "bot-1", "Support Bot", store, &fakeAnswerer{answer: "hi"})

	m := userMessage("ch-support", "an earlier bot reply")
	m.IsBot = true
	_, ok := r.Handle(context.Background(), m)
	assert.False(t, ok)
	assert.Empty(t, store.saved)
}

func TestResponderEscalationMarker(t *testing.T) {
	store := &fakeStore{}
	r := NewResponder("ch-support", "bot-1", "Support Bot", store, &fakeAnswerer{answer: "I can help with that."})

	reply, ok := r.Handle(context.Background(), userMessage("ch-support", "I want a refund"))
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(reply.Content, "I can help with that."))
	assert.True(t, strings.HasSuffix(reply.Content, escalationMarker))
}

func TestResponderApologyFallback(t *testing.T) {
	store := &fakeStore{}
	r := NewResponder("ch-support", "bot-1", "Support Bot", store, &fakeAnswerer{err: errors.New("service down")})

	reply, ok := r.Handle(context.Background(), userMessage("ch-support", "is anyone there?"))
	require.True(t, ok)
	assert.Equal(t, apologyText, reply.Content)
}

func TestResponderStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	r := NewResponder("ch-support", "bot-1", "Support Bot", store, &fakeAnswerer{answer: "hi"})

	_, ok := r.Handle(context.Background(), userMessage("ch-support", "hello"))
	assert.False(t, ok)
}
