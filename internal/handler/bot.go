package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/communityhub/internal/logger"
	"github.com/communityhub/internal/model"
	"github.com/communityhub/internal/repository"
	"github.com/communityhub/internal/ws"
)

// BotHandler serves the API-key surface used by registered bots. It sits
// outside the session middleware: the key in the X-Bot-Key header is the
// whole identity.
type BotHandler struct {
	botRepo     *repository.BotRepository
	channelRepo *repository.ChannelRepository
	msgRepo     *repository.MessageRepository
	hub         *ws.Hub
}

func NewBotHandler(botRepo *repository.BotRepository, channelRepo *repository.ChannelRepository, msgRepo *repository.MessageRepository, hub *ws.Hub) *BotHandler {
	return &BotHandler{botRepo: botRepo, channelRepo: channelRepo, msgRepo: msgRepo, hub: hub}
}

type BotSendRequest struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

func (h *BotHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-Bot-Key")
	if key == "" {
		writeError(w, http.StatusUnauthorized, "bot key required")
		return
	}
	bot, err := h.botRepo.GetByKey(r.Context(), key)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid bot key")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var req BotSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if req.ChannelID == "" || content == "" {
		writeError(w, http.StatusBadRequest, "channel_id and content required")
		return
	}
	if len(content) > repository.MaxContentLen {
		writeError(w, http.StatusBadRequest, "message too long")
		return
	}

	channel, err := h.channelRepo.GetByID(r.Context(), req.ChannelID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// A bot may only post inside its own community.
	if channel.CommunityID != bot.CommunityID {
		writeError(w, http.StatusForbidden, "channel outside bot community")
		return
	}

	m := &model.Message{
		ChannelID: req.ChannelID,
		UserID:    bot.ID,
		Username:  bot.Name,
		Content:   content,
		IsBot:     true,
	}
	if err := h.msgRepo.Create(r.Context(), m); err != nil {
		logger.Errorf("bot send channel=%s bot=%s: %v", req.ChannelID, bot.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	h.hub.BroadcastChannel(req.ChannelID, ws.OutgoingFrame{Type: ws.EventNewMessage, Payload: m})
	writeJSON(w, http.StatusCreated, m)
}
