package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/communityhub/internal/logger"
	"github.com/communityhub/internal/middleware"
	"github.com/communityhub/internal/model"
	"github.com/communityhub/internal/repository"
	"github.com/communityhub/internal/ws"
)

type MessageHandler struct {
	msgRepo       *repository.MessageRepository
	channelRepo   *repository.ChannelRepository
	communityRepo *repository.CommunityRepository
	pinnedRepo    *repository.PinnedRepository
	hub           *ws.Hub
}

func NewMessageHandler(
	msgRepo *repository.MessageRepository,
	channelRepo *repository.ChannelRepository,
	communityRepo *repository.CommunityRepository,
	pinnedRepo *repository.PinnedRepository,
	hub *ws.Hub,
) *MessageHandler {
	return &MessageHandler{
		msgRepo:       msgRepo,
		channelRepo:   channelRepo,
		communityRepo: communityRepo,
		pinnedRepo:    pinnedRepo,
		hub:           hub,
	}
}

// History serves the hydrated recent-message window for a channel.
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	if _, ok := h.channelMember(w, r, channelID, false); !ok {
		return
	}

	limit := queryInt(r, "limit", repository.DefaultHistoryLimit)
	if limit > 200 {
		limit = 200
	}
	messages, err := h.msgRepo.ChannelHistory(r.Context(), channelID, limit)
	if err != nil {
		logger.Errorf("channel history %s: %v", channelID, err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) Search(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	if _, ok := h.channelMember(w, r, channelID, false); !ok {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q required")
		return
	}
	messages, err := h.msgRepo.Search(r.Context(), channelID, query, queryInt(r, "limit", repository.DefaultHistoryLimit))
	if err != nil {
		logger.Errorf("search channel %s: %v", channelID, err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) ListPins(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	if _, ok := h.channelMember(w, r, channelID, false); !ok {
		return
	}
	pins, err := h.pinnedRepo.ListByChannel(r.Context(), channelID)
	if err != nil {
		logger.Errorf("list pins channel %s: %v", channelID, err)
		writeError(w, http.StatusInternalServerError, "failed to list pins")
		return
	}
	writeJSON(w, http.StatusOK, pins)
}

// Pin marks a message pinned. Privileged roles only. Pinning twice is a
// no-op and does not re-broadcast.
func (h *MessageHandler) Pin(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	m, err := h.msgRepo.GetByID(r.Context(), messageID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if _, ok := h.channelMember(w, r, m.ChannelID, true); !ok {
		return
	}

	userID := middleware.GetUserID(r.Context())
	pinned, err := h.pinnedRepo.Pin(r.Context(), messageID, userID)
	if err != nil {
		logger.Errorf("pin message %s: %v", messageID, err)
		writeError(w, http.StatusInternalServerError, "failed to pin")
		return
	}
	if pinned {
		h.hub.BroadcastChannel(m.ChannelID, ws.OutgoingFrame{Type: ws.EventMessagePinned, Payload: ws.PinPayload{
			MessageID: messageID,
			ChannelID: m.ChannelID,
			PinnedBy:  userID,
		}})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) Unpin(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	m, err := h.msgRepo.GetByID(r.Context(), messageID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if _, ok := h.channelMember(w, r, m.ChannelID, true); !ok {
		return
	}

	removed, err := h.pinnedRepo.Unpin(r.Context(), messageID)
	if err != nil {
		logger.Errorf("unpin message %s: %v", messageID, err)
		writeError(w, http.StatusInternalServerError, "failed to unpin")
		return
	}
	if removed {
		h.hub.BroadcastChannel(m.ChannelID, ws.OutgoingFrame{Type: ws.EventMessageUnpinned, Payload: ws.PinPayload{
			MessageID: messageID,
			ChannelID: m.ChannelID,
		}})
	}
	w.WriteHeader(http.StatusNoContent)
}

// channelMember loads the channel and verifies community membership,
// optionally requiring a privileged role. Writes the error response on
// failure.
func (h *MessageHandler) channelMember(w http.ResponseWriter, r *http.Request, channelID string, privileged bool) (*model.Channel, bool) {
	channel, err := h.channelRepo.GetByID(r.Context(), channelID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "channel not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	member, err := h.communityRepo.GetMember(r.Context(), channel.CommunityID, middleware.GetUserID(r.Context()))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusForbidden, "not a member")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if privileged && !model.PrivilegedRole(member.Role) {
		writeError(w, http.StatusForbidden, "insufficient role")
		return nil, false
	}
	return channel, true
}
