package handler

import (
	"encoding/json"
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

type DMHandler struct {
	dmRepo   *repository.DMRepository
	userRepo *repository.UserRepository
	hub      *ws.Hub
}

func NewDMHandler(dmRepo *repository.DMRepository, userRepo *repository.UserRepository, hub *ws.Hub) *DMHandler {
	return &DMHandler{dmRepo: dmRepo, userRepo: userRepo, hub: hub}
}

func (h *DMHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.dmRepo.UserConversations(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		logger.Errorf("list conversations: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

type CreateConversationRequest struct {
	RecipientID string `json:"recipient_id"`
}

// CreateConversation opens (or returns) the conversation with a recipient.
func (h *DMHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	userID := middleware.GetUserID(r.Context())
	if req.RecipientID == "" || req.RecipientID == userID {
		writeError(w, http.StatusBadRequest, "recipient_id required")
		return
	}

	recipient, err := h.userRepo.GetByID(r.Context(), req.RecipientID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "recipient not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	conv, err := h.dmRepo.GetOrCreateConversation(r.Context(), userID, middleware.GetUsername(r.Context()), recipient.ID, recipient.Username)
	if err != nil {
		logger.Errorf("create conversation with %s: %v", recipient.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *DMHandler) Messages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if _, ok := h.participant(w, r, conversationID); !ok {
		return
	}

	messages, err := h.dmRepo.Messages(r.Context(), conversationID, queryInt(r, "limit", repository.DefaultHistoryLimit))
	if err != nil {
		logger.Errorf("dm messages conversation=%s: %v", conversationID, err)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

type SendDMRequest struct {
	Content string `json:"content"`
}

// SendMessage posts into a conversation over REST. Connected participants
// also receive the message as a new_dm frame.
func (h *DMHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	conv, ok := h.participant(w, r, conversationID)
	if !ok {
		return
	}

	var req SendDMRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}
	if len(content) > repository.MaxContentLen {
		writeError(w, http.StatusBadRequest, "message too long")
		return
	}

	dm := &model.DirectMessage{
		ConversationID: conversationID,
		SenderID:       middleware.GetUserID(r.Context()),
		SenderName:     middleware.GetUsername(r.Context()),
		Content:        content,
	}
	if err := h.dmRepo.CreateMessage(r.Context(), dm); err != nil {
		logger.Errorf("dm send conversation=%s: %v", conversationID, err)
		writeError(w, http.StatusInternalServerError, "failed to send")
		return
	}

	out := ws.OutgoingFrame{Type: ws.EventNewDM, Payload: dm}
	h.hub.SendUser(dm.SenderID, out)
	if other := conv.Other(dm.SenderID); other != dm.SenderID {
		h.hub.SendUser(other, out)
	}
	writeJSON(w, http.StatusCreated, dm)
}

// participant loads the conversation and checks the caller is one of its two
// participants. Writes the error response on failure.
func (h *DMHandler) participant(w http.ResponseWriter, r *http.Request, conversationID string) (*model.Conversation, bool) {
	conv, err := h.dmRepo.GetConversation(r.Context(), conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if !conv.Has(middleware.GetUserID(r.Context())) {
		writeError(w, http.StatusForbidden, "not a participant")
		return nil, false
	}
	return conv, true
}
