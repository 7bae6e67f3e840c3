package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/communityhub/internal/logger"
	"github.com/communityhub/internal/middleware"
	"github.com/communityhub/internal/model"
	"github.com/communityhub/internal/repository"
)

const (
	maxPollOptions     = 10
	maxPollQuestionLen = 300
)

type PollHandler struct {
	pollRepo      *repository.PollRepository
	channelRepo   *repository.ChannelRepository
	communityRepo *repository.CommunityRepository
}

func NewPollHandler(pollRepo *repository.PollRepository, channelRepo *repository.ChannelRepository, communityRepo *repository.CommunityRepository) *PollHandler {
	return &PollHandler{pollRepo: pollRepo, channelRepo: channelRepo, communityRepo: communityRepo}
}

type CreatePollRequest struct {
	Question      string     `json:"question"`
	Options       []string   `json:"options"`
	AllowMultiple bool       `json:"allow_multiple"`
	EndsAt        *time.Time `json:"ends_at"`
}

func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	if !h.requireChannelMember(w, r, channelID) {
		return
	}

	var req CreatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" || len(question) > maxPollQuestionLen {
		writeError(w, http.StatusBadRequest, "question required (max 300 chars)")
		return
	}
	options := make([]string, 0, len(req.Options))
	for _, opt := range req.Options {
		if opt = strings.TrimSpace(opt); opt != "" {
			options = append(options, opt)
		}
	}
	if len(options) < 2 || len(options) > maxPollOptions {
		writeError(w, http.StatusBadRequest, "2 to 10 options required")
		return
	}
	if req.EndsAt != nil && req.EndsAt.Before(time.Now()) {
		writeError(w, http.StatusBadRequest, "ends_at must be in the future")
		return
	}

	poll := &model.Poll{
		ChannelID:     channelID,
		CreatorID:     middleware.GetUserID(r.Context()),
		CreatorName:   middleware.GetUsername(r.Context()),
		Question:      question,
		Options:       options,
		AllowMultiple: req.AllowMultiple,
		EndsAt:        req.EndsAt,
	}
	if err := h.pollRepo.Create(r.Context(), poll); err != nil {
		logger.Errorf("create poll channel=%s: %v", channelID, err)
		writeError(w, http.StatusInternalServerError, "failed to create poll")
		return
	}
	writeJSON(w, http.StatusCreated, poll)
}

type VoteRequest struct {
	OptionIndex int `json:"option_index"`
}

func (h *PollHandler) Vote(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "pollID")
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	poll, err := h.pollRepo.GetByID(r.Context(), pollID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "poll not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !h.requireChannelMember(w, r, poll.ChannelID) {
		return
	}

	err = h.pollRepo.Vote(r.Context(), pollID, middleware.GetUserID(r.Context()), req.OptionIndex)
	switch {
	case errors.Is(err, repository.ErrPollEnded):
		writeError(w, http.StatusConflict, "poll has ended")
	case errors.Is(err, repository.ErrBadOption):
		writeError(w, http.StatusBadRequest, "invalid option")
	case err != nil:
		logger.Errorf("vote poll %s: %v", pollID, err)
		writeError(w, http.StatusInternalServerError, "failed to vote")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *PollHandler) ListByChannel(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	if !h.requireChannelMember(w, r, channelID) {
		return
	}
	polls, err := h.pollRepo.ChannelPolls(r.Context(), channelID)
	if err != nil {
		logger.Errorf("list polls channel=%s: %v", channelID, err)
		writeError(w, http.StatusInternalServerError, "failed to list polls")
		return
	}
	writeJSON(w, http.StatusOK, polls)
}

func (h *PollHandler) requireChannelMember(w http.ResponseWriter, r *http.Request, channelID string) bool {
	channel, err := h.channelRepo.GetByID(r.Context(), channelID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "channel not found")
		return false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	_, err = h.communityRepo.GetMember(r.Context(), channel.CommunityID, middleware.GetUserID(r.Context()))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusForbidden, "not a member")
		return false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	return true
}
