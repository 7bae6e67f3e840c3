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
)

type CommunityHandler struct {
	communityRepo *repository.CommunityRepository
	channelRepo   *repository.ChannelRepository
	botRepo       *repository.BotRepository
}

func NewCommunityHandler(communityRepo *repository.CommunityRepository, channelRepo *repository.ChannelRepository, botRepo *repository.BotRepository) *CommunityHandler {
	return &CommunityHandler{communityRepo: communityRepo, channelRepo: channelRepo, botRepo: botRepo}
}

type CreateCommunityRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	IsPublic    *bool  `json:"is_public"`
}

func (h *CommunityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCommunityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 100 {
		writeError(w, http.StatusBadRequest, "name required (max 100 chars)")
		return
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}
	community := &model.Community{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Icon:        req.Icon,
		OwnerID:     middleware.GetUserID(r.Context()),
		IsPublic:    isPublic,
	}
	if err := h.communityRepo.Create(r.Context(), community, middleware.GetUsername(r.Context())); err != nil {
		logger.Errorf("create community: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create community")
		return
	}
	writeJSON(w, http.StatusCreated, community)
}

func (h *CommunityHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	communities, err := h.communityRepo.ListPublic(r.Context())
	if err != nil {
		logger.Errorf("list communities: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list communities")
		return
	}
	writeJSON(w, http.StatusOK, communities)
}

func (h *CommunityHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	communities, err := h.communityRepo.ListForUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		logger.Errorf("list user communities: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list communities")
		return
	}
	writeJSON(w, http.StatusOK, communities)
}

func (h *CommunityHandler) Get(w http.ResponseWriter, r *http.Request) {
	community, err := h.communityRepo.GetByID(r.Context(), chi.URLParam(r, "communityID"))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "community not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, community)
}

func (h *CommunityHandler) Join(w http.ResponseWriter, r *http.Request) {
	communityID := chi.URLParam(r, "communityID")
	community, err := h.communityRepo.GetByID(r.Context(), communityID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "community not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !community.IsPublic {
		writeError(w, http.StatusForbidden, "community is private")
		return
	}

	member, err := h.communityRepo.Join(r.Context(), communityID, middleware.GetUserID(r.Context()), middleware.GetUsername(r.Context()))
	if err != nil {
		logger.Errorf("join community %s: %v", communityID, err)
		writeError(w, http.StatusInternalServerError, "failed to join")
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *CommunityHandler) Leave(w http.ResponseWriter, r *http.Request) {
	communityID := chi.URLParam(r, "communityID")
	left, err := h.communityRepo.Leave(r.Context(), communityID, middleware.GetUserID(r.Context()))
	if err != nil {
		logger.Errorf("leave community %s: %v", communityID, err)
		writeError(w, http.StatusInternalServerError, "failed to leave")
		return
	}
	if !left {
		writeError(w, http.StatusNotFound, "not a member")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CommunityHandler) Members(w http.ResponseWriter, r *http.Request) {
	communityID := chi.URLParam(r, "communityID")
	if !h.requireMember(w, r, communityID) {
		return
	}
	members, err := h.communityRepo.GetMembers(r.Context(), communityID)
	if err != nil {
		logger.Errorf("list members %s: %v", communityID, err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

type CreateChannelRequest struct {
	Name        string            `json:"name"`
	Type        model.ChannelType `json:"type"`
	Description string            `json:"description"`
	IsLocked    bool              `json:"is_locked"`
}

func (h *CommunityHandler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	communityID := chi.URLParam(r, "communityID")
	if !h.requirePrivileged(w, r, communityID) {
		return
	}

	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 50 {
		writeError(w, http.StatusBadRequest, "name required (max 50 chars)")
		return
	}

	existing, err := h.channelRepo.ListByCommunity(r.Context(), communityID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	channel := &model.Channel{
		CommunityID: communityID,
		Name:        name,
		Type:        req.Type,
		Position:    len(existing),
		IsLocked:    req.IsLocked,
		Description: strings.TrimSpace(req.Description),
	}
	if err := h.channelRepo.Create(r.Context(), channel); err != nil {
		logger.Errorf("create channel community=%s: %v", communityID, err)
		writeError(w, http.StatusInternalServerError, "failed to create channel")
		return
	}
	writeJSON(w, http.StatusCreated, channel)
}

func (h *CommunityHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	communityID := chi.URLParam(r, "communityID")
	if !h.requireMember(w, r, communityID) {
		return
	}
	channels, err := h.channelRepo.ListByCommunity(r.Context(), communityID)
	if err != nil {
		logger.Errorf("list channels %s: %v", communityID, err)
		writeError(w, http.StatusInternalServerError, "failed to list channels")
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

type CreateBotRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateBotResponse carries the API key, returned only at creation.
type CreateBotResponse struct {
	Bot    model.Bot `json:"bot"`
	APIKey string    `json:"api_key"`
}

func (h *CommunityHandler) CreateBot(w http.ResponseWriter, r *http.Request) {
	communityID := chi.URLParam(r, "communityID")
	if !h.requirePrivileged(w, r, communityID) {
		return
	}

	var req CreateBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 50 {
		writeError(w, http.StatusBadRequest, "name required (max 50 chars)")
		return
	}

	b := &model.Bot{
		CommunityID: communityID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
	}
	if err := h.botRepo.Create(r.Context(), b); err != nil {
		logger.Errorf("create bot community=%s: %v", communityID, err)
		writeError(w, http.StatusInternalServerError, "failed to create bot")
		return
	}
	writeJSON(w, http.StatusCreated, CreateBotResponse{Bot: *b, APIKey: b.APIKey})
}

type SetBotActiveRequest struct {
	Active bool `json:"active"`
}

// SetBotActive enables or disables a bot. A disabled bot's key stops
// working immediately; the record and key survive for re-enabling.
func (h *CommunityHandler) SetBotActive(w http.ResponseWriter, r *http.Request) {
	communityID := chi.URLParam(r, "communityID")
	if !h.requirePrivileged(w, r, communityID) {
		return
	}

	b, err := h.botRepo.GetByID(r.Context(), chi.URLParam(r, "botID"))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && b.CommunityID != communityID) {
		writeError(w, http.StatusNotFound, "bot not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var req SetBotActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.botRepo.SetActive(r.Context(), b.ID, req.Active); err != nil {
		logger.Errorf("set bot active %s: %v", b.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to update bot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CommunityHandler) ListBots(w http.ResponseWriter, r *http.Request) {
	communityID := chi.URLParam(r, "communityID")
	if !h.requirePrivileged(w, r, communityID) {
		return
	}
	bots, err := h.botRepo.ListByCommunity(r.Context(), communityID)
	if err != nil {
		logger.Errorf("list bots %s: %v", communityID, err)
		writeError(w, http.StatusInternalServerError, "failed to list bots")
		return
	}
	writeJSON(w, http.StatusOK, bots)
}

func (h *CommunityHandler) requireMember(w http.ResponseWriter, r *http.Request, communityID string) bool {
	_, err := h.communityRepo.GetMember(r.Context(), communityID, middleware.GetUserID(r.Context()))
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

func (h *CommunityHandler) requirePrivileged(w http.ResponseWriter, r *http.Request, communityID string) bool {
	ok, err := h.communityRepo.HasPermission(r.Context(), communityID, middleware.GetUserID(r.Context()), "manage")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	if !ok {
		writeError(w, http.StatusForbidden, "insufficient role")
		return false
	}
	return true
}
