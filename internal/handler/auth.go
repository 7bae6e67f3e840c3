package handler

import (
	"encoding/json"
	"errors"
	"hash/fnv"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/communityhub/internal/auth"
	"github.com/communityhub/internal/logger"
	"github.com/communityhub/internal/middleware"
	"github.com/communityhub/internal/model"
	"github.com/communityhub/internal/repository"
	"github.com/communityhub/internal/storage"
)

const recoveryCodeCount = 8

// avatarPalette is assigned deterministically from the username at signup.
var avatarPalette = []string{
	"#e74c3c", "#e67e22", "#f1c40f", "#2ecc71",
	"#1abc9c", "#3498db", "#9b59b6", "#e84393",
}

type AuthHandler struct {
	userRepo     *repository.UserRepository
	store        storage.SessionStore
	tokens       *auth.TokenManager
	secureCookie bool
}

func NewAuthHandler(userRepo *repository.UserRepository, store storage.SessionStore, tokens *auth.TokenManager, secureCookie bool) *AuthHandler {
	return &AuthHandler{userRepo: userRepo, store: store, tokens: tokens, secureCookie: secureCookie}
}

type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RecoverRequest struct {
	Username     string `json:"username"`
	RecoveryCode string `json:"recovery_code"`
	NewPassword  string `json:"new_password"`
}

// AuthResponse is returned by register and login. Token is the bearer
// credential for clients that cannot carry the session cookie (the
// embedded widget path). RecoveryCodes are shown once at registration and
// never again.
type AuthResponse struct {
	User          model.UserPublic `json:"user"`
	Token         string           `json:"token"`
	RecoveryCodes []string         `json:"recovery_codes,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if err := auth.ValidateUsername(req.Username); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "valid email required")
		return
	}

	if _, err := h.userRepo.GetByUsername(r.Context(), req.Username); err == nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if _, err := h.userRepo.GetByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Errorf("register hash: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	codes, hashes, err := auth.GenerateRecoveryCodes(recoveryCodeCount)
	if err != nil {
		logger.Errorf("register recovery codes: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	hashesJSON, err := json.Marshal(hashes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	portableID, err := auth.NewPortableID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = req.Username
	}
	user := &model.User{
		ID:            uuid.New().String(),
		Username:      req.Username,
		Email:         req.Email,
		PasswordHash:  passwordHash,
		DisplayName:   displayName,
		AvatarColor:   pickAvatarColor(req.Username),
		Role:          model.RoleMember,
		PortableID:    portableID,
		RecoveryCodes: string(hashesJSON),
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.userRepo.Create(r.Context(), user); err != nil {
		logger.Errorf("register create user: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := h.startSession(w, r, user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, AuthResponse{
		User:          user.ToPublic(),
		Token:         token,
		RecoveryCodes: codes,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	user, err := h.userRepo.GetByUsername(r.Context(), strings.TrimSpace(req.Username))
	if errors.Is(err, repository.ErrNotFound) {
		// Same response as a wrong password so usernames cannot be probed.
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.startSession(w, r, user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{User: user.ToPublic(), Token: token})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.store.DeleteSession(r.Context(), cookie.Value); err != nil {
			logger.Errorf("logout delete session %s: %v", middleware.MaskSessionID(cookie.Value), err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userRepo.GetByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user.ToPublic())
}

// Recover resets the password with a one-time recovery code. The used code
// is consumed; remaining codes stay valid.
func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userRepo.GetByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid recovery code")
		return
	}
	valid, remaining := auth.VerifyRecoveryCode(req.RecoveryCode, user.RecoveryCodes)
	if !valid {
		writeError(w, http.StatusUnauthorized, "invalid recovery code")
		return
	}

	passwordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.userRepo.UpdatePassword(r.Context(), user.ID, passwordHash); err != nil {
		logger.Errorf("recover update password user=%s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.userRepo.UpdateRecoveryCodes(r.Context(), user.ID, remaining); err != nil {
		logger.Errorf("recover consume code user=%s: %v", user.ID, err)
	}

	token, err := h.startSession(w, r, user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{User: user.ToPublic(), Token: token})
}

// startSession creates the cookie session and issues the bearer token.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User) (string, error) {
	sessionID, err := auth.NewSessionID()
	if err != nil {
		return "", err
	}
	if err := h.store.SetSession(r.Context(), sessionID, user.ID, user.Username); err != nil {
		logger.Errorf("set session user=%s: %v", user.ID, err)
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(storage.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return h.tokens.Issue(user.ID, user.Username, user.PortableID)
}

func pickAvatarColor(username string) string {
	hash := fnv.New32a()
	hash.Write([]byte(username))
	return avatarPalette[hash.Sum32()%uint32(len(avatarPalette))]
}
