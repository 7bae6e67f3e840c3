package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/communityhub/internal/logger"
	"github.com/communityhub/internal/middleware"
	"github.com/communityhub/internal/storage"
	"github.com/communityhub/internal/ws"
)

type WSHandler struct {
	hub            *ws.Hub
	store          storage.SessionStore
	allowedOrigins string
}

// NewWSHandler creates the WebSocket upgrade handler. allowedOrigins works
// like CORS (comma-separated or "*").
func NewWSHandler(hub *ws.Hub, store storage.SessionStore, allowedOrigins string) *WSHandler {
	return &WSHandler{hub: hub, store: store, allowedOrigins: strings.TrimSpace(allowedOrigins)}
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if h.allowedOrigins == "*" || h.allowedOrigins == "" {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, o := range strings.Split(h.allowedOrigins, ",") {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	return false
}

// ServeWS upgrades the connection. A valid session cookie authenticates
// the socket immediately; a cookie the store rejects is a 401 before the
// upgrade. Without a cookie the socket starts pending and must
// authenticate with a bearer-token join frame.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var userID, username string
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		userID, username, err = h.store.GetSession(r.Context(), cookie.Value)
		if err != nil || userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return h.checkOrigin(r) },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("ws upgrade: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	var client *ws.Client
	if userID != "" {
		client = ws.NewClient(h.hub, conn, userID, username)
	} else {
		client = ws.NewPendingClient(h.hub, conn)
	}
	// Register before the pumps start so the first frame read cannot race
	// the connection's admission into the hub.
	h.hub.Register(client)
	client.Start(ctx, cancel)
}
