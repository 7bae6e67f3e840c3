package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communityhub/internal/auth"
	"github.com/communityhub/internal/storage/memory"
)

func identityEcho(t *testing.T, wantUserID, wantUsername string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantUserID, GetUserID(r.Context()))
		assert.Equal(t, wantUsername, GetUsername(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestSessionAuthCookie(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.SetSession(context.Background(), "sess-1", "u1", "alice"))
	tokens := auth.NewTokenManager("secret", time.Hour)

	h := SessionAuth(store, tokens)(identityEcho(t, "u1", "alice"))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess-1"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSessionAuthBearer(t *testing.T) {
	store := memory.New()
	tokens := auth.NewTokenManager("secret", time.Hour)
	token, err := tokens.Issue("u1", "alice", "hub-1234")
	require.NoError(t, err)

	h := SessionAuth(store, tokens)(identityEcho(t, "u1", "alice"))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSessionAuthRejects(t *testing.T) {
	store := memory.New()
	tokens := auth.NewTokenManager("secret", time.Hour)
	wrongSigner := auth.NewTokenManager("other-secret", time.Hour)
	forged, err := wrongSigner.Issue("u1", "alice", "hub-1234")
	require.NoError(t, err)

	h := SessionAuth(store, tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"no credentials", func(r *http.Request) {}},
		{"unknown session", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale"})
		}},
		{"forged token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+forged)
		}},
		{"malformed header", func(r *http.Request) {
			r.Header.Set("Authorization", "Basic abc")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
		})
	}
}

func TestMaskSessionID(t *testing.T) {
	assert.Equal(t, "****", MaskSessionID("abc"))
	assert.Equal(t, "abcd***", MaskSessionID("abcdefgh"))
}
