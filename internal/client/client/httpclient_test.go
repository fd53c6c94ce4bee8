package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/syntheticsoul/internal/common"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, r chi.Router) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(Options{BaseURL: srv.URL + "/", ClientID: "cid-1", SessionID: "sid-1"})
	require.NoError(t, err)
	return c, srv
}

func TestHTTPClient_URL(t *testing.T) {
	c, err := NewHTTPClient(Options{BaseURL: "https://soul.example/api///"})
	require.NoError(t, err)

	assert.Equal(t, "https://soul.example/api/auth/me", c.URL("/auth/me"))
	assert.Equal(t, "https://soul.example/api/jobs/1", c.URL("jobs/1"))
	assert.Equal(t, "http://other.example/x", c.URL("http://other.example/x"))
}

func TestHTTPClient_Do_AttachesHeaders(t *testing.T) {
	var got http.Header
	var gotBody string
	r := chi.NewRouter()
	r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := newTestClient(t, r)

	resp, err := c.Do(context.Background(), http.MethodPost, "/echo", []byte(`{"a":1}`), http.Header{"X-Extra": {"1"}}, "tok")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok", got.Get(common.AuthorizationHeader))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "cid-1", got.Get(common.ClientIDHeader))
	assert.Equal(t, "sid-1", got.Get(common.SessionIDHeader))
	assert.Equal(t, "1", got.Get("X-Extra"))
	assert.Equal(t, `{"a":1}`, gotBody)
}

func TestHTTPClient_Do_NoTokenNoAuthorization(t *testing.T) {
	var got http.Header
	r := chi.NewRouter()
	r.Get("/meta/version", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeJSON(w, http.StatusOK, map[string]string{"version": "1.0"})
	})
	c, _ := newTestClient(t, r)

	resp, err := c.Do(context.Background(), http.MethodGet, "/meta/version", nil, nil, "")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, got.Get(common.AuthorizationHeader))
	assert.Empty(t, got.Get("Content-Type"))
}

func TestHTTPClient_Do_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := NewHTTPClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Do(context.Background(), http.MethodGet, "/auth/me", nil, nil, "")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPClient_Do_ContextCanceled(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	c, _ := newTestClient(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Do(ctx, http.MethodGet, "/slow", nil, nil, "")
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrUnavailable)
}

func TestHTTPClient_GuestAndLogin(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "guest-tok"})
	})
	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["email"] == "neo@zion.io" && in["password"] == "red-pill" {
			writeJSON(w, http.StatusOK, map[string]string{"access_token": "user-tok"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
	})
	c, _ := newTestClient(t, r)
	ctx := context.Background()

	tok, err := c.Guest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "guest-tok", tok)

	tok, err = c.Login(ctx, "neo@zion.io", []byte("red-pill"))
	require.NoError(t, err)
	assert.Equal(t, "user-tok", tok)

	_, err = c.Login(ctx, "neo@zion.io", []byte("blue-pill"))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Invalid credentials", UserMessage(err))

	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "login", he.Op)
	assert.Equal(t, http.StatusUnauthorized, he.StatusCode)
}

func TestHTTPClient_IssueWithoutToken(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})
	r.Post("/auth/claim", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("username taken"))
	})
	c, _ := newTestClient(t, r)

	_, err := c.Guest(context.Background())
	require.ErrorIs(t, err, ErrNoToken)

	_, err = c.Claim(context.Background(), "tok", "a@b.c", "neo", []byte("pw"))
	require.Error(t, err)
	assert.Equal(t, "username taken", UserMessage(err))
	assert.Equal(t, "claim 409: username taken", err.Error())
}

func TestHTTPClient_RefreshSendsCSRFFromCookie(t *testing.T) {
	var csrf, auth string
	r := chi.NewRouter()
	r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "rt-1", Path: "/", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: common.CSRFCookie, Value: "csrf-1", Path: "/"})
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "t1"})
	})
	r.Post("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		csrf = r.Header.Get(common.CSRFHeader)
		auth = r.Header.Get(common.AuthorizationHeader)
		if ck, err := r.Cookie("refresh_token"); err != nil || ck.Value != "rt-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "t2"})
	})
	c, _ := newTestClient(t, r)
	ctx := context.Background()

	_, err := c.Guest(ctx)
	require.NoError(t, err)

	tok, err := c.Refresh(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t2", tok)
	assert.Equal(t, "csrf-1", csrf)
	assert.Equal(t, "Bearer t1", auth)
}

func TestHTTPClient_AuthScopedCookies(t *testing.T) {
	var csrf, refreshCookie string
	r := chi.NewRouter()
	r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "rt-1", Path: "/auth", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: common.CSRFCookie, Value: "csrf-1", Path: "/auth"})
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "t1"})
	})
	r.Post("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		csrf = r.Header.Get(common.CSRFHeader)
		if ck, err := r.Cookie("refresh_token"); err == nil {
			refreshCookie = ck.Value
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "t2"})
	})
	c, srv := newTestClient(t, r)
	ctx := context.Background()

	_, err := c.Guest(ctx)
	require.NoError(t, err)

	exported := map[string]string{}
	for _, ck := range c.Cookies() {
		exported[ck.Name] = ck.Value
	}
	assert.Equal(t, map[string]string{"refresh_token": "rt-1", common.CSRFCookie: "csrf-1"}, exported)

	_, err = c.Refresh(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "csrf-1", csrf)
	assert.Equal(t, "rt-1", refreshCookie)

	restored, err := NewHTTPClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	restored.RestoreCookies(c.Cookies())
	csrf, refreshCookie = "", ""

	_, err = restored.Refresh(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "csrf-1", csrf)
	assert.Equal(t, "rt-1", refreshCookie)
}

func TestHTTPClient_RefreshCookieOnly(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	c, _ := newTestClient(t, r)

	tok, err := c.Refresh(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestHTTPClient_RestoreCookies(t *testing.T) {
	var seen string
	r := chi.NewRouter()
	r.Post("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("refresh_token"); err == nil {
			seen = ck.Value
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "t"})
	})
	c, _ := newTestClient(t, r)

	c.RestoreCookies([]*http.Cookie{{Name: "refresh_token", Value: "persisted"}})
	_, err := c.Refresh(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "persisted", seen)
	require.Len(t, c.Cookies(), 1)
}

func TestHTTPClient_MeShapes(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get(common.AuthorizationHeader) {
		case "Bearer wrapped":
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u1", "username": "neo", "guest": false}})
		case "Bearer bare":
			writeJSON(w, http.StatusOK, map[string]any{"id": "g1", "guest": true})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"code": "token_expired"}})
		}
	})
	c, _ := newTestClient(t, r)
	ctx := context.Background()

	u, err := c.Me(ctx, "wrapped")
	require.NoError(t, err)
	assert.Equal(t, "neo", u.Username)
	assert.False(t, u.Guest)

	u, err = c.Me(ctx, "bare")
	require.NoError(t, err)
	assert.Equal(t, "g1", u.ID)
	assert.True(t, u.Guest)

	_, err = c.Me(ctx, "stale")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "token_expired", UserMessage(err))
}

func TestHTTPClient_Logout(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(common.AuthorizationHeader) == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := newTestClient(t, r)

	require.NoError(t, c.Logout(context.Background(), "tok"))
	err := c.Logout(context.Background(), "")
	require.True(t, errors.Is(err, ErrUnauthorized))
}
