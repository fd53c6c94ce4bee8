package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/syntheticsoul/internal/client/client"
	"github.com/dmitrijs2005/syntheticsoul/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testBase = "http://api.test"

// serve runs h in-process for one request, the way a transport would.
func serve(ctx context.Context, h http.Handler, method, target string, body []byte, header http.Header, token string) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(target) > 0 && target[0] == '/' {
		target = testBase + target
	}

	req := httptest.NewRequest(method, target, bytes.NewReader(body)).WithContext(ctx)
	for k, vs := range header {
		req.Header[k] = vs
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Result(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func bearer(r *http.Request) string {
	const p = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(p) {
		return h[len(p):]
	}
	return ""
}

// handlerSession is a Session backed by an in-process handler.
type handlerSession struct {
	h        http.Handler
	identity *models.Identity
}

func (s *handlerSession) AuthFetch(ctx context.Context, method, target string, body []byte, header http.Header) (*http.Response, error) {
	return serve(ctx, s.h, method, target, body, header, "tok")
}

func (s *handlerSession) Identity() *models.Identity { return s.identity }

// fakeClient implements client.Client for session manager tests.
type fakeClient struct {
	mu sync.Mutex

	// Handler answers Do.
	Handler http.Handler

	GuestTokens []string
	GuestErr    error

	LoginToken string
	LoginErr   error

	ClaimToken string
	ClaimErr   error

	RefreshToken string
	RefreshErr   error

	// MeFunc defaults to a guest identity for any token.
	MeFunc func(token string) (*models.Identity, error)

	LogoutErr error

	cookies []*http.Cookie

	// recorded calls
	Calls         []string
	DoTokens      []string
	RefreshCalls  int
	LastClaimAuth string
	LastLogout    string
	Restored      []*http.Cookie
}

var _ client.Client = (*fakeClient)(nil)

func (f *fakeClient) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
}

func (f *fakeClient) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

func (f *fakeClient) URL(target string) string { return testBase + target }

func (f *fakeClient) Do(ctx context.Context, method, target string, body []byte, header http.Header, token string) (*http.Response, error) {
	f.mu.Lock()
	f.DoTokens = append(f.DoTokens, token)
	f.mu.Unlock()
	f.record("do")
	return serve(ctx, f.Handler, method, target, body, header, token)
}

func (f *fakeClient) Guest(ctx context.Context) (string, error) {
	f.record("guest")
	if f.GuestErr != nil {
		return "", f.GuestErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.GuestTokens) == 0 {
		return "guest-token", nil
	}
	t := f.GuestTokens[0]
	f.GuestTokens = f.GuestTokens[1:]
	return t, nil
}

func (f *fakeClient) Login(ctx context.Context, email string, password []byte) (string, error) {
	f.record("login")
	return f.LoginToken, f.LoginErr
}

func (f *fakeClient) Claim(ctx context.Context, token, email, username string, password []byte) (string, error) {
	f.record("claim")
	f.LastClaimAuth = token
	return f.ClaimToken, f.ClaimErr
}

func (f *fakeClient) Refresh(ctx context.Context, token string) (string, error) {
	f.record("refresh")
	f.mu.Lock()
	f.RefreshCalls++
	f.mu.Unlock()
	return f.RefreshToken, f.RefreshErr
}

func (f *fakeClient) Me(ctx context.Context, token string) (*models.Identity, error) {
	f.record("me")
	if f.MeFunc != nil {
		return f.MeFunc(token)
	}
	return &models.Identity{ID: "g-" + token, Guest: true}, nil
}

func (f *fakeClient) Logout(ctx context.Context, token string) error {
	f.record("logout")
	f.LastLogout = token
	return f.LogoutErr
}

func (f *fakeClient) Cookies() []*http.Cookie { return f.cookies }

func (f *fakeClient) RestoreCookies(cookies []*http.Cookie) {
	f.Restored = cookies
	f.cookies = cookies
}

func (f *fakeClient) Close() error { return nil }

var errRejected = &client.HTTPError{Op: "me", StatusCode: http.StatusUnauthorized}

// signedToken builds a JWT with the given subject and expiry.
func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

var errBoom = errors.New("boom")
