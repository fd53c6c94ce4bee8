package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/syntheticsoul/internal/client/client"
	"github.com/dmitrijs2005/syntheticsoul/internal/client/models"
	"github.com/dmitrijs2005/syntheticsoul/internal/client/store"
	"github.com/dmitrijs2005/syntheticsoul/internal/common"
	"github.com/dmitrijs2005/syntheticsoul/internal/logging"
)

// State is the coarse authentication state of a session.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateGuest           State = "guest"
	StateAuthenticated   State = "authenticated"
)

// Snapshot is a consistent view of the session at one moment.
type Snapshot struct {
	Token    string
	Identity *models.Identity
	State    State
	// ExpiresAt is the token's exp claim; zero for opaque tokens.
	ExpiresAt time.Time
	// Loading is set while Boot is converging.
	Loading bool
}

// Fetcher performs requests authorised with the current session.
type Fetcher interface {
	AuthFetch(ctx context.Context, method, target string, body []byte, header http.Header) (*http.Response, error)
}

// SessionManager owns the bearer credential and the identity behind it.
//
// All state changes go through its methods: Boot, StartGuest, Login, Claim,
// Refresh and Logout are serialised, readers always see the latest token.
// Every token change is persisted together with the refresh cookies.
type SessionManager struct {
	client client.Client
	repo   store.Repository
	log    logging.Logger

	// ops serialises state-changing operations.
	ops sync.Mutex

	mu       sync.RWMutex
	token    string
	identity *models.Identity
	loading  bool
	subs     map[int]func(Snapshot)
	nextSub  int
}

var _ Fetcher = (*SessionManager)(nil)

// NewSessionManager constructs a SessionManager. repo holds the token across
// restarts.
func NewSessionManager(c client.Client, repo store.Repository, log logging.Logger) *SessionManager {
	return &SessionManager{
		client: c,
		repo:   repo,
		log:    log,
		subs:   make(map[int]func(Snapshot)),
	}
}

// Token returns the current bearer token, or "" when there is none.
func (s *SessionManager) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Identity returns the current principal, or nil.
func (s *SessionManager) Identity() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// State derives the session state from the token and identity.
func (s *SessionManager) State() State {
	return s.Snapshot().State
}

func (s *SessionManager) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *SessionManager) snapshotLocked() Snapshot {
	snap := Snapshot{Token: s.token, Identity: s.identity, Loading: s.loading}
	switch {
	case s.token == "":
		snap.State = StateUnauthenticated
	case s.identity != nil && !s.identity.Guest && s.identity.Username != "":
		snap.State = StateAuthenticated
	default:
		snap.State = StateGuest
	}
	if tc, ok := parseToken(s.token); ok {
		snap.ExpiresAt = tc.ExpiresAt
	}
	return snap
}

// Subscribe registers fn to be called after every session change. The
// returned func removes the subscription.
func (s *SessionManager) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *SessionManager) notify() {
	s.mu.RLock()
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Boot converges to a usable session: a stored token is validated with me,
// then refreshed, and a guest session is created when both fail.
func (s *SessionManager) Boot(ctx context.Context) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.setLoading(true)
	defer s.setLoading(false)

	s.restoreCookies(ctx)

	stored, err := s.repo.Get(ctx, common.TokenKey)
	if err != nil {
		s.log.Warn(ctx, "read stored token", "error", err)
	}

	if len(stored) > 0 {
		s.mu.Lock()
		s.token = string(stored)
		s.mu.Unlock()

		err := s.me(ctx)
		if err == nil {
			s.log.Info(ctx, "session restored", s.logArgs()...)
			return nil
		}
		s.log.Debug(ctx, "stored token rejected", "error", err)

		if s.refresh(ctx) {
			return nil
		}
	}

	return s.startGuest(ctx)
}

func (s *SessionManager) StartGuest(ctx context.Context) error {
	s.ops.Lock()
	defer s.ops.Unlock()
	return s.startGuest(ctx)
}

func (s *SessionManager) startGuest(ctx context.Context) error {
	token, err := s.client.Guest(ctx)
	if err != nil {
		return fmt.Errorf("start guest: %w", err)
	}
	return s.adopt(ctx, token)
}

// Login exchanges credentials for a token. The password is not retained.
func (s *SessionManager) Login(ctx context.Context, email string, password []byte) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	token, err := s.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return s.adopt(ctx, token)
}

// Claim upgrades the current guest session to a named account.
func (s *SessionManager) Claim(ctx context.Context, email, username string, password []byte) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	token, err := s.client.Claim(ctx, s.Token(), email, username, password)
	if err != nil {
		return err
	}
	return s.adopt(ctx, token)
}

// Refresh tries to obtain a new token through the refresh cookie. It never
// fails; false means the session could not be renewed.
func (s *SessionManager) Refresh(ctx context.Context) bool {
	s.ops.Lock()
	defer s.ops.Unlock()
	return s.refresh(ctx)
}

func (s *SessionManager) refresh(ctx context.Context) bool {
	current := s.Token()
	if current == "" {
		return false
	}

	token, err := s.client.Refresh(ctx, current)
	if err != nil {
		s.log.Debug(ctx, "refresh failed", "error", err)
		return false
	}
	if token == "" {
		// Only the cookie rotated; keep the bearer token.
		token = current
	}

	if err := s.adopt(ctx, token); err != nil {
		s.log.Debug(ctx, "identity after refresh", "error", err)
		return false
	}
	return true
}

// Logout ends the server session (best effort), forgets the local
// credential and starts a fresh guest session.
func (s *SessionManager) Logout(ctx context.Context) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	if token := s.Token(); token != "" {
		if err := s.client.Logout(ctx, token); err != nil {
			s.log.Debug(ctx, "server logout", "error", err)
		}
	}

	if err := s.repo.SetMany(ctx, map[string][]byte{
		common.TokenKey:   nil,
		common.CookiesKey: nil,
	}); err != nil {
		s.log.Warn(ctx, "clear stored token", "error", err)
	}

	s.mu.Lock()
	s.token = ""
	s.identity = nil
	s.mu.Unlock()
	s.notify()
	s.log.Info(ctx, "logged out")

	return s.startGuest(ctx)
}

// Me reloads the identity behind the current token.
func (s *SessionManager) Me(ctx context.Context) error {
	s.ops.Lock()
	defer s.ops.Unlock()
	return s.me(ctx)
}

func (s *SessionManager) me(ctx context.Context) error {
	token := s.Token()
	if token == "" {
		s.setIdentity(nil)
		return nil
	}

	identity, err := s.client.Me(ctx, token)
	if err != nil {
		return err
	}
	s.setIdentity(identity)
	return nil
}

// adopt installs token, persists it and reloads the identity.
func (s *SessionManager) adopt(ctx context.Context, token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	s.persist(ctx, token)

	if err := s.me(ctx); err != nil {
		s.setIdentity(nil)
		return fmt.Errorf("load identity: %w", err)
	}
	s.log.Info(ctx, "session changed", s.logArgs()...)
	return nil
}

func (s *SessionManager) setIdentity(identity *models.Identity) {
	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()
	s.notify()
}

func (s *SessionManager) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
	s.notify()
}

func (s *SessionManager) logArgs() []any {
	snap := s.Snapshot()
	args := []any{"state", snap.State}
	if snap.Identity != nil && snap.Identity.Username != "" {
		args = append(args, "username", snap.Identity.Username)
	}
	if !snap.ExpiresAt.IsZero() {
		args = append(args, "expires_at", snap.ExpiresAt.Format(time.RFC3339))
	}
	return args
}

// storedCookie is the persisted form of a refresh-channel cookie.
type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// persist writes the token and the current cookies in one transaction.
// Storage failures only cost the session its survival across restarts.
func (s *SessionManager) persist(ctx context.Context, token string) {
	values := map[string][]byte{common.TokenKey: []byte(token)}

	if cookies := s.client.Cookies(); len(cookies) > 0 {
		stored := make([]storedCookie, 0, len(cookies))
		for _, c := range cookies {
			stored = append(stored, storedCookie{
				Name: c.Name, Value: c.Value, Path: c.Path,
				Expires: c.Expires, Secure: c.Secure, HttpOnly: c.HttpOnly,
			})
		}
		if raw, err := json.Marshal(stored); err == nil {
			values[common.CookiesKey] = raw
		}
	}

	if err := s.repo.SetMany(ctx, values); err != nil {
		s.log.Warn(ctx, "persist session", "error", err)
	}
}

func (s *SessionManager) restoreCookies(ctx context.Context) {
	raw, err := s.repo.Get(ctx, common.CookiesKey)
	if err != nil || len(raw) == 0 {
		return
	}

	var stored []storedCookie
	if err := json.Unmarshal(raw, &stored); err != nil {
		s.log.Warn(ctx, "stored cookies unreadable", "error", err)
		return
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{
			Name: c.Name, Value: c.Value, Path: c.Path,
			Expires: c.Expires, Secure: c.Secure, HttpOnly: c.HttpOnly,
		})
	}
	s.client.RestoreCookies(cookies)
}

// AuthFetch sends a request with the current token. On 401 it refreshes
// the session once and, if that worked, retries once with the new token;
// otherwise the original 401 response is returned.
func (s *SessionManager) AuthFetch(ctx context.Context, method, target string, body []byte, header http.Header) (*http.Response, error) {
	sent := s.Token()
	resp, err := s.client.Do(ctx, method, target, body, header, sent)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	token, ok := s.refreshAfter(ctx, sent)
	if !ok {
		return resp, nil
	}
	resp.Body.Close()

	return s.client.Do(ctx, method, target, body, header, token)
}

// refreshAfter refreshes the session unless another caller already replaced
// the stale token while this one waited.
func (s *SessionManager) refreshAfter(ctx context.Context, stale string) (string, bool) {
	s.ops.Lock()
	defer s.ops.Unlock()

	if current := s.Token(); current != "" && current != stale {
		return current, true
	}
	if !s.refresh(ctx) {
		return "", false
	}
	return s.Token(), true
}
