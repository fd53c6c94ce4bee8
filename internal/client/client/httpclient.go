package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/syntheticsoul/internal/client/models"
	"github.com/dmitrijs2005/syntheticsoul/internal/common"
)

// Options configures an HTTPClient.
type Options struct {
	// BaseURL is the API root, e.g. "https://soul.example/api".
	BaseURL string
	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration
	// ClientID and SessionID are sent with every request when set.
	ClientID  string
	SessionID string
	// Transport overrides the default round tripper (tests).
	Transport http.RoundTripper
}

// HTTPClient implements Client over net/http.
type HTTPClient struct {
	baseURL   string
	base      *url.URL
	http      *http.Client
	clientID  string
	sessionID string
}

var _ Client = (*HTTPClient)(nil)

const refreshPath = "/auth/refresh"

// NewHTTPClient builds an HTTPClient for opts.BaseURL.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("base url %q: %w", opts.BaseURL, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &HTTPClient{
		baseURL: baseURL,
		base:    base,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Jar:       jar,
			Transport: opts.Transport,
		},
		clientID:  opts.ClientID,
		sessionID: opts.SessionID,
	}, nil
}

func (c *HTTPClient) URL(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return c.baseURL + target
}

func (c *HTTPClient) Do(ctx context.Context, method, target string, body []byte, header http.Header, token string) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	target = c.URL(target)
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		req.Header[k] = append([]string(nil), vs...)
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+token)
	}
	if c.clientID != "" {
		req.Header.Set(common.ClientIDHeader, c.clientID)
	}
	if c.sessionID != "" {
		req.Header.Set(common.SessionIDHeader, c.sessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", method, target, ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

func (c *HTTPClient) Guest(ctx context.Context) (string, error) {
	return c.issue(ctx, "guest", "/auth/guest", nil, "", nil)
}

func (c *HTTPClient) Login(ctx context.Context, email string, password []byte) (string, error) {
	payload := map[string]string{"email": email, "password": string(password)}
	return c.issue(ctx, "login", "/auth/login", payload, "", nil)
}

func (c *HTTPClient) Claim(ctx context.Context, token, email, username string, password []byte) (string, error) {
	payload := map[string]string{"email": email, "username": username, "password": string(password)}
	return c.issue(ctx, "claim", "/auth/claim", payload, token, nil)
}

func (c *HTTPClient) Refresh(ctx context.Context, token string) (string, error) {
	header := http.Header{}
	if csrf := c.cookie(common.CSRFCookie); csrf != "" {
		header.Set(common.CSRFHeader, csrf)
	}

	t, err := c.issue(ctx, "refresh", refreshPath, nil, token, header)
	if errors.Is(err, ErrNoToken) {
		return "", nil
	}
	return t, err
}

func (c *HTTPClient) Me(ctx context.Context, token string) (*models.Identity, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/auth/me", nil, nil, token)
	if err != nil {
		return nil, err
	}
	body, err := ReadBody(resp)
	if err != nil {
		return nil, err
	}
	if !ok(resp) {
		return nil, NewHTTPError("me", resp, body)
	}

	var wrapped struct {
		User *models.Identity `json:"user"`
	}
	if err := body.Decode(&wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}

	var bare models.Identity
	if err := body.Decode(&bare); err != nil {
		return nil, fmt.Errorf("me: decode identity: %w", err)
	}
	return &bare, nil
}

func (c *HTTPClient) Logout(ctx context.Context, token string) error {
	resp, err := c.Do(ctx, http.MethodPost, "/auth/logout", nil, nil, token)
	if err != nil {
		return err
	}
	body, err := ReadBody(resp)
	if err != nil {
		return err
	}
	if !ok(resp) {
		return NewHTTPError("logout", resp, body)
	}
	return nil
}

// Cookies returns the cookies the jar would send to the API, including the
// ones scoped to the auth endpoints. Names are unique; the most specific
// path wins.
func (c *HTTPClient) Cookies() []*http.Cookie {
	var out []*http.Cookie
	seen := make(map[string]bool)
	for _, u := range []*url.URL{c.base.JoinPath(refreshPath), c.base} {
		for _, ck := range c.http.Jar.Cookies(u) {
			if seen[ck.Name] {
				continue
			}
			seen[ck.Name] = true
			out = append(out, ck)
		}
	}
	return out
}

func (c *HTTPClient) RestoreCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	c.http.Jar.SetCookies(c.base, cookies)
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) cookie(name string) string {
	for _, ck := range c.Cookies() {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// issue posts to a token-issuing endpoint and returns the new access token.
func (c *HTTPClient) issue(ctx context.Context, op, path string, payload any, token string, header http.Header) (string, error) {
	var raw []byte
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return "", fmt.Errorf("%s: encode: %w", op, err)
		}
	}

	resp, err := c.Do(ctx, http.MethodPost, path, raw, header, token)
	if err != nil {
		return "", err
	}
	body, err := ReadBody(resp)
	if err != nil {
		return "", err
	}
	if !ok(resp) {
		return "", NewHTTPError(op, resp, body)
	}

	var tr models.TokenResponse
	if err := body.Decode(&tr); err != nil || tr.AccessToken == "" {
		return "", fmt.Errorf("%s: %w", op, ErrNoToken)
	}
	return tr.AccessToken, nil
}

func ok(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
