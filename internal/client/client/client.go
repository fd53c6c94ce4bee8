package client

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/syntheticsoul/internal/client/models"
)

// Client is the transport contract used by the services layer.
type Client interface {
	// URL resolves a path against the API base; absolute URLs pass through.
	URL(target string) string

	// Do sends one request. token, when non-empty, is sent as a bearer
	// credential. body may be nil. The caller owns the response body.
	Do(ctx context.Context, method, target string, body []byte, header http.Header, token string) (*http.Response, error)

	Guest(ctx context.Context) (string, error)
	Login(ctx context.Context, email string, password []byte) (string, error)
	Claim(ctx context.Context, token, email, username string, password []byte) (string, error)
	// Refresh may return an empty token when the server only rotated the
	// side-channel cookie.
	Refresh(ctx context.Context, token string) (string, error)
	Me(ctx context.Context, token string) (*models.Identity, error)
	Logout(ctx context.Context, token string) error

	// Cookies returns the cookies the API set for the base URL.
	Cookies() []*http.Cookie
	RestoreCookies(cookies []*http.Cookie)

	Close() error
}
