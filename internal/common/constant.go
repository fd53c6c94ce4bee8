// Package common contains constants shared by the transport, the session
// manager and the local store.
package common

// Request headers understood by the agent API.
const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
	CSRFHeader          = "X-CSRF-Token"
	ClientIDHeader      = "X-Client-Id"
	SessionIDHeader     = "X-Session-Id"
	RetryAfterHeader    = "Retry-After"
)

// CSRFCookie is the readable cookie that carries the anti-forgery token
// paired with the HTTP-only refresh cookie.
const CSRFCookie = "csrf_token"

// Local storage keys.
const (
	TokenKey     = "ss_token"
	CookiesKey   = "ss_cookies"
	ClientIDKey  = "synthetic-soul.clientId"
	SessionIDKey = "synthetic-soul.sessionId"
)
