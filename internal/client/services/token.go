package services

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims is what the client can learn from a bearer token without
// the signing key.
type tokenClaims struct {
	Subject   string
	ExpiresAt time.Time
}

// parseToken reads the claims of a JWT without verifying its signature.
// Opaque tokens yield ok == false.
func parseToken(token string) (tokenClaims, bool) {
	if token == "" {
		return tokenClaims{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return tokenClaims{}, false
	}

	var tc tokenClaims
	if sub, err := claims.GetSubject(); err == nil {
		tc.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tc.ExpiresAt = exp.Time
	}
	return tc, true
}
