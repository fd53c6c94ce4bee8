// Package models defines the client-side view of SyntheticSoul API data:
// the session principal, chat exchange results, asynchronous jobs and the
// agent telemetry shown next to the conversation.
package models

// Identity is the principal behind the current bearer token, as reported by
// /auth/me. Guest distinguishes an anonymous session from a claimed account.
type Identity struct {
	ID       string  `json:"id,omitempty"`
	Username string  `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Guest    bool    `json:"guest,omitempty"`
}

// DisplayName is the name shown in prompts: "@USERNAME" or "GUEST".
func (i *Identity) DisplayName() string {
	if i == nil || i.Username == "" {
		return "GUEST"
	}
	return "@" + upper(i.Username)
}

// TokenResponse is the body returned by every endpoint that issues a token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}
