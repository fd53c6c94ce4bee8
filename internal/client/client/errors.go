package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoToken      = errors.New("no access_token in response")
)

// HTTPError is a non-success response from the API.
type HTTPError struct {
	// Op names the call that failed, e.g. "login" or "job status".
	Op         string
	StatusCode int
	// Message is the server-provided explanation, if any.
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// UserMessage returns the text to show a user for err: the server's own
// message when there is one, otherwise err's text.
func UserMessage(err error) string {
	var he *HTTPError
	if errors.As(err, &he) {
		if he.Message != "" {
			return he.Message
		}
		return fmt.Sprintf("%s %d", he.Op, he.StatusCode)
	}
	return err.Error()
}

func NewHTTPError(op string, resp *http.Response, body Body) *HTTPError {
	msg := MessageOf(body.JSON)
	if msg == "" && !body.IsJSON {
		msg = body.Text
	}
	return &HTTPError{Op: op, StatusCode: resp.StatusCode, Message: msg}
}
