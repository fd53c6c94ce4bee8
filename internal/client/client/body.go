package client

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// Body is a response body read by ReadBody.
type Body struct {
	// IsJSON is set when the response declared a JSON content type.
	IsJSON bool
	// Raw holds the bytes as received.
	Raw []byte
	// JSON is the decoded value, or an empty object if decoding failed.
	JSON any
	// Text is Raw as a string.
	Text string
}

// Decode unmarshals the raw JSON into v.
func (b Body) Decode(v any) error {
	if !b.IsJSON || len(b.Raw) == 0 {
		return fmt.Errorf("body is not JSON")
	}
	return json.Unmarshal(b.Raw, v)
}

// ReadBody reads and closes resp.Body.
func ReadBody(resp *http.Response) (Body, error) {
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Body{}, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	b := Body{Raw: raw, Text: string(raw)}
	if !isJSON(resp.Header.Get("Content-Type")) {
		return b, nil
	}

	b.IsJSON = true
	if err := json.Unmarshal(raw, &b.JSON); err != nil {
		b.JSON = map[string]any{}
	}
	return b, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// MessageOf extracts a human-readable message from an API error body. The
// first present of error.message, error.code, detail, error (as a string)
// and message wins.
func MessageOf(v any) string {
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}

	if e, ok := obj["error"].(map[string]any); ok {
		if s := stringOf(e["message"]); s != "" {
			return s
		}
		if s := stringOf(e["code"]); s != "" {
			return s
		}
	}
	if s := detailOf(obj["detail"]); s != "" {
		return s
	}
	if s, ok := obj["error"].(string); ok && s != "" {
		return s
	}
	return stringOf(obj["message"])
}

// detailOf handles both a plain detail string and a list of validation
// errors ({"detail": [{"msg": "..."}]}).
func detailOf(v any) string {
	switch d := v.(type) {
	case string:
		return d
	case []any:
		for _, item := range d {
			if m, ok := item.(map[string]any); ok {
				if s := stringOf(m["msg"]); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func stringOf(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return fmt.Sprintf("%g", s)
	}
	return ""
}
