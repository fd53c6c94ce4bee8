package logging

// secretKeys never reach a log sink in clear text.
var secretKeys = map[string]bool{
	"token":         true,
	"access_token":  true,
	"password":      true,
	"authorization": true,
}

const redacted = "[REDACTED]"

// redact returns args with the value of every secret key replaced.
// The input slice is not modified.
func redact(args []any) []any {
	var out []any
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || !secretKeys[key] {
			continue
		}
		if out == nil {
			out = append([]any(nil), args...)
		}
		out[i+1] = redacted
	}
	if out == nil {
		return args
	}
	return out
}
