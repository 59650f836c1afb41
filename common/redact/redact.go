// Package redact strips secret values from strings and structured data
// before they cross the process boundary: log lines, thinking-step
// metadata, audit notices.
//
// Redaction operates on string representations and is best effort. It
// does not replace keeping secrets out of call sites in the first place.
package redact

import "strings"

const placeholder = "[REDACTED]"

// minLength guards against redacting common short substrings.
const minLength = 4

// String replaces every occurrence of each given secret in s with the
// [REDACTED] placeholder. Secrets shorter than four characters are
// ignored.
func String(s string, secrets ...string) string {
	for _, secret := range secrets {
		if len(secret) < minLength {
			continue
		}
		s = strings.ReplaceAll(s, secret, placeholder)
	}
	return s
}

// Map returns a shallow copy of m with the string value of every
// secret-suggesting key (token, password, key, credential, auth, and
// similar) replaced by the placeholder. Non-string values pass through.
func Map(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if str, ok := v.(string); ok && str != "" && sensitiveKey(k) {
			out[k] = placeholder
			continue
		}
		out[k] = v
	}
	return out
}

var sensitiveWords = []string{
	"password", "passwd", "token", "secret", "key", "credential", "auth", "apikey",
}

func sensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, w := range sensitiveWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
