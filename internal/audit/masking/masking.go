package masking

import "strings"

const redacted = "****"

// Key fragments that mark a metadata value as secret-bearing. Matched
// case-insensitively against the full key.
var sensitiveFragments = []string{"token", "secret", "password", "credential"}

// MaskSecret redacts a credential while keeping its identifying prefix and
// trailing characters. "st_live_key_2ABC_deadbeef" becomes
// "st_live_key_2ABC_****beef"; values without an underscore keep only the
// last four characters. Masking is idempotent.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if strings.HasPrefix(remainder, redacted) {
		return trimmed
	}
	if len(remainder) <= 4 {
		return prefix + redacted
	}

	return prefix + redacted + remainder[len(remainder)-4:]
}

// Sanitize returns a copy of metadata with values under secret-bearing keys
// masked. Nested maps and slices are walked; values under other keys pass
// through untouched. Returns nil when nothing remains.
func Sanitize(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(metadata))
	for key, value := range metadata {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if isSensitiveKey(trimmedKey) {
			sanitized[trimmedKey] = maskAny(value)
			continue
		}
		sanitized[trimmedKey] = sanitizeValue(value)
	}

	if len(sanitized) == 0 {
		return nil
	}
	return sanitized
}

// sanitizeValue recurses into containers so nested secret-bearing keys are
// still caught.
func sanitizeValue(value any) any {
	switch cast := value.(type) {
	case map[string]any:
		return Sanitize(cast)
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, sanitizeValue(item))
		}
		return out
	default:
		return value
	}
}

// maskAny masks every string reachable from a value that sits under a
// secret-bearing key.
func maskAny(value any) any {
	switch cast := value.(type) {
	case string:
		return MaskSecret(cast)
	case map[string]any:
		out := make(map[string]any, len(cast))
		for key, item := range cast {
			out[key] = maskAny(item)
		}
		return out
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, maskAny(item))
		}
		return out
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	lowered := strings.ToLower(key)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}
	return false
}

func splitPrefix(value string) (string, string) {
	lastUnderscore := strings.LastIndex(value, "_")
	if lastUnderscore == -1 || lastUnderscore == len(value)-1 {
		return "", value
	}
	return value[:lastUnderscore+1], value[lastUnderscore+1:]
}
