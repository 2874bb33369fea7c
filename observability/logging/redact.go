package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// safeKeys are emitted verbatim by MaskField. Entries are lower case; lookups
// fold the key first.
var safeKeys = map[string]struct{}{
	"method":    {},
	"requestid": {},
	"module":    {},
	"reason":    {},
	"kind":      {},
	"class":     {},
	"field":     {},
	"op":        {},
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// IsAllowlisted reports whether the key is exempt from redaction. Matching is
// case-insensitive.
func IsAllowlisted(key string) bool {
	_, ok := safeKeys[normalizeKey(key)]
	return ok
}

// MaskField returns an attr that redacts value unless key is allowlisted.
// Empty values pass through. The key keeps its original casing.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskCredential redacts an Authorization header but keeps its scheme, so
// operators can tell a malformed header from a wrong token.
func MaskCredential(key, header string) slog.Attr {
	header = strings.TrimSpace(header)
	if header == "" {
		return slog.String(key, "")
	}
	if scheme, _, ok := strings.Cut(header, " "); ok {
		return slog.String(key, scheme+" "+RedactedValue)
	}
	return slog.String(key, RedactedValue)
}
