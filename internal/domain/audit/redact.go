package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// RedactedPlaceholder replaces sensitive values before storage or hashing.
const RedactedPlaceholder = "***REDACTED***"

// argsHashLength is the number of hex characters kept from the SHA-256
// digest of canonical args.
const argsHashLength = 16

// sensitiveKeywords lists substrings that mark an argument key as
// sensitive. Matching is case-insensitive.
var sensitiveKeywords = []string{
	"password", "passwd", "token", "secret", "api_key", "apikey",
	"cookie", "authorization", "credential", "private_key", "privatekey",
}

// RedactArgs returns a copy of args with sensitive values replaced by
// RedactedPlaceholder. Nested maps are redacted recursively. Redaction
// is mandatory before any argument map is hashed or stored.
func RedactArgs(args map[string]any) map[string]any {
	if len(args) == 0 {
		return args
	}
	redacted := make(map[string]any, len(args))
	for k, v := range args {
		switch {
		case isSensitiveKey(k):
			redacted[k] = RedactedPlaceholder
		default:
			if nested, ok := v.(map[string]any); ok {
				redacted[k] = RedactArgs(nested)
			} else {
				redacted[k] = v
			}
		}
	}
	return redacted
}

// isSensitiveKey checks if a key name indicates sensitive data.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// HashArgs returns the truncated SHA-256 digest of the canonical JSON
// of the redacted argument map. encoding/json sorts map keys, so the
// digest is independent of insertion order.
func HashArgs(args map[string]any) string {
	raw, err := json.Marshal(RedactArgs(args))
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:argsHashLength]
}
