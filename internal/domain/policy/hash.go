package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// HashLength is the number of hex characters kept from the SHA-256
// digest. Long enough for audit correlation, short enough to read.
const HashLength = 16

// Hash returns the canonical content hash of a policy document.
// The config is rendered as canonical JSON (map keys sorted, stable
// field order) and digested with SHA-256, so two configs with identical
// field values hash identically regardless of source key order.
func Hash(c *Config) string {
	if c == nil {
		return ""
	}
	return hashCanonical(c)
}

// hashCanonical digests the canonical JSON form of v.
func hashCanonical(v any) string {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		// A Config is always JSON-serializable; this path only fires on
		// programmer error with exotic field types.
		return ""
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:HashLength]
}

// CanonicalJSON renders v as deterministic JSON. The value is
// round-tripped through an untyped tree so that map keys come out in
// encoding/json's sorted order no matter how the input was built.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}
