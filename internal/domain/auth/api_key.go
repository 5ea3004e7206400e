// Package auth resolves the acting identity for audit attribution.
// Proofgate has no user management; callers present an API key that
// maps to an actor name in a key file, or the run is attributed to
// the system actor.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alexedwards/argon2id"
	"gopkg.in/yaml.v3"
)

// SystemActor is the fallback identity when no API key is presented.
const SystemActor = "system"

// ErrInvalidKey is returned when an API key matches no known entry.
var ErrInvalidKey = errors.New("invalid api key")

// ErrUnknownHashType is returned for unrecognized stored hash formats.
var ErrUnknownHashType = errors.New("unknown hash type")

// KeyEntry maps a stored key hash to an actor name.
type KeyEntry struct {
	// KeyHash is an Argon2id PHC string or a "sha256:"-prefixed hex digest.
	KeyHash string `yaml:"key_hash"`
	// Actor is the identity recorded on audit events for this key.
	Actor string `yaml:"actor"`
}

// Keyring holds the loaded key entries.
type Keyring struct {
	entries []KeyEntry
}

// LoadKeyring reads a YAML key file. A missing path yields an empty
// keyring: key auth is optional and absence is not an error.
func LoadKeyring(path string) (*Keyring, error) {
	if path == "" {
		return &Keyring{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Keyring{}, nil
		}
		return nil, fmt.Errorf("read key file: %w", err)
	}
	var entries []KeyEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}
	return &Keyring{entries: entries}, nil
}

// ResolveActor returns the actor for a raw key. An empty key resolves
// to SystemActor. A non-empty key that matches nothing is an error:
// presenting a bad key is not the same as presenting none.
func (k *Keyring) ResolveActor(rawKey string) (string, error) {
	if rawKey == "" {
		return SystemActor, nil
	}
	for _, entry := range k.entries {
		match, err := VerifyKey(rawKey, entry.KeyHash)
		if err != nil {
			continue
		}
		if match {
			return entry.Actor, nil
		}
	}
	return "", ErrInvalidKey
}

// argon2idParams follows the OWASP minimum for Argon2id.
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashKey returns an Argon2id hash of the raw key in PHC format.
func HashKey(rawKey string) (string, error) {
	return argon2id.CreateHash(rawKey, argon2idParams)
}

// VerifyKey verifies a raw key against a stored hash. Argon2id PHC
// strings and "sha256:"-prefixed hex digests are both accepted; the
// sha256 form supports keys seeded by shell one-liners.
func VerifyKey(rawKey, storedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(storedHash, "$argon2id$"):
		return safeArgon2idCompare(rawKey, storedHash)

	case strings.HasPrefix(storedHash, "sha256:"):
		expected := strings.TrimPrefix(storedHash, "sha256:")
		sum := sha256.Sum256([]byte(rawKey))
		computed := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(expected)) == 1, nil

	default:
		return false, ErrUnknownHashType
	}
}

// safeArgon2idCompare wraps argon2id.ComparePasswordAndHash with panic
// recovery: the underlying library panics on malformed PHC parameters.
func safeArgon2idCompare(rawKey, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(rawKey, storedHash)
}
