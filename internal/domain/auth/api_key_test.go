package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func sha256Hash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "sha256:" + hex.EncodeToString(sum[:])
}

func TestVerifyKey_SHA256(t *testing.T) {
	t.Parallel()

	stored := sha256Hash("my-key")

	match, err := VerifyKey("my-key", stored)
	if err != nil || !match {
		t.Errorf("VerifyKey(correct) = %v, %v, want true, nil", match, err)
	}

	match, err = VerifyKey("wrong-key", stored)
	if err != nil || match {
		t.Errorf("VerifyKey(wrong) = %v, %v, want false, nil", match, err)
	}
}

func TestVerifyKey_Argon2id(t *testing.T) {
	t.Parallel()

	stored, err := HashKey("my-key")
	if err != nil {
		t.Fatalf("HashKey: %v", err)
	}

	match, err := VerifyKey("my-key", stored)
	if err != nil || !match {
		t.Errorf("VerifyKey(correct) = %v, %v, want true, nil", match, err)
	}

	match, err = VerifyKey("nope", stored)
	if err != nil || match {
		t.Errorf("VerifyKey(wrong) = %v, %v, want false, nil", match, err)
	}
}

func TestVerifyKey_UnknownFormat(t *testing.T) {
	t.Parallel()

	if _, err := VerifyKey("key", "md5:abcdef"); !errors.Is(err, ErrUnknownHashType) {
		t.Errorf("VerifyKey() error = %v, want ErrUnknownHashType", err)
	}
}

func TestKeyring_ResolveActor(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keys.yaml")
	content := "- key_hash: \"" + sha256Hash("ci-key") + "\"\n  actor: ci-runner\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	kr, err := LoadKeyring(path)
	if err != nil {
		t.Fatalf("LoadKeyring: %v", err)
	}

	actor, err := kr.ResolveActor("ci-key")
	if err != nil || actor != "ci-runner" {
		t.Errorf("ResolveActor(ci-key) = %q, %v, want ci-runner, nil", actor, err)
	}

	if _, err := kr.ResolveActor("bad-key"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("ResolveActor(bad-key) error = %v, want ErrInvalidKey", err)
	}

	actor, err = kr.ResolveActor("")
	if err != nil || actor != SystemActor {
		t.Errorf("ResolveActor(empty) = %q, %v, want system, nil", actor, err)
	}
}

func TestLoadKeyring_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	kr, err := LoadKeyring(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadKeyring: %v", err)
	}
	if actor, err := kr.ResolveActor(""); err != nil || actor != SystemActor {
		t.Errorf("empty keyring ResolveActor = %q, %v", actor, err)
	}
}
