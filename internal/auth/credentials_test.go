// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// ROUNDTRIP TESTS
// =============================================================================

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")

	if err := SaveToken(path, "sk-manus-abc123", "correct horse"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}

	token, err := LoadToken(path, "correct horse")
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if token != "sk-manus-abc123" {
		t.Errorf("got %q", token)
	}
}

func TestTokenNotStoredInPlaintext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")

	if err := SaveToken(path, "sk-manus-secret-value", "pw"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "secret-value") {
		t.Error("token appears in plaintext on disk")
	}
	if !strings.HasPrefix(string(raw), "ENC:") {
		t.Errorf("missing encrypted prefix: %q", raw[:16])
	}
}

func TestWrongPassphraseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")

	if err := SaveToken(path, "token", "right"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}

	_, err := LoadToken(path, "wrong")
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadToken(filepath.Join(t.TempDir(), "nope"), "pw")
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("expected ErrNoCredentials, got %v", err)
	}
}

func TestLoadGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	if err := os.WriteFile(path, []byte("not encrypted at all"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadToken(path, "pw")
	if !errors.Is(err, ErrInvalidCredentialFile) {
		t.Errorf("expected ErrInvalidCredentialFile, got %v", err)
	}
}
