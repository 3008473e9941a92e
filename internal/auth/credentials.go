// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth stores the backend access token encrypted at rest.
//
// The token file holds ENC:base64(salt|nonce|ciphertext) produced with
// AES-256-GCM under a PBKDF2-SHA-256 derived key. The passphrase is supplied
// by the user at save and load time and is never written to disk.
package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// encryptedPrefix marks a credential file payload as encrypted.
const encryptedPrefix = "ENC:"

// nonceSize is the AES-GCM nonce size (12 bytes / 96 bits)
const nonceSize = 12

// keySize is the AES-256 key size (32 bytes / 256 bits)
const keySize = 32

// saltSize is the PBKDF2 salt size
const saltSize = 16

// pbkdf2Iterations follows the OWASP recommendation for PBKDF2-SHA-256.
const pbkdf2Iterations = 600000

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoCredentials indicates no token has been saved yet
	ErrNoCredentials = errors.New("no saved credentials")
	// ErrInvalidCredentialFile indicates the file is not in the expected format
	ErrInvalidCredentialFile = errors.New("invalid credential file format")
	// ErrDecryptionFailed indicates a wrong passphrase or tampered file
	ErrDecryptionFailed = errors.New("decryption failed: wrong passphrase or corrupted file")
)

// =============================================================================
// TOKEN STORAGE
// =============================================================================

// SaveToken encrypts the access token with the passphrase and writes it to
// path with owner-only permissions.
func SaveToken(path, token, passphrase string) error {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt)
	defer zeroBytes(key)

	aead, err := newAEAD(key)
	if err != nil {
		return err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(token), nil)

	payload := make([]byte, 0, saltSize+nonceSize+len(sealed))
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)

	encoded := encryptedPrefix + base64.StdEncoding.EncodeToString(payload)
	return os.WriteFile(path, []byte(encoded), 0600)
}

// LoadToken reads and decrypts the access token saved at path.
func LoadToken(path, passphrase string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoCredentials
	}
	if err != nil {
		return "", err
	}

	content := strings.TrimSpace(string(data))
	if !strings.HasPrefix(content, encryptedPrefix) {
		return "", ErrInvalidCredentialFile
	}

	payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(content, encryptedPrefix))
	if err != nil {
		return "", ErrInvalidCredentialFile
	}
	if len(payload) < saltSize+nonceSize+1 {
		return "", ErrInvalidCredentialFile
	}

	salt := payload[:saltSize]
	nonce := payload[saltSize : saltSize+nonceSize]
	sealed := payload[saltSize+nonceSize:]

	key := deriveKey(passphrase, salt)
	defer zeroBytes(key)

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create AEAD: %w", err)
	}
	return aead, nil
}

// zeroBytes clears key material so it does not linger in crash dumps.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
