// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package credential derives and verifies password hashes.
package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/samber/oops"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. The iteration count and key length are part of the
// stored-hash contract; changing them invalidates every persisted hash.
const (
	pbkdf2Iterations = 10000
	pbkdf2KeyLen     = 32 // output length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("CRED_EMPTY_PASSWORD").Errorf("password cannot be empty")

// Hasher provides password hashing and verification.
type Hasher interface {
	// Hash derives a deterministic hash of password under salt.
	Hash(password, salt string) (string, error)

	// Verify checks password against an expected hash in constant time.
	// Returns (true, nil) on match and (false, nil) on mismatch.
	Verify(password, salt, expected string) (bool, error)
}

// PBKDF2Hasher implements Hasher using PBKDF2-SHA256.
//
// The derivation is deterministic for a given (password, salt) pair: the
// salt is per-instance configuration, not per-credential, so equality
// lookups against stored hashes stay possible.
type PBKDF2Hasher struct{}

// NewPBKDF2Hasher creates a new PBKDF2Hasher.
func NewPBKDF2Hasher() *PBKDF2Hasher {
	return &PBKDF2Hasher{}
}

// Hash derives the base64-encoded PBKDF2-SHA256 hash of password.
func (h *PBKDF2Hasher) Hash(password, salt string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return base64.StdEncoding.EncodeToString(key), nil
}

// Verify recomputes the hash and compares in constant time.
func (h *PBKDF2Hasher) Verify(password, salt, expected string) (bool, error) {
	computed, err := h.Hash(password, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(expected)) == 1, nil
}

// Compile-time interface check.
var _ Hasher = (*PBKDF2Hasher)(nil)
