// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package reset implements single-use, expiring password reset tokens.
// The plaintext token goes to the caller for out-of-band delivery; only
// its hash is stored.
package reset

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token configuration.
const (
	TokenBytes  = 32        // 32 bytes = 64 hex chars
	TokenExpiry = time.Hour // default expiry
)

// Request is a pending password reset.
type Request struct {
	ID         ulid.ULID
	IdentityID ulid.ULID
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// NewRequest creates a reset request for an identity.
func NewRequest(identityID ulid.ULID, tokenHash string, expiresAt time.Time) (*Request, error) {
	if tokenHash == "" {
		return nil, oops.In("reset").Code("RESET_INVALID").
			Errorf("token hash is required")
	}
	return &Request{
		ID:         ulid.Make(),
		IdentityID: identityID,
		TokenHash:  tokenHash,
		ExpiresAt:  expiresAt,
		CreatedAt:  time.Now(),
	}, nil
}

// IsExpired reports whether the token has expired.
func (r *Request) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// GenerateToken creates a secure random token and its hash. The
// plaintext token is returned to the caller; the hash is stored.
func GenerateToken() (token, hash string, err error) {
	raw := make([]byte, TokenBytes)
	if _, err = rand.Read(raw); err != nil {
		return "", "", oops.In("reset").Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	token = hex.EncodeToString(raw)
	return token, hashToken(token), nil
}

// VerifyToken checks a plaintext token against a stored hash in
// constant time.
func VerifyToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := hashToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// Repository manages reset request persistence.
type Repository interface {
	// Create stores a new reset request.
	Create(ctx context.Context, req *Request) error

	// GetByTokenHash retrieves a request by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Request, error)

	// DeleteByIdentity removes all requests for an identity.
	DeleteByIdentity(ctx context.Context, identityID ulid.ULID) error

	// DeleteExpired removes expired requests and reports how many.
	DeleteExpired(ctx context.Context) (int64, error)
}
