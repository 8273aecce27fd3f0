// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package reset

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/torchedm/doorman/pkg/credential"
	"github.com/torchedm/doorman/pkg/identity"
)

// Service runs the reset flow for one instance configuration.
type Service struct {
	idents identity.Repository
	resets Repository
	hasher credential.Hasher
	field  identity.Field
	salt   string
	expiry time.Duration
}

// NewService creates a reset service. A non-positive expiry falls back
// to TokenExpiry.
func NewService(idents identity.Repository, resets Repository, hasher credential.Hasher, field identity.Field, salt string, expiry time.Duration) (*Service, error) {
	if idents == nil || resets == nil || hasher == nil {
		return nil, oops.In("reset").Code("RESET_INVALID").
			Errorf("identity repository, reset repository, and hasher are required")
	}
	if !field.Valid() {
		return nil, oops.In("reset").Code("RESET_INVALID").
			With("field", string(field)).
			Errorf("unknown identifier field")
	}
	if expiry <= 0 {
		expiry = TokenExpiry
	}
	return &Service{
		idents: idents,
		resets: resets,
		hasher: hasher,
		field:  field,
		salt:   salt,
		expiry: expiry,
	}, nil
}

// Request issues a reset token for an identifier. An unknown identifier
// returns an empty token with no error so callers cannot probe which
// accounts exist.
func (s *Service) Request(ctx context.Context, identifier string) (string, error) {
	ident, err := s.idents.GetByField(ctx, s.field, identifier)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return "", nil
		}
		return "", oops.In("reset").Code("RESET_REQUEST_FAILED").
			With("operation", "resolve identifier").
			Wrap(err)
	}

	token, hash, err := GenerateToken()
	if err != nil {
		return "", err
	}

	req, err := NewRequest(ident.ID, hash, time.Now().Add(s.expiry))
	if err != nil {
		return "", err
	}
	if err := s.resets.Create(ctx, req); err != nil {
		return "", oops.In("reset").Code("RESET_REQUEST_FAILED").
			With("operation", "store request").
			Wrap(err)
	}
	return token, nil
}

// Validate checks a token and returns the identity it belongs to.
func (s *Service) Validate(ctx context.Context, token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, oops.In("reset").Code("RESET_TOKEN_EMPTY").
			Errorf("reset token cannot be empty")
	}

	req, err := s.resets.GetByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ulid.ULID{}, oops.In("reset").Code("RESET_TOKEN_INVALID").
				Errorf("reset token not found")
		}
		return ulid.ULID{}, oops.In("reset").Code("RESET_VALIDATE_FAILED").
			With("operation", "lookup token").
			Wrap(err)
	}
	if req.IsExpired() {
		return ulid.ULID{}, oops.In("reset").Code("RESET_TOKEN_EXPIRED").
			Errorf("reset token has expired")
	}
	return req.IdentityID, nil
}

// Consume sets a new password through a valid token. The password is
// hashed with the instance salt and the identity's login hash is
// cleared, so every live session stops verifying. All outstanding
// tokens for the identity are spent.
func (s *Service) Consume(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return oops.In("reset").Code("RESET_PASSWORD_EMPTY").
			Errorf("new password cannot be empty")
	}

	identityID, err := s.Validate(ctx, token)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword, s.salt)
	if err != nil {
		return oops.In("reset").Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}
	if err := s.idents.UpdatePassword(ctx, identityID, hash); err != nil {
		return oops.In("reset").Code("RESET_PASSWORD_FAILED").
			With("operation", "update password").
			Wrap(err)
	}

	// Cleanup. The password update already succeeded; leftover rows
	// expire on their own.
	_ = s.resets.DeleteByIdentity(ctx, identityID)
	return nil
}
