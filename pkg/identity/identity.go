// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package identity provides the user and group entities Doorman
// authenticates and authorizes, together with their repository contracts.
package identity

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field names an identifier attribute used to look up identities.
type Field string

// Identifier fields an instance can be configured with.
const (
	FieldUsername Field = "username"
	FieldEmail    Field = "email"
)

// Valid reports whether the field is a known identifier attribute.
func (f Field) Valid() bool {
	return f == FieldUsername || f == FieldEmail
}

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that start with a letter and contain only
// letters, numbers, and underscores.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Identity is a user account.
//
// LoginHash is the rotating per-session token: empty when logged out, and
// replaced on every successful login so that a session carrying a stale
// value fails verification.
type Identity struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	LoginHash    string
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// persisted distinguishes stored identities from the guest placeholder
	// returned when no login can be established.
	persisted bool
}

// New creates a validated, persisted Identity.
func New(username, email, passwordHash string) (*Identity, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("IDENTITY_INVALID").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &Identity{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
		persisted:    true,
	}, nil
}

// Guest returns a fresh, unpersisted placeholder identity. Callers get a
// non-nil user to read default fields from even when nobody is logged in.
func Guest() *Identity {
	return &Identity{}
}

// IsGuest reports whether the identity is an unpersisted placeholder.
func (i *Identity) IsGuest() bool {
	return !i.persisted
}

// MarkPersisted flags an identity as stored. Repositories call this when
// hydrating rows.
func (i *Identity) MarkPersisted() {
	i.persisted = true
}

// IdentifierValue returns the value of the configured identifier field.
func (i *Identity) IdentifierValue(field Field) string {
	if field == FieldEmail {
		return i.Email
	}
	return i.Username
}

// ValidateUsername validates a username: MinUsernameLength to
// MaxUsernameLength characters, starting with a letter, containing only
// letters, numbers, and underscores.
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("IDENTITY_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("IDENTITY_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("IDENTITY_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("IDENTITY_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// Repository manages identity persistence.
type Repository interface {
	// Create stores a new identity.
	Create(ctx context.Context, ident *Identity) error

	// GetByID retrieves an identity by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Identity, error)

	// GetByField retrieves an identity by an identifier field value
	// (case-insensitive). Returns ErrNotFound on miss.
	GetByField(ctx context.Context, field Field, value string) (*Identity, error)

	// GetByCredentials retrieves the identity whose identifier field and
	// password hash both match. Returns ErrNotFound on miss.
	GetByCredentials(ctx context.Context, field Field, value, passwordHash string) (*Identity, error)

	// Update updates an existing identity.
	Update(ctx context.Context, ident *Identity) error

	// UpdatePassword updates only the password hash, and clears the login
	// hash so existing sessions stop verifying.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// RotateLoginHash atomically replaces the stored login hash. The
	// update is a single row write: with near-simultaneous logins the last
	// writer wins and earlier sessions fail their next check.
	RotateLoginHash(ctx context.Context, id ulid.ULID, loginHash string) error

	// CountByField counts identities with the given field value, optionally
	// excluding one ID (uniqueness checks during profile edits).
	CountByField(ctx context.Context, field Field, value string, excludeID *ulid.ULID) (int64, error)
}
