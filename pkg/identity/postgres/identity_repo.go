// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package postgres implements the identity repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/torchedm/doorman/pkg/identity"
)

// poolIface is the subset of pgxpool.Pool the repositories need. pgxmock
// satisfies it in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IdentityRepository implements identity.Repository using PostgreSQL.
type IdentityRepository struct {
	pool poolIface
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(pool poolIface) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

const identityColumns = `id, username, email, password_hash, login_hash, last_login, created_at, updated_at`

// Create stores a new identity.
func (r *IdentityRepository) Create(ctx context.Context, ident *identity.Identity) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doorman_users (id, username, email, password_hash, login_hash, last_login, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
	`,
		ident.ID.String(),
		ident.Username,
		ident.Email,
		ident.PasswordHash,
		ident.LoginHash,
		ident.LastLogin,
		ident.CreatedAt,
		ident.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("IDENTITY_DUPLICATE").
				With("username", ident.Username).
				Wrap(err)
		}
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "insert user").
			With("username", ident.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an identity by ID.
func (r *IdentityRepository) GetByID(ctx context.Context, id ulid.ULID) (*identity.Identity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM doorman_users
		WHERE id = $1
	`, id.String())

	ident, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return ident, nil
}

// GetByField retrieves an identity by identifier field value
// (case-insensitive).
func (r *IdentityRepository) GetByField(ctx context.Context, field identity.Field, value string) (*identity.Identity, error) {
	if !field.Valid() {
		return nil, oops.Code("IDENTITY_INVALID_FIELD").
			With("field", string(field)).
			Errorf("unknown identifier field")
	}

	// field is one of the two known column names; never caller-controlled SQL.
	row := r.pool.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM doorman_users
		WHERE LOWER(`+string(field)+`) = LOWER($1)
	`, value)

	ident, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").
			With("field", string(field)).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_GET_BY_FIELD_FAILED").
			With("operation", "get user by field").
			With("field", string(field)).
			Wrap(err)
	}
	return ident, nil
}

// GetByCredentials retrieves the identity matching both the identifier
// field value and the password hash.
func (r *IdentityRepository) GetByCredentials(ctx context.Context, field identity.Field, value, passwordHash string) (*identity.Identity, error) {
	if !field.Valid() {
		return nil, oops.Code("IDENTITY_INVALID_FIELD").
			With("field", string(field)).
			Errorf("unknown identifier field")
	}

	row := r.pool.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM doorman_users
		WHERE LOWER(`+string(field)+`) = LOWER($1) AND password_hash = $2
	`, value, passwordHash)

	ident, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").
			With("field", string(field)).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_GET_BY_CREDENTIALS_FAILED").
			With("operation", "get user by credentials").
			With("field", string(field)).
			Wrap(err)
	}
	return ident, nil
}

// Update updates an existing identity.
func (r *IdentityRepository) Update(ctx context.Context, ident *identity.Identity) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE doorman_users
		SET username = $2, email = $3, password_hash = $4,
		    login_hash = NULLIF($5, ''), last_login = $6, updated_at = $7
		WHERE id = $1
	`,
		ident.ID.String(),
		ident.Username,
		ident.Email,
		ident.PasswordHash,
		ident.LoginHash,
		ident.LastLogin,
		time.Now(),
	)
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_FAILED").
			With("operation", "update user").
			With("id", ident.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").
			With("id", ident.ID.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// UpdatePassword updates the password hash and clears the login hash so
// existing sessions stop verifying.
func (r *IdentityRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE doorman_users
		SET password_hash = $2, login_hash = NULL, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// RotateLoginHash atomically replaces the stored login hash and stamps the
// login time. Single row write: the last of two concurrent logins wins.
func (r *IdentityRepository) RotateLoginHash(ctx context.Context, id ulid.ULID, loginHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE doorman_users
		SET login_hash = NULLIF($2, ''), last_login = $3, updated_at = $3
		WHERE id = $1
	`, id.String(), loginHash, time.Now())
	if err != nil {
		return oops.Code("IDENTITY_ROTATE_HASH_FAILED").
			With("operation", "rotate login hash").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// CountByField counts identities holding a field value, optionally
// excluding one ID.
func (r *IdentityRepository) CountByField(ctx context.Context, field identity.Field, value string, excludeID *ulid.ULID) (int64, error) {
	if !field.Valid() {
		return 0, oops.Code("IDENTITY_INVALID_FIELD").
			With("field", string(field)).
			Errorf("unknown identifier field")
	}

	var exclude any
	if excludeID != nil {
		exclude = excludeID.String()
	}

	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM doorman_users
		WHERE LOWER(`+string(field)+`) = LOWER($1) AND ($2::text IS NULL OR id != $2)
	`, value, exclude).Scan(&count)
	if err != nil {
		return 0, oops.Code("IDENTITY_COUNT_FAILED").
			With("operation", "count users by field").
			With("field", string(field)).
			Wrap(err)
	}
	return count, nil
}

// scanIdentity scans a single row into an Identity. Callers handle
// pgx.ErrNoRows.
func scanIdentity(row pgx.Row) (*identity.Identity, error) {
	var (
		idStr     string
		username  string
		email     string
		hash      string
		loginHash *string
		lastLogin *time.Time
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&idStr, &username, &email, &hash, &loginHash, &lastLogin, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("IDENTITY_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("IDENTITY_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}

	ident := &identity.Identity{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		LastLogin:    lastLogin,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
	if loginHash != nil {
		ident.LoginHash = *loginHash
	}
	ident.MarkPersisted()
	return ident, nil
}

// Compile-time interface check.
var _ identity.Repository = (*IdentityRepository)(nil)
