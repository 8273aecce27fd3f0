// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package postgres provides the PostgreSQL reset request repository.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/torchedm/doorman/pkg/identity"
	"github.com/torchedm/doorman/pkg/reset"
)

// poolIface is the subset of pgxpool.Pool the repository uses.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements reset.Repository using PostgreSQL.
type Repository struct {
	pool poolIface
}

var _ reset.Repository = (*Repository)(nil)

// NewRepository creates a reset request repository.
func NewRepository(pool poolIface) *Repository {
	return &Repository{pool: pool}
}

// Create stores a new reset request.
func (r *Repository) Create(ctx context.Context, req *reset.Request) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doorman_reset_requests (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, req.ID.String(), req.IdentityID.String(), req.TokenHash, req.ExpiresAt, req.CreatedAt)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert reset request").
			With("user_id", req.IdentityID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a reset request by its token hash.
func (r *Repository) GetByTokenHash(ctx context.Context, tokenHash string) (*reset.Request, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM doorman_reset_requests
		WHERE token_hash = $1
	`, tokenHash)

	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").
			With("operation", "get reset request by token hash").
			Wrap(err)
	}
	return req, nil
}

// DeleteByIdentity removes all reset requests for an identity.
func (r *Repository) DeleteByIdentity(ctx context.Context, identityID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM doorman_reset_requests WHERE user_id = $1
	`, identityID.String())
	if err != nil {
		return oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete reset requests for user").
			With("user_id", identityID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes expired reset requests.
func (r *Repository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM doorman_reset_requests WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete expired reset requests").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func scanRequest(row pgx.Row) (*reset.Request, error) {
	var (
		req   reset.Request
		id    string
		ident string
	)
	if err := row.Scan(&id, &ident, &req.TokenHash, &req.ExpiresAt, &req.CreatedAt); err != nil {
		return nil, err
	}

	parsed, err := ulid.Parse(id)
	if err != nil {
		return nil, oops.Code("RESET_SCAN_FAILED").With("id", id).Wrap(err)
	}
	req.ID = parsed

	parsed, err = ulid.Parse(ident)
	if err != nil {
		return nil, oops.Code("RESET_SCAN_FAILED").With("user_id", ident).Wrap(err)
	}
	req.IdentityID = parsed

	return &req, nil
}
