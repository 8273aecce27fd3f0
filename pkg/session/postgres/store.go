// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package postgres implements session.Store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/torchedm/doorman/pkg/session"
)

// poolIface is the subset of pgxpool.Pool the store needs. pgxmock
// satisfies it in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store persists one session's bound data as rows in doorman_sessions,
// keyed by the session token. Rotate re-keys every row in one transaction
// so bound data survives token regeneration.
type Store struct {
	pool  poolIface
	token string
}

// NewStore opens the session identified by token, minting a fresh token
// when none is supplied (a new visitor).
func NewStore(pool poolIface, token string) (*Store, error) {
	if pool == nil {
		return nil, oops.Code("SESSION_STORE_INVALID").Errorf("pool is required")
	}
	if token == "" {
		var err error
		token, err = session.NewToken()
		if err != nil {
			return nil, err
		}
	}
	return &Store{pool: pool, token: token}, nil
}

// Token returns the current session token.
func (s *Store) Token() string {
	return s.token
}

// Get returns the value for key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM doorman_sessions
		WHERE token = $1 AND key = $2
	`, s.token, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, oops.Code("SESSION_GET_FAILED").
			With("operation", "select session value").
			With("key", key).
			Wrap(err)
	}
	return value, true, nil
}

// Set writes a key, overwriting any existing value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO doorman_sessions (token, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, s.token, key, value, time.Now())
	if err != nil {
		return oops.Code("SESSION_SET_FAILED").
			With("operation", "upsert session value").
			With("key", key).
			Wrap(err)
	}
	return nil
}

// Delete removes a key. Absent keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM doorman_sessions WHERE token = $1 AND key = $2
	`, s.token, key)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session value").
			With("key", key).
			Wrap(err)
	}
	return nil
}

// Rotate regenerates the session token, re-keying bound rows atomically.
func (s *Store) Rotate(ctx context.Context) error {
	next, err := session.NewToken()
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return oops.Code("SESSION_ROTATE_FAILED").With("operation", "begin").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `
		UPDATE doorman_sessions SET token = $2, updated_at = $3
		WHERE token = $1
	`, s.token, next, time.Now()); err != nil {
		return oops.Code("SESSION_ROTATE_FAILED").With("operation", "re-key rows").Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("SESSION_ROTATE_FAILED").With("operation", "commit").Wrap(err)
	}

	s.token = next
	return nil
}

// DeleteStale removes session rows untouched since the cutoff and returns
// the number of rows deleted. Intended for a periodic sweep.
func DeleteStale(ctx context.Context, pool poolIface, cutoff time.Time) (int64, error) {
	result, err := pool.Exec(ctx, `
		DELETE FROM doorman_sessions WHERE updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").
			With("operation", "delete stale sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ session.Store = (*Store)(nil)
