// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/torchedm/doorman/pkg/identity"
	"github.com/torchedm/doorman/pkg/privilege"
)

// PrivilegeRepository implements identity.PrivilegeRepository using
// PostgreSQL. Rows hold the decomposed (object, action, object_id) tuple
// with exactly one of user_id/group_id set, enforced by a CHECK constraint.
type PrivilegeRepository struct {
	pool poolIface
}

// NewPrivilegeRepository creates a new PrivilegeRepository.
func NewPrivilegeRepository(pool poolIface) *PrivilegeRepository {
	return &PrivilegeRepository{pool: pool}
}

// ownerColumn maps an owner kind to its foreign-key column.
func ownerColumn(owner identity.PrivilegeOwner) (string, error) {
	switch owner {
	case identity.OwnerIdentity:
		return "user_id", nil
	case identity.OwnerGroup:
		return "group_id", nil
	default:
		return "", oops.Code("PRIVILEGE_INVALID_OWNER").
			With("owner", string(owner)).
			Errorf("unknown privilege owner kind")
	}
}

// Grant stores a privilege for an owner, returning the existing row ID when
// the privilege is already held.
func (r *PrivilegeRepository) Grant(ctx context.Context, owner identity.PrivilegeOwner, ownerID ulid.ULID, p privilege.Privilege) (ulid.ULID, error) {
	col, err := ownerColumn(owner)
	if err != nil {
		return ulid.ULID{}, err
	}

	var action, objectID any
	if p.Action != "" {
		action = p.Action
	}
	if p.HasID {
		objectID = p.ObjectID
	}

	var existing string
	err = r.pool.QueryRow(ctx, `
		SELECT id FROM doorman_privileges
		WHERE `+col+` = $1 AND object = $2
		  AND action IS NOT DISTINCT FROM $3
		  AND object_id IS NOT DISTINCT FROM $4
	`, ownerID.String(), p.Object, action, objectID).Scan(&existing)
	if err == nil {
		id, parseErr := ulid.Parse(existing)
		if parseErr != nil {
			return ulid.ULID{}, oops.Code("PRIVILEGE_INVALID_ID").
				With("id", existing).
				Wrap(parseErr)
		}
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return ulid.ULID{}, oops.Code("PRIVILEGE_GRANT_FAILED").
			With("operation", "check existing privilege").
			With("privilege", p.String()).
			Wrap(err)
	}

	id := ulid.Make()
	_, err = r.pool.Exec(ctx, `
		INSERT INTO doorman_privileges (id, object, action, object_id, `+col+`, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id.String(), p.Object, action, objectID, ownerID.String(), time.Now())
	if err != nil {
		return ulid.ULID{}, oops.Code("PRIVILEGE_GRANT_FAILED").
			With("operation", "insert privilege").
			With("privilege", p.String()).
			Wrap(err)
	}
	return id, nil
}

// Revoke removes a privilege from an owner. Revoking an unheld privilege is
// a no-op.
func (r *PrivilegeRepository) Revoke(ctx context.Context, owner identity.PrivilegeOwner, ownerID ulid.ULID, p privilege.Privilege) error {
	col, err := ownerColumn(owner)
	if err != nil {
		return err
	}

	var action, objectID any
	if p.Action != "" {
		action = p.Action
	}
	if p.HasID {
		objectID = p.ObjectID
	}

	_, err = r.pool.Exec(ctx, `
		DELETE FROM doorman_privileges
		WHERE `+col+` = $1 AND object = $2
		  AND action IS NOT DISTINCT FROM $3
		  AND object_id IS NOT DISTINCT FROM $4
	`, ownerID.String(), p.Object, action, objectID)
	if err != nil {
		return oops.Code("PRIVILEGE_REVOKE_FAILED").
			With("operation", "delete privilege").
			With("privilege", p.String()).
			Wrap(err)
	}
	return nil
}

// ForOwner returns the serialized privileges held directly by an owner.
func (r *PrivilegeRepository) ForOwner(ctx context.Context, owner identity.PrivilegeOwner, ownerID ulid.ULID) ([]string, error) {
	col, err := ownerColumn(owner)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT object, action, object_id FROM doorman_privileges
		WHERE `+col+` = $1
		ORDER BY object, action, object_id
	`, ownerID.String())
	if err != nil {
		return nil, oops.Code("PRIVILEGE_FOR_OWNER_FAILED").
			With("operation", "get privileges for owner").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var (
			object   string
			action   *string
			objectID *int64
		)
		if err := rows.Scan(&object, &action, &objectID); err != nil {
			return nil, oops.Code("PRIVILEGE_SCAN_FAILED").
				With("operation", "scan privilege row").
				Wrap(err)
		}

		p := privilege.Privilege{Object: object}
		if action != nil {
			p.Action = *action
		}
		if objectID != nil {
			p.ObjectID = *objectID
			p.HasID = true
		}
		out = append(out, p.String())
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("PRIVILEGE_ROWS_ERROR").
			With("operation", "iterate privilege rows").
			Wrap(err)
	}
	return out, nil
}

// Compile-time interface check.
var _ identity.PrivilegeRepository = (*PrivilegeRepository)(nil)
