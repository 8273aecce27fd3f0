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
)

// GroupRepository implements identity.GroupRepository using PostgreSQL.
type GroupRepository struct {
	pool poolIface
}

// NewGroupRepository creates a new GroupRepository.
func NewGroupRepository(pool poolIface) *GroupRepository {
	return &GroupRepository{pool: pool}
}

// Create stores a new group.
func (r *GroupRepository) Create(ctx context.Context, group *identity.Group) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doorman_groups (id, name, created_at)
		VALUES ($1, $2, $3)
	`, group.ID.String(), group.Name, group.CreatedAt)
	if err != nil {
		return oops.Code("GROUP_CREATE_FAILED").
			With("operation", "insert group").
			With("name", group.Name).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a group by ID.
func (r *GroupRepository) GetByID(ctx context.Context, id ulid.ULID) (*identity.Group, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, created_at FROM doorman_groups WHERE id = $1
	`, id.String())

	group, err := scanGroup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("GROUP_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("GROUP_GET_BY_ID_FAILED").
			With("operation", "get group by id").
			With("id", id.String()).
			Wrap(err)
	}
	return group, nil
}

// GetByName retrieves a group by name (case-insensitive).
func (r *GroupRepository) GetByName(ctx context.Context, name string) (*identity.Group, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, created_at FROM doorman_groups WHERE LOWER(name) = LOWER($1)
	`, name)

	group, err := scanGroup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("GROUP_NOT_FOUND").
			With("name", name).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("GROUP_GET_BY_NAME_FAILED").
			With("operation", "get group by name").
			With("name", name).
			Wrap(err)
	}
	return group, nil
}

// Delete removes a group. Memberships cascade at the schema level.
func (r *GroupRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM doorman_groups WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("GROUP_DELETE_FAILED").
			With("operation", "delete group").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("GROUP_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// AssignMember adds an identity to a group. Re-assigning is a no-op.
func (r *GroupRepository) AssignMember(ctx context.Context, identityID, groupID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doorman_group_assignments (user_id, group_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, group_id) DO NOTHING
	`, identityID.String(), groupID.String(), time.Now())
	if err != nil {
		return oops.Code("GROUP_ASSIGN_FAILED").
			With("operation", "insert group assignment").
			With("identity_id", identityID.String()).
			With("group_id", groupID.String()).
			Wrap(err)
	}
	return nil
}

// RemoveMember removes an identity from a group.
func (r *GroupRepository) RemoveMember(ctx context.Context, identityID, groupID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM doorman_group_assignments WHERE user_id = $1 AND group_id = $2
	`, identityID.String(), groupID.String())
	if err != nil {
		return oops.Code("GROUP_REMOVE_FAILED").
			With("operation", "delete group assignment").
			With("identity_id", identityID.String()).
			With("group_id", groupID.String()).
			Wrap(err)
	}
	return nil
}

// IsMember reports whether an identity belongs to a group.
func (r *GroupRepository) IsMember(ctx context.Context, identityID, groupID ulid.ULID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM doorman_group_assignments WHERE user_id = $1 AND group_id = $2
		)
	`, identityID.String(), groupID.String()).Scan(&exists)
	if err != nil {
		return false, oops.Code("GROUP_IS_MEMBER_FAILED").
			With("operation", "check group assignment").
			With("identity_id", identityID.String()).
			With("group_id", groupID.String()).
			Wrap(err)
	}
	return exists, nil
}

// ForIdentity returns the groups an identity belongs to, ordered by name.
func (r *GroupRepository) ForIdentity(ctx context.Context, identityID ulid.ULID) ([]*identity.Group, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT g.id, g.name, g.created_at
		FROM doorman_groups g
		JOIN doorman_group_assignments a ON a.group_id = g.id
		WHERE a.user_id = $1
		ORDER BY g.name
	`, identityID.String())
	if err != nil {
		return nil, oops.Code("GROUP_FOR_IDENTITY_FAILED").
			With("operation", "get groups for identity").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var groups []*identity.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, oops.Code("GROUP_SCAN_FAILED").
				With("operation", "scan group row").
				Wrap(err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("GROUP_ROWS_ERROR").
			With("operation", "iterate group rows").
			Wrap(err)
	}
	return groups, nil
}

// scanGroup scans one row into a Group. Callers handle pgx.ErrNoRows.
func scanGroup(row pgx.Row) (*identity.Group, error) {
	var (
		idStr     string
		name      string
		createdAt time.Time
	)
	if err := row.Scan(&idStr, &name, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("GROUP_SCAN_FAILED").
			With("operation", "scan group").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("GROUP_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	return &identity.Group{ID: id, Name: name, CreatedAt: createdAt}, nil
}

// Compile-time interface check.
var _ identity.GroupRepository = (*GroupRepository)(nil)
