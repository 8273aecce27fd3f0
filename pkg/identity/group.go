// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package identity

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/torchedm/doorman/pkg/privilege"
)

// Group is a named collection of identities carrying shared privileges.
type Group struct {
	ID        ulid.ULID
	Name      string
	CreatedAt time.Time
}

// NewGroup creates a validated Group.
func NewGroup(name string) (*Group, error) {
	if name == "" {
		return nil, oops.Code("GROUP_INVALID_NAME").Errorf("group name cannot be empty")
	}
	return &Group{
		ID:        ulid.Make(),
		Name:      name,
		CreatedAt: time.Now(),
	}, nil
}

// GroupRepository manages group persistence and membership.
type GroupRepository interface {
	// Create stores a new group.
	Create(ctx context.Context, group *Group) error

	// GetByID retrieves a group by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Group, error)

	// GetByName retrieves a group by name (case-insensitive).
	GetByName(ctx context.Context, name string) (*Group, error)

	// Delete removes a group and its memberships.
	Delete(ctx context.Context, id ulid.ULID) error

	// AssignMember adds an identity to a group. Assigning an existing
	// member is a no-op.
	AssignMember(ctx context.Context, identityID, groupID ulid.ULID) error

	// RemoveMember removes an identity from a group.
	RemoveMember(ctx context.Context, identityID, groupID ulid.ULID) error

	// IsMember reports whether an identity belongs to a group.
	IsMember(ctx context.Context, identityID, groupID ulid.ULID) (bool, error)

	// ForIdentity returns the groups an identity belongs to, ordered by
	// group name.
	ForIdentity(ctx context.Context, identityID ulid.ULID) ([]*Group, error)
}

// PrivilegeOwner names the entity kind a privilege row belongs to. Exactly
// one owner is set per row.
type PrivilegeOwner string

// Privilege owner kinds.
const (
	OwnerIdentity PrivilegeOwner = "identity"
	OwnerGroup    PrivilegeOwner = "group"
)

// PrivilegeRepository manages privilege rows for identities and groups.
// Grants take parsed privileges so malformed strings never reach storage.
type PrivilegeRepository interface {
	// Grant stores a privilege for an owner and returns the row ID.
	// Granting an already-held privilege returns the existing row ID.
	Grant(ctx context.Context, owner PrivilegeOwner, ownerID ulid.ULID, p privilege.Privilege) (ulid.ULID, error)

	// Revoke removes a privilege from an owner. Revoking a privilege that
	// is not held is a no-op.
	Revoke(ctx context.Context, owner PrivilegeOwner, ownerID ulid.ULID, p privilege.Privilege) error

	// ForOwner returns the serialized privileges held directly by an owner.
	ForOwner(ctx context.Context, owner PrivilegeOwner, ownerID ulid.ULID) ([]string, error)
}
