// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package identitytest provides in-memory repository fakes for tests.
package identitytest

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/torchedm/doorman/pkg/identity"
	"github.com/torchedm/doorman/pkg/privilege"
)

// Repository is an in-memory identity.Repository.
type Repository struct {
	byID map[ulid.ULID]*identity.Identity

	// Err, when set, is returned by every method. Simulates storage failure.
	Err error
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{byID: make(map[ulid.ULID]*identity.Identity)}
}

// Add seeds an identity without going through Create.
func (r *Repository) Add(ident *identity.Identity) {
	ident.MarkPersisted()
	r.byID[ident.ID] = ident
}

// Create stores a new identity.
func (r *Repository) Create(_ context.Context, ident *identity.Identity) error {
	if r.Err != nil {
		return r.Err
	}
	r.byID[ident.ID] = ident
	return nil
}

// GetByID retrieves an identity by ID.
func (r *Repository) GetByID(_ context.Context, id ulid.ULID) (*identity.Identity, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	ident, ok := r.byID[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return ident, nil
}

// GetByField retrieves an identity by identifier field value.
func (r *Repository) GetByField(_ context.Context, field identity.Field, value string) (*identity.Identity, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	for _, ident := range r.byID {
		if strings.EqualFold(ident.IdentifierValue(field), value) {
			return ident, nil
		}
	}
	return nil, identity.ErrNotFound
}

// GetByCredentials retrieves an identity matching field value and hash.
func (r *Repository) GetByCredentials(_ context.Context, field identity.Field, value, passwordHash string) (*identity.Identity, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	for _, ident := range r.byID {
		if strings.EqualFold(ident.IdentifierValue(field), value) && ident.PasswordHash == passwordHash {
			return ident, nil
		}
	}
	return nil, identity.ErrNotFound
}

// Update replaces a stored identity.
func (r *Repository) Update(_ context.Context, ident *identity.Identity) error {
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.byID[ident.ID]; !ok {
		return identity.ErrNotFound
	}
	r.byID[ident.ID] = ident
	return nil
}

// UpdatePassword sets a new password hash and clears the login hash.
func (r *Repository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	if r.Err != nil {
		return r.Err
	}
	ident, ok := r.byID[id]
	if !ok {
		return identity.ErrNotFound
	}
	ident.PasswordHash = passwordHash
	ident.LoginHash = ""
	return nil
}

// RotateLoginHash replaces the stored login hash.
func (r *Repository) RotateLoginHash(_ context.Context, id ulid.ULID, loginHash string) error {
	if r.Err != nil {
		return r.Err
	}
	ident, ok := r.byID[id]
	if !ok {
		return identity.ErrNotFound
	}
	ident.LoginHash = loginHash
	return nil
}

// CountByField counts identities with the given field value.
func (r *Repository) CountByField(_ context.Context, field identity.Field, value string, excludeID *ulid.ULID) (int64, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	var n int64
	for _, ident := range r.byID {
		if excludeID != nil && ident.ID == *excludeID {
			continue
		}
		if strings.EqualFold(ident.IdentifierValue(field), value) {
			n++
		}
	}
	return n, nil
}

// GroupRepository is an in-memory identity.GroupRepository.
type GroupRepository struct {
	byID    map[ulid.ULID]*identity.Group
	members map[ulid.ULID]map[ulid.ULID]struct{} // groupID → identityIDs

	Err error
}

// NewGroupRepository creates an empty in-memory group repository.
func NewGroupRepository() *GroupRepository {
	return &GroupRepository{
		byID:    make(map[ulid.ULID]*identity.Group),
		members: make(map[ulid.ULID]map[ulid.ULID]struct{}),
	}
}

// Create stores a new group.
func (r *GroupRepository) Create(_ context.Context, group *identity.Group) error {
	if r.Err != nil {
		return r.Err
	}
	r.byID[group.ID] = group
	return nil
}

// GetByID retrieves a group by ID.
func (r *GroupRepository) GetByID(_ context.Context, id ulid.ULID) (*identity.Group, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	g, ok := r.byID[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return g, nil
}

// GetByName retrieves a group by name.
func (r *GroupRepository) GetByName(_ context.Context, name string) (*identity.Group, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	for _, g := range r.byID {
		if strings.EqualFold(g.Name, name) {
			return g, nil
		}
	}
	return nil, identity.ErrNotFound
}

// Delete removes a group and its memberships.
func (r *GroupRepository) Delete(_ context.Context, id ulid.ULID) error {
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.byID[id]; !ok {
		return identity.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.members, id)
	return nil
}

// AssignMember adds an identity to a group.
func (r *GroupRepository) AssignMember(_ context.Context, identityID, groupID ulid.ULID) error {
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.byID[groupID]; !ok {
		return identity.ErrNotFound
	}
	if r.members[groupID] == nil {
		r.members[groupID] = make(map[ulid.ULID]struct{})
	}
	r.members[groupID][identityID] = struct{}{}
	return nil
}

// RemoveMember removes an identity from a group.
func (r *GroupRepository) RemoveMember(_ context.Context, identityID, groupID ulid.ULID) error {
	if r.Err != nil {
		return r.Err
	}
	delete(r.members[groupID], identityID)
	return nil
}

// IsMember reports group membership.
func (r *GroupRepository) IsMember(_ context.Context, identityID, groupID ulid.ULID) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	_, ok := r.members[groupID][identityID]
	return ok, nil
}

// ForIdentity returns the groups an identity belongs to.
func (r *GroupRepository) ForIdentity(_ context.Context, identityID ulid.ULID) ([]*identity.Group, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	var groups []*identity.Group
	for gid, members := range r.members {
		if _, ok := members[identityID]; ok {
			groups = append(groups, r.byID[gid])
		}
	}
	return groups, nil
}

// PrivilegeRepository is an in-memory identity.PrivilegeRepository.
type PrivilegeRepository struct {
	rows map[string]map[string]ulid.ULID // owner key → serialized → row ID

	Err error
}

// NewPrivilegeRepository creates an empty in-memory privilege repository.
func NewPrivilegeRepository() *PrivilegeRepository {
	return &PrivilegeRepository{rows: make(map[string]map[string]ulid.ULID)}
}

func ownerKey(owner identity.PrivilegeOwner, ownerID ulid.ULID) string {
	return string(owner) + ":" + ownerID.String()
}

// Grant stores a privilege for an owner.
func (r *PrivilegeRepository) Grant(_ context.Context, owner identity.PrivilegeOwner, ownerID ulid.ULID, p privilege.Privilege) (ulid.ULID, error) {
	if r.Err != nil {
		return ulid.ULID{}, r.Err
	}
	key := ownerKey(owner, ownerID)
	if r.rows[key] == nil {
		r.rows[key] = make(map[string]ulid.ULID)
	}
	if id, ok := r.rows[key][p.String()]; ok {
		return id, nil
	}
	id := ulid.Make()
	r.rows[key][p.String()] = id
	return id, nil
}

// Revoke removes a privilege from an owner.
func (r *PrivilegeRepository) Revoke(_ context.Context, owner identity.PrivilegeOwner, ownerID ulid.ULID, p privilege.Privilege) error {
	if r.Err != nil {
		return r.Err
	}
	delete(r.rows[ownerKey(owner, ownerID)], p.String())
	return nil
}

// ForOwner returns the serialized privileges held by an owner.
func (r *PrivilegeRepository) ForOwner(_ context.Context, owner identity.PrivilegeOwner, ownerID ulid.ULID) ([]string, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	var out []string
	for s := range r.rows[ownerKey(owner, ownerID)] {
		out = append(out, s)
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ identity.Repository          = (*Repository)(nil)
	_ identity.GroupRepository     = (*GroupRepository)(nil)
	_ identity.PrivilegeRepository = (*PrivilegeRepository)(nil)
)
