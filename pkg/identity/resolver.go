// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package identity

import (
	"context"

	"github.com/samber/oops"

	"github.com/torchedm/doorman/pkg/privilege"
)

// Resolver computes effective privilege sets: an identity's own privileges,
// those of every group it belongs to, the configured logged-in defaults and
// the guest defaults, deduplicated and with placeholders expanded.
//
// Results are cached for the life of the Resolver, which is one resolution
// context (a request). Privilege mutations within that context must call
// Invalidate; staleness is not assumed to be harmless.
//
// Resolver is not safe for concurrent use. Each request gets its own.
type Resolver struct {
	privileges PrivilegeRepository
	groups     GroupRepository

	userDefaults  []string
	guestDefaults []string
	knownObjects  []string

	cache map[string]privilege.Set
}

// NewResolver creates a Resolver over the given repositories and configured
// default privilege lists.
func NewResolver(privs PrivilegeRepository, groups GroupRepository, userDefaults, guestDefaults, knownObjects []string) (*Resolver, error) {
	if privs == nil {
		return nil, oops.Code("RESOLVER_INVALID").Errorf("privilege repository is required")
	}
	if groups == nil {
		return nil, oops.Code("RESOLVER_INVALID").Errorf("group repository is required")
	}
	return &Resolver{
		privileges:    privs,
		groups:        groups,
		userDefaults:  userDefaults,
		guestDefaults: guestDefaults,
		knownObjects:  knownObjects,
		cache:         make(map[string]privilege.Set),
	}, nil
}

// EffectiveFor returns the effective privilege set for an identity. A guest
// placeholder resolves to the configured guest defaults only.
func (r *Resolver) EffectiveFor(ctx context.Context, ident *Identity) (privilege.Set, error) {
	key := guestCacheKey
	if !ident.IsGuest() {
		key = ident.ID.String()
	}
	if cached, ok := r.cache[key]; ok {
		return cached, nil
	}

	raw := make([]string, 0, len(r.guestDefaults))
	raw = append(raw, r.guestDefaults...)

	if !ident.IsGuest() {
		own, err := r.privileges.ForOwner(ctx, OwnerIdentity, ident.ID)
		if err != nil {
			return privilege.Set{}, oops.Code("RESOLVER_PRIVILEGES_FAILED").
				With("identity_id", ident.ID.String()).
				Wrap(err)
		}
		raw = append(raw, own...)

		memberships, err := r.groups.ForIdentity(ctx, ident.ID)
		if err != nil {
			return privilege.Set{}, oops.Code("RESOLVER_GROUPS_FAILED").
				With("identity_id", ident.ID.String()).
				Wrap(err)
		}
		for _, g := range memberships {
			inherited, err := r.privileges.ForOwner(ctx, OwnerGroup, g.ID)
			if err != nil {
				return privilege.Set{}, oops.Code("RESOLVER_PRIVILEGES_FAILED").
					With("group_id", g.ID.String()).
					Wrap(err)
			}
			raw = append(raw, inherited...)
		}

		raw = append(raw, r.userDefaults...)
	}

	set := privilege.Expand(raw, r.knownObjects)
	r.cache[key] = set
	return set, nil
}

// Invalidate drops cached results so the next resolution rebuilds them.
// Callers invoke it after any privilege or membership mutation within the
// same resolution context.
func (r *Resolver) Invalidate() {
	r.cache = make(map[string]privilege.Set)
}

// guestCacheKey indexes the cached guest set; ULIDs never collide with it.
const guestCacheKey = "guest"
