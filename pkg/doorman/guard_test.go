// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package doorman

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torchedm/doorman/pkg/driver"
	"github.com/torchedm/doorman/pkg/identity"
	"github.com/torchedm/doorman/pkg/identity/identitytest"
	"github.com/torchedm/doorman/pkg/privilege"
	"github.com/torchedm/doorman/pkg/session"
)

// fixedAuthDriver authenticates every session as one identifier.
type fixedAuthDriver struct {
	identifier string
	logouts    int
}

func (d *fixedAuthDriver) Name() string { return "fixed" }

func (d *fixedAuthDriver) Authenticate(context.Context, session.Store) (string, bool, error) {
	if d.identifier == "" {
		return "", false, nil
	}
	return d.identifier, true, nil
}

func (d *fixedAuthDriver) Logout(context.Context, session.Store) error {
	d.logouts++
	return nil
}

// fixedAccessDriver returns one decision for every check.
type fixedAccessDriver struct {
	decision driver.Decision
}

func (d *fixedAccessDriver) Name() string { return "fixed" }

func (d *fixedAccessDriver) Check(context.Context, *identity.Identity, privilege.Privilege) (driver.Decision, error) {
	return d.decision, nil
}

func newFixtureWithChains(t *testing.T, cfg Config, auth *driver.AuthChain, access *driver.AccessChain) *fixture {
	t.Helper()
	f := &fixture{
		idents: identitytest.NewRepository(),
		groups: identitytest.NewGroupRepository(),
		privs:  identitytest.NewPrivilegeRepository(),
	}
	inst, err := NewInstance(cfg, Deps{
		Identities:  f.idents,
		Groups:      f.groups,
		Privileges:  f.privs,
		AuthChain:   auth,
		AccessChain: access,
	})
	require.NoError(t, err)
	f.inst = inst
	return f
}

func TestGuard_CheckLogin_AuthChainFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("driver hit binds the session", func(t *testing.T) {
		chain := driver.NewAuthChain(nil)
		chain.Register(&fixedAuthDriver{identifier: "a@x.com"})

		f := newFixtureWithChains(t, testConfig(), chain, nil)
		f.addUser(t, "alice", "a@x.com", "s3cret")
		guard, sess := newGuard(t, f.inst)

		loggedIn, err := guard.CheckLogin(ctx)
		require.NoError(t, err)
		require.True(t, loggedIn)

		// The driver hit must have bound the session, not just answered.
		identifier, present, err := sess.Get(ctx, "doorman_identifier")
		require.NoError(t, err)
		require.True(t, present)
		assert.Equal(t, "a@x.com", identifier)

		user, err := guard.User(ctx)
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("driver identifier unknown to storage stays logged out", func(t *testing.T) {
		chain := driver.NewAuthChain(nil)
		chain.Register(&fixedAuthDriver{identifier: "ghost@x.com"})

		f := newFixtureWithChains(t, testConfig(), chain, nil)
		guard, _ := newGuard(t, f.inst)

		loggedIn, err := guard.CheckLogin(ctx)
		require.NoError(t, err)
		assert.False(t, loggedIn)
	})

	t.Run("logout reaches every driver", func(t *testing.T) {
		drv := &fixedAuthDriver{identifier: "a@x.com"}
		chain := driver.NewAuthChain(nil)
		chain.Register(drv)

		f := newFixtureWithChains(t, testConfig(), chain, nil)
		f.addUser(t, "alice", "a@x.com", "s3cret")
		guard, _ := newGuard(t, f.inst)

		require.NoError(t, guard.Logout(ctx))
		assert.Equal(t, 1, drv.logouts)
	})
}

func TestGuard_HasAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("grants decide when drivers abstain", func(t *testing.T) {
		f := newFixture(t, testConfig())
		ident := f.addUser(t, "alice", "a@x.com", "s3cret")
		guard, _ := newGuard(t, f.inst)

		_, err := f.inst.Grant(ctx, identity.OwnerIdentity, ident.ID, "doc.edit")
		require.NoError(t, err)

		ok, err := guard.Login(ctx, "a@x.com", "s3cret")
		require.NoError(t, err)
		require.True(t, ok)

		allowed, err := guard.HasAccess(ctx, "doc", "edit", -1)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = guard.HasAccess(ctx, "doc", "delete", -1)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("driver deny overrides a grant", func(t *testing.T) {
		access := driver.NewAccessChain(nil)
		access.Register(&fixedAccessDriver{decision: driver.Deny})

		f := newFixtureWithChains(t, testConfig(), nil, access)
		ident := f.addUser(t, "alice", "a@x.com", "s3cret")
		guard, _ := newGuard(t, f.inst)

		_, err := f.inst.Grant(ctx, identity.OwnerIdentity, ident.ID, "doc.edit")
		require.NoError(t, err)

		ok, err := guard.Login(ctx, "a@x.com", "s3cret")
		require.NoError(t, err)
		require.True(t, ok)

		allowed, err := guard.HasAccess(ctx, "doc", "edit", -1)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("driver allow needs no grant", func(t *testing.T) {
		access := driver.NewAccessChain(nil)
		access.Register(&fixedAccessDriver{decision: driver.Allow})

		f := newFixtureWithChains(t, testConfig(), nil, access)
		guard, _ := newGuard(t, f.inst)

		allowed, err := guard.HasAccess(ctx, "doc", "edit", -1)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("guest holds only guest defaults", func(t *testing.T) {
		cfg := testConfig()
		cfg.UserDefaults = []string{"doc.read"}
		cfg.GuestDefaults = []string{"page.view"}

		f := newFixture(t, cfg)
		guard, _ := newGuard(t, f.inst)

		allowed, err := guard.HasAccess(ctx, "page", "view", -1)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = guard.HasAccess(ctx, "doc", "read", -1)
		require.NoError(t, err)
		assert.False(t, allowed, "user defaults must not apply to guests")
	})

	t.Run("group privileges are inherited", func(t *testing.T) {
		f := newFixture(t, testConfig())
		ident := f.addUser(t, "alice", "a@x.com", "s3cret")
		guard, _ := newGuard(t, f.inst)

		group, err := identity.NewGroup("editors")
		require.NoError(t, err)
		require.NoError(t, f.groups.Create(ctx, group))
		require.NoError(t, f.inst.AssignToGroup(ctx, ident.ID, group.ID))
		_, err = f.inst.Grant(ctx, identity.OwnerGroup, group.ID, "doc.edit")
		require.NoError(t, err)

		ok, err := guard.Login(ctx, "a@x.com", "s3cret")
		require.NoError(t, err)
		require.True(t, ok)

		allowed, err := guard.HasAccess(ctx, "doc", "edit", -1)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestGuard_AssignRevokePrivilege(t *testing.T) {
	ctx := context.Background()

	t.Run("assignment takes effect immediately", func(t *testing.T) {
		f := newFixture(t, testConfig())
		f.addUser(t, "alice", "a@x.com", "s3cret")
		guard, _ := newGuard(t, f.inst)

		ok, err := guard.Login(ctx, "a@x.com", "s3cret")
		require.NoError(t, err)
		require.True(t, ok)

		allowed, err := guard.HasAccess(ctx, "doc", "edit", 5)
		require.NoError(t, err)
		require.False(t, allowed)

		// The privilege cache must be invalidated by the grant.
		_, err = guard.AssignPrivilege(ctx, "doc.edit.5")
		require.NoError(t, err)

		allowed, err = guard.HasAccess(ctx, "doc", "edit", 5)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = guard.HasAccess(ctx, "doc", "edit", 6)
		require.NoError(t, err)
		assert.False(t, allowed, "id-qualified grant must not cover other ids")
	})

	t.Run("revocation takes effect immediately", func(t *testing.T) {
		f := newFixture(t, testConfig())
		f.addUser(t, "alice", "a@x.com", "s3cret")
		guard, _ := newGuard(t, f.inst)

		ok, err := guard.Login(ctx, "a@x.com", "s3cret")
		require.NoError(t, err)
		require.True(t, ok)

		_, err = guard.AssignPrivilege(ctx, "doc.edit")
		require.NoError(t, err)
		require.NoError(t, guard.RevokePrivilege(ctx, "doc.edit"))

		allowed, err := guard.HasAccess(ctx, "doc", "edit", -1)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("malformed privilege rejected before storage", func(t *testing.T) {
		f := newFixture(t, testConfig())
		f.addUser(t, "alice", "a@x.com", "s3cret")
		guard, _ := newGuard(t, f.inst)

		ok, err := guard.Login(ctx, "a@x.com", "s3cret")
		require.NoError(t, err)
		require.True(t, ok)

		_, err = guard.AssignPrivilege(ctx, "doc..edit")
		require.ErrorIs(t, err, privilege.ErrMalformed)

		err = guard.RevokePrivilege(ctx, "doc.5.edit")
		require.ErrorIs(t, err, privilege.ErrMalformed)
	})

	t.Run("guests cannot hold privileges", func(t *testing.T) {
		f := newFixture(t, testConfig())
		guard, _ := newGuard(t, f.inst)

		_, err := guard.AssignPrivilege(ctx, "doc.edit")
		require.Error(t, err)
	})
}

// TestGuard_LoginAccessFlow exercises the whole stack: login against an
// email identifier with rotating login hashes, then id-qualified access
// checks over stored grants.
func TestGuard_LoginAccessFlow(t *testing.T) {
	ctx := context.Background()

	cfg := Config{
		Name:          "doorman",
		Field:         identity.FieldEmail,
		Salt:          "pepper",
		UseLoginHash:  true,
		GuestDefaults: []string{"page.view"},
		KnownObjects:  []string{"doc", "page"},
	}
	f := newFixture(t, cfg)
	ident := f.addUser(t, "alice", "a@x.com", "s3cret")
	guard, _ := newGuard(t, f.inst)

	// Wrong password first: stays a guest.
	ok, err := guard.Login(ctx, "a@x.com", "nope")
	require.NoError(t, err)
	require.False(t, ok)
	user, err := guard.User(ctx)
	require.NoError(t, err)
	require.True(t, user.IsGuest())

	allowed, err := guard.HasAccess(ctx, "page", "view", -1)
	require.NoError(t, err)
	assert.True(t, allowed, "guest defaults apply while logged out")

	// Real login.
	ok, err = guard.Login(ctx, "a@x.com", "s3cret")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.inst.Grant(ctx, identity.OwnerIdentity, ident.ID, "doc.edit.5")
	require.NoError(t, err)
	guard.resolver.Invalidate()

	allowed, err = guard.HasAccess(ctx, "doc", "edit", 5)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = guard.HasAccess(ctx, "doc", "edit", 7)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, guard.Logout(ctx))
	allowed, err = guard.HasAccess(ctx, "doc", "edit", 5)
	require.NoError(t, err)
	assert.False(t, allowed, "grants die with the login")
}

func TestInstance_AccessFor(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, testConfig())
	ident := f.addUser(t, "alice", "a@x.com", "s3cret")
	_, err := f.inst.Grant(ctx, identity.OwnerIdentity, ident.ID, "doc.edit")
	require.NoError(t, err)

	allowed, err := f.inst.AccessFor(ctx, ident, "doc", "edit", -1)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = f.inst.AccessFor(ctx, ident, "doc", "delete", -1)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = f.inst.AccessFor(ctx, identity.Guest(), "doc", "edit", -1)
	require.NoError(t, err)
	assert.False(t, allowed)
}
