// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package doorman

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/torchedm/doorman/pkg/identity"
	"github.com/torchedm/doorman/pkg/identity/identitytest"
	"github.com/torchedm/doorman/pkg/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fixture wires an instance over in-memory repositories.
type fixture struct {
	inst   *Instance
	idents *identitytest.Repository
	groups *identitytest.GroupRepository
	privs  *identitytest.PrivilegeRepository
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		idents: identitytest.NewRepository(),
		groups: identitytest.NewGroupRepository(),
		privs:  identitytest.NewPrivilegeRepository(),
	}
	inst, err := NewInstance(cfg, Deps{
		Identities: f.idents,
		Groups:     f.groups,
		Privileges: f.privs,
	})
	require.NoError(t, err)
	f.inst = inst
	return f
}

func testConfig() Config {
	return Config{
		Name:         "doorman",
		Field:        identity.FieldEmail,
		Salt:         "pepper",
		UseLoginHash: true,
	}
}

// addUser seeds a persisted user with a hashed password.
func (f *fixture) addUser(t *testing.T, username, email, password string) *identity.Identity {
	t.Helper()
	hash, err := f.inst.HashPassword(password)
	require.NoError(t, err)
	ident, err := identity.New(username, email, hash)
	require.NoError(t, err)
	f.idents.Add(ident)
	return ident
}

func newGuard(t *testing.T, inst *Instance) (*Guard, *session.MemoryStore) {
	t.Helper()
	sess, err := session.NewMemoryStore()
	require.NoError(t, err)
	guard, err := inst.Guard(sess)
	require.NoError(t, err)
	return guard, sess
}

func TestNewInstance_Validation(t *testing.T) {
	deps := Deps{
		Identities: identitytest.NewRepository(),
		Groups:     identitytest.NewGroupRepository(),
		Privileges: identitytest.NewPrivilegeRepository(),
	}

	tests := []struct {
		name string
		cfg  Config
		deps Deps
	}{
		{"missing name", Config{Field: identity.FieldEmail}, deps},
		{"bad field", Config{Name: "x", Field: identity.Field("phone")}, deps},
		{"missing repositories", Config{Name: "x", Field: identity.FieldEmail}, Deps{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInstance(tt.cfg, tt.deps)
			require.Error(t, err)
		})
	}
}

func TestGuard_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials bind the session", func(t *testing.T) {
		f := newFixture(t, testConfig())
		f.addUser(t, "alice", "a@x.com", "s3cret")
		guard, sess := newGuard(t, f.inst)

		ok, err := guard.Login(ctx, "a@x.com", "s3cret")
		require.NoError(t, err)
		require.True(t, ok)

		identifier, present, err := sess.Get(ctx, "doorman_identifier")
		require.NoError(t, err)
		require.True(t, present)
		assert.Equal(t, "a@x.com", identifier)

		hash, present, err := sess.Get(ctx, "doorman_login_hash")
		require.NoError(t, err)
		require.True(t, present)
		assert.NotEmpty(t, hash)
	})

	t.Run("custom key prefix namespaces the session keys", func(t *testing.T) {
		cfg := testConfig()
		cfg.KeyPrefix = "portal"
		f := newFixture(t, cfg)
		f.addUser(t, "alice", "a@x.com", "s3cret")
		guard, sess := newGuard(t, f.inst)

		ok, err := guard.Login(ctx, "a@x.com", "s3cret")
		require.NoError(t, err)
		require.True(t, ok)

		_, present, err := sess.Get(ctx, "portal_identifier")
		require.NoError(t, err)
		assert.True(t, present)

		_, present, err = sess.Get(ctx, "doorman_identifier")
		require.NoError(t, err)
		assert.False(t, present)
	})

	t.Run("empty identifier or password fails without state change", func(t *testing.T) {
		f := newFixture(t, testConfig())
		f.addUser(t, "alice", "a@x.com", "s3cret")
		guard, _ := newGuard(t, f.inst)

		ok, err := guard.Login(ctx, "", "s3cret")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = guard.Login(ctx, "a@x.com", "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown identifier fails generically", func(t *testing.T) {
		f := newFixture(t, testConfig())
		guard, _ := newGuard(t, f.inst)

		ok, err := guard.Login(ctx, "ghost@x.com", "whatever")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wrong password clears a previous login", func(t *testing.T) {
		f := newFixture(t, testConfig())
		f.addUser(t, "alice", "a@x.com", "s3cret")
		guard, sess := newGuard(t, f.inst)

		ok, err := guard.Login(ctx, "a@x.com", "s3cret")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = guard.Login(ctx, "a@x.com", "wrong")
		require.NoError(t, err)
		require.False(t, ok)

		_, present, err := sess.Get(ctx, "doorman_identifier")
		require.NoError(t, err)
		assert.False(t, present, "failed login must clear the session")

		loggedIn, err := guard.CheckLogin(ctx)
		require.NoError(t, err)
		assert.False(t, loggedIn)
	})

	t.Run("successive logins rotate the login hash", func(t *testing.T) {
		f := newFixture(t, testConfig())
		f.addUser(t, "alice", "a@x.com", "s3cret")
		guard, sess := newGuard(t, f.inst)

		ok, err := guard.Login(ctx, "a@x.com", "s3cret")
		require.NoError(t, err)
		require.True(t, ok)
		first, _, err := sess.Get(ctx, "doorman_login_hash")
		require.NoError(t, err)

		ok, err = guard.Login(ctx, "a@x.com", "s3cret")
		require.NoError(t, err)
		require.True(t, ok)
		second, _, err := sess.Get(ctx, "doorman_login_hash")
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
	})

	t.Run("storage failure is an error, not a false", func(t *testing.T) {
		f := newFixture(t, testConfig())
		guard, _ := newGuard(t, f.inst)
		f.idents.Err = assert.AnError

		_, err := guard.Login(ctx, "a@x.com", "s3cret")
		require.Error(t, err)
	})
}

func TestGuard_CheckLoginAndUser(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh session is logged out with guest user", func(t *testing.T) {
		f := newFixture(t, testConfig())
		guard, _ := newGuard(t, f.inst)

		loggedIn, err := guard.CheckLogin(ctx)
		require.NoError(t, err)
		assert.False(t, loggedIn)

		user, err := guard.User(ctx)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.True(t, user.IsGuest())
	})

	t.Run("a second guard over the same session sees the login", func(t *testing.T) {
		f := newFixture(t, testConfig())
		f.addUser(t, "alice", "a@x.com", "s3cret")
		guard, sess := newGuard(t, f.inst)

		ok, err := guard.Login(ctx, "a@x.com", "s3cret")
		require.NoError(t, err)
		require.True(t, ok)

		later, err := f.inst.Guard(sess)
		require.NoError(t, err)
		loggedIn, err := later.CheckLogin(ctx)
		require.NoError(t, err)
		require.True(t, loggedIn)

		user, err := later.User(ctx)
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("stale hash from an older session fails after a newer login", func(t *testing.T) {
		f := newFixture(t, testConfig())
		f.addUser(t, "alice", "a@x.com", "s3cret")

		oldGuard, oldSess := newGuard(t, f.inst)
		ok, err := oldGuard.Login(ctx, "a@x.com", "s3cret")
		require.NoError(t, err)
		require.True(t, ok)

		newGuardHandle, _ := newGuard(t, f.inst)
		ok, err = newGuardHandle.Login(ctx, "a@x.com", "s3cret")
		require.NoError(t, err)
		require.True(t, ok)

		// The old session still holds the superseded hash.
		stale, err := f.inst.Guard(oldSess)
		require.NoError(t, err)
		loggedIn, err := stale.CheckLogin(ctx)
		require.NoError(t, err)
		assert.False(t, loggedIn)
	})
}

func TestGuard_Logout(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, testConfig())
	f.addUser(t, "alice", "a@x.com", "s3cret")
	guard, sess := newGuard(t, f.inst)

	ok, err := guard.Login(ctx, "a@x.com", "s3cret")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, guard.Logout(ctx))

	_, present, err := sess.Get(ctx, "doorman_identifier")
	require.NoError(t, err)
	assert.False(t, present)

	user, err := guard.User(ctx)
	require.NoError(t, err)
	assert.True(t, user.IsGuest())

	// Idempotent.
	require.NoError(t, guard.Logout(ctx))
}

func TestInstance_CreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("registers and hashes", func(t *testing.T) {
		f := newFixture(t, testConfig())

		ident, err := f.inst.CreateUser(ctx, "alice", "a@x.com", "s3cret")
		require.NoError(t, err)
		assert.False(t, ident.IsGuest())
		assert.NotEqual(t, "s3cret", ident.PasswordHash)

		ok, err := f.inst.VerifyPassword("s3cret", ident.PasswordHash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		f := newFixture(t, testConfig())
		f.addUser(t, "alice", "a@x.com", "s3cret")

		_, err := f.inst.CreateUser(ctx, "alice", "other@x.com", "s3cret")
		require.Error(t, err)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		f := newFixture(t, testConfig())
		f.addUser(t, "alice", "a@x.com", "s3cret")

		_, err := f.inst.CreateUser(ctx, "bob", "a@x.com", "s3cret")
		require.Error(t, err)
	})

	t.Run("empty password rejected", func(t *testing.T) {
		f := newFixture(t, testConfig())
		_, err := f.inst.CreateUser(ctx, "alice", "a@x.com", "")
		require.Error(t, err)
	})
}

func TestInstance_ChangePassword(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, testConfig())
	ident := f.addUser(t, "alice", "a@x.com", "old-pass")
	guard, _ := newGuard(t, f.inst)

	ok, err := guard.Login(ctx, "a@x.com", "old-pass")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.inst.ChangePassword(ctx, ident.ID, "new-pass"))

	// Existing session dies with the cleared login hash.
	fresh, err := f.inst.Guard(mustStore(t, guard))
	require.NoError(t, err)
	loggedIn, err := fresh.CheckLogin(ctx)
	require.NoError(t, err)
	assert.False(t, loggedIn)

	ok, err = guard.Login(ctx, "a@x.com", "new-pass")
	require.NoError(t, err)
	assert.True(t, ok)
}

// mustStore extracts the session store a guard was built over.
func mustStore(t *testing.T, g *Guard) session.Store {
	t.Helper()
	require.NotNil(t, g.sess)
	return g.sess
}
