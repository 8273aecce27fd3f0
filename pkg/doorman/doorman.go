// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package doorman composes credential hashing, session binding, privilege
// resolution, and driver chains into named authentication instances. An
// Instance is immutable and process-wide; per-request state lives on a
// Guard created from the instance and the request's session store.
package doorman

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/torchedm/doorman/pkg/credential"
	"github.com/torchedm/doorman/pkg/driver"
	"github.com/torchedm/doorman/pkg/identity"
	"github.com/torchedm/doorman/pkg/privilege"
	"github.com/torchedm/doorman/pkg/session"
)

// Config is the per-instance configuration.
type Config struct {
	// Name identifies the instance.
	Name string

	// KeyPrefix namespaces the instance's session keys. Defaults to Name.
	KeyPrefix string

	// Field is the identifier attribute presented at login.
	Field identity.Field

	// Salt feeds password hashing and login-hash derivation.
	Salt string

	// UseLoginHash requires sessions to carry the rotating login hash.
	UseLoginHash bool

	// UserDefaults are privileges every logged-in user holds.
	UserDefaults []string

	// GuestDefaults are privileges everyone holds, guests included.
	GuestDefaults []string

	// KnownObjects drive placeholder privilege expansion.
	KnownObjects []string
}

// Deps are the collaborators an instance is built from. Hasher defaults
// to PBKDF2 and Logger to slog.Default(); nil chains become empty
// chains. The repositories are required.
type Deps struct {
	Hasher      credential.Hasher
	Identities  identity.Repository
	Groups      identity.GroupRepository
	Privileges  identity.PrivilegeRepository
	AuthChain   *driver.AuthChain
	AccessChain *driver.AccessChain
	Logger      *slog.Logger
}

// Instance is an immutable named authentication configuration. Safe for
// concurrent use.
type Instance struct {
	cfg         Config
	hasher      credential.Hasher
	idents      identity.Repository
	groups      identity.GroupRepository
	privs       identity.PrivilegeRepository
	authChain   *driver.AuthChain
	accessChain *driver.AccessChain
	logger      *slog.Logger

	// dummyHash keeps credential verification constant-shape when the
	// identifier resolves to no account.
	dummyHash string
}

// NewInstance validates the configuration and builds an instance.
func NewInstance(cfg Config, deps Deps) (*Instance, error) {
	if cfg.Name == "" {
		return nil, oops.In("doorman").Code("INSTANCE_INVALID").
			Errorf("instance name is required")
	}
	if !cfg.Field.Valid() {
		return nil, oops.In("doorman").Code("INSTANCE_INVALID").
			With("instance", cfg.Name).
			With("field", string(cfg.Field)).
			Errorf("unknown identifier field")
	}
	if deps.Identities == nil || deps.Groups == nil || deps.Privileges == nil {
		return nil, oops.In("doorman").Code("INSTANCE_INVALID").
			With("instance", cfg.Name).
			Errorf("identity, group, and privilege repositories are required")
	}

	hasher := deps.Hasher
	if hasher == nil {
		hasher = credential.NewPBKDF2Hasher()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authChain := deps.AuthChain
	if authChain == nil {
		authChain = driver.NewAuthChain(logger)
	}
	accessChain := deps.AccessChain
	if accessChain == nil {
		accessChain = driver.NewAccessChain(logger)
	}

	// Chains belong to the instance configuration, so swallowed driver
	// failures are attributed to this instance.
	authChain.OnError(func(d string) { recordDriverError(cfg.Name, d) })
	accessChain.OnError(func(d string) { recordDriverError(cfg.Name, d) })

	dummy, err := hasher.Hash("doorman-dummy-password", cfg.Salt)
	if err != nil {
		return nil, oops.In("doorman").Code("INSTANCE_INVALID").
			With("instance", cfg.Name).
			Wrap(err)
	}

	return &Instance{
		cfg:         cfg,
		hasher:      hasher,
		idents:      deps.Identities,
		groups:      deps.Groups,
		privs:       deps.Privileges,
		authChain:   authChain,
		accessChain: accessChain,
		logger:      logger.With(slog.String("instance", cfg.Name)),
		dummyHash:   dummy,
	}, nil
}

// Name returns the instance name.
func (i *Instance) Name() string { return i.cfg.Name }

// Field returns the configured identifier field.
func (i *Instance) Field() identity.Field { return i.cfg.Field }

// HashPassword hashes a password with the instance salt.
func (i *Instance) HashPassword(password string) (string, error) {
	return i.hasher.Hash(password, i.cfg.Salt)
}

// VerifyPassword checks a password against a stored hash in constant
// time.
func (i *Instance) VerifyPassword(password, expected string) (bool, error) {
	return i.hasher.Verify(password, i.cfg.Salt, expected)
}

// Guard creates a per-request handle bound to a session store. Guards
// are not safe for concurrent use; create one per request.
func (i *Instance) Guard(sess session.Store) (*Guard, error) {
	prefix := i.cfg.KeyPrefix
	if prefix == "" {
		prefix = i.cfg.Name
	}
	binding, err := session.NewBinding(sess, i.idents, session.BindingConfig{
		KeyPrefix:    prefix,
		Field:        i.cfg.Field,
		Salt:         i.cfg.Salt,
		UseLoginHash: i.cfg.UseLoginHash,
	})
	if err != nil {
		return nil, err
	}
	resolver, err := identity.NewResolver(i.privs, i.groups,
		i.cfg.UserDefaults, i.cfg.GuestDefaults, i.cfg.KnownObjects)
	if err != nil {
		return nil, err
	}
	return &Guard{
		inst:     i,
		sess:     sess,
		binding:  binding,
		resolver: resolver,
	}, nil
}

// CreateUser registers a new account after checking username and email
// uniqueness. Returns the persisted identity.
func (i *Instance) CreateUser(ctx context.Context, username, email, password string) (*identity.Identity, error) {
	hash, err := i.HashPassword(password)
	if err != nil {
		return nil, err
	}
	ident, err := identity.New(username, email, hash)
	if err != nil {
		return nil, err
	}

	for _, check := range []struct {
		field identity.Field
		value string
	}{
		{identity.FieldUsername, username},
		{identity.FieldEmail, email},
	} {
		n, err := i.idents.CountByField(ctx, check.field, check.value, nil)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, oops.In("doorman").Code("IDENTITY_DUPLICATE").
				With("field", string(check.field)).
				Errorf("%s already taken", check.field)
		}
	}

	if err := i.idents.Create(ctx, ident); err != nil {
		return nil, err
	}
	ident.MarkPersisted()
	return ident, nil
}

// ChangePassword sets a new password for an identity and clears its
// login hash so existing sessions stop verifying.
func (i *Instance) ChangePassword(ctx context.Context, id ulid.ULID, password string) error {
	hash, err := i.HashPassword(password)
	if err != nil {
		return err
	}
	return i.idents.UpdatePassword(ctx, id, hash)
}

// Grant stores a privilege for an arbitrary identity or group. The
// string is validated against the privilege grammar first.
func (i *Instance) Grant(ctx context.Context, owner identity.PrivilegeOwner, ownerID ulid.ULID, s string) (ulid.ULID, error) {
	p, err := privilege.Parse(s)
	if err != nil {
		return ulid.ULID{}, err
	}
	return i.privs.Grant(ctx, owner, ownerID, p)
}

// Revoke removes a privilege from an arbitrary identity or group.
// Revoking an unheld privilege is a no-op.
func (i *Instance) Revoke(ctx context.Context, owner identity.PrivilegeOwner, ownerID ulid.ULID, s string) error {
	p, err := privilege.Parse(s)
	if err != nil {
		return err
	}
	return i.privs.Revoke(ctx, owner, ownerID, p)
}

// AccessFor checks a privilege for an arbitrary identity outside any
// session, consulting the access chain first and the identity's
// effective privileges when every driver abstains. objectID < 0 means
// no instance qualifier.
func (i *Instance) AccessFor(ctx context.Context, ident *identity.Identity, object, action string, objectID int64) (bool, error) {
	start := time.Now()

	priv := privilege.Privilege{Object: object, Action: action}
	if objectID >= 0 {
		priv.ObjectID = objectID
		priv.HasID = true
	}

	switch i.accessChain.Check(ctx, ident, priv) {
	case driver.Allow:
		recordAccessCheck(i.cfg.Name, sourceDriver, true, start)
		return true, nil
	case driver.Deny:
		recordAccessCheck(i.cfg.Name, sourceDriver, false, start)
		return false, nil
	}

	resolver, err := identity.NewResolver(i.privs, i.groups,
		i.cfg.UserDefaults, i.cfg.GuestDefaults, i.cfg.KnownObjects)
	if err != nil {
		return false, err
	}
	effective, err := resolver.EffectiveFor(ctx, ident)
	if err != nil {
		return false, err
	}
	allowed := effective.Allows(object, action, objectID)
	recordAccessCheck(i.cfg.Name, sourceGrants, allowed, start)
	return allowed, nil
}

// AssignToGroup adds an identity to a group.
func (i *Instance) AssignToGroup(ctx context.Context, identityID, groupID ulid.ULID) error {
	return i.groups.AssignMember(ctx, identityID, groupID)
}

// RemoveFromGroup removes an identity from a group.
func (i *Instance) RemoveFromGroup(ctx context.Context, identityID, groupID ulid.ULID) error {
	return i.groups.RemoveMember(ctx, identityID, groupID)
}

// MemberOf reports whether an identity belongs to a group.
func (i *Instance) MemberOf(ctx context.Context, identityID, groupID ulid.ULID) (bool, error) {
	return i.groups.IsMember(ctx, identityID, groupID)
}
