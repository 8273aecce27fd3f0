// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package doorman

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/torchedm/doorman/pkg/driver"
	"github.com/torchedm/doorman/pkg/identity"
	"github.com/torchedm/doorman/pkg/privilege"
	"github.com/torchedm/doorman/pkg/session"
)

// Guard is the per-request authentication handle. It caches the current
// identity and its effective privileges for the life of the request.
// Not safe for concurrent use.
type Guard struct {
	inst     *Instance
	sess     session.Store
	binding  *session.Binding
	resolver *identity.Resolver

	// current is nil until CheckLogin has run; a logged-out session
	// resolves to a guest placeholder.
	current *identity.Identity
	checked bool
}

// Login authenticates an identifier/password pair and binds the session
// on success. Authentication failures are (false, nil); only storage
// failures are errors. An unknown identifier still costs one hash
// verification so timing does not reveal which accounts exist.
func (g *Guard) Login(ctx context.Context, identifier, password string) (bool, error) {
	if identifier == "" || password == "" {
		recordLogin(g.inst.cfg.Name, resultFailure)
		return false, nil
	}

	ident, err := g.inst.idents.GetByField(ctx, g.inst.cfg.Field, identifier)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			// Burn a verification against the dummy hash, then fail
			// generically.
			if _, verr := g.inst.VerifyPassword(password, g.inst.dummyHash); verr != nil {
				recordLogin(g.inst.cfg.Name, resultError)
				return false, verr
			}
			recordLogin(g.inst.cfg.Name, resultFailure)
			return false, g.failLogin(ctx)
		}
		recordLogin(g.inst.cfg.Name, resultError)
		return false, err
	}

	ok, err := g.inst.VerifyPassword(password, ident.PasswordHash)
	if err != nil {
		recordLogin(g.inst.cfg.Name, resultError)
		return false, err
	}
	if !ok {
		recordLogin(g.inst.cfg.Name, resultFailure)
		return false, g.failLogin(ctx)
	}

	if err := g.binding.Bind(ctx, ident); err != nil {
		recordLogin(g.inst.cfg.Name, resultError)
		return false, err
	}

	g.setCurrent(ident)
	recordLogin(g.inst.cfg.Name, resultSuccess)
	return true, nil
}

// failLogin clears any stale login state after a credential miss.
func (g *Guard) failLogin(ctx context.Context) error {
	if err := g.binding.Clear(ctx); err != nil {
		return err
	}
	g.setCurrent(nil)
	return nil
}

// CheckLogin reports whether the session holds a verified login. The
// session binding is consulted first, then the auth driver chain; a
// driver hit binds the session immediately.
func (g *Guard) CheckLogin(ctx context.Context) (bool, error) {
	ident, err := g.binding.Check(ctx)
	if err != nil {
		return false, err
	}
	if ident != nil {
		g.setCurrent(ident)
		return true, nil
	}

	identifier, ok := g.inst.authChain.Authenticate(ctx, g.sess)
	if ok {
		ident, err := g.inst.idents.GetByField(ctx, g.inst.cfg.Field, identifier)
		if err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				g.inst.logger.Warn("auth driver returned unknown identifier",
					slog.String("identifier", identifier))
				g.setCurrent(nil)
				return false, nil
			}
			return false, err
		}
		if err := g.binding.Bind(ctx, ident); err != nil {
			return false, err
		}
		g.setCurrent(ident)
		return true, nil
	}

	g.setCurrent(nil)
	return false, nil
}

// Logout clears the login. Every auth driver gets a best-effort logout
// before the session keys are cleared. Idempotent.
func (g *Guard) Logout(ctx context.Context) error {
	g.inst.authChain.Logout(ctx, g.sess)
	if err := g.binding.Clear(ctx); err != nil {
		return err
	}
	g.setCurrent(nil)
	g.checked = true
	return nil
}

// User returns the current identity, running CheckLogin first if the
// session has not been resolved yet. Never nil: a logged-out session
// yields a guest placeholder.
func (g *Guard) User(ctx context.Context) (*identity.Identity, error) {
	if !g.checked {
		if _, err := g.CheckLogin(ctx); err != nil {
			return nil, err
		}
	}
	if g.current == nil {
		return identity.Guest(), nil
	}
	return g.current, nil
}

// HasAccess checks a privilege for the current user. The access driver
// chain is consulted first; when every driver abstains the user's
// effective privilege set decides. objectID < 0 means no instance
// qualifier.
func (g *Guard) HasAccess(ctx context.Context, object, action string, objectID int64) (bool, error) {
	start := time.Now()

	ident, err := g.User(ctx)
	if err != nil {
		return false, err
	}

	priv := privilege.Privilege{Object: object, Action: action}
	if objectID >= 0 {
		priv.ObjectID = objectID
		priv.HasID = true
	}

	switch g.inst.accessChain.Check(ctx, ident, priv) {
	case driver.Allow:
		recordAccessCheck(g.inst.cfg.Name, sourceDriver, true, start)
		return true, nil
	case driver.Deny:
		recordAccessCheck(g.inst.cfg.Name, sourceDriver, false, start)
		return false, nil
	}

	effective, err := g.resolver.EffectiveFor(ctx, ident)
	if err != nil {
		return false, err
	}
	allowed := effective.Allows(object, action, objectID)
	recordAccessCheck(g.inst.cfg.Name, sourceGrants, allowed, start)
	return allowed, nil
}

// AssignPrivilege grants a privilege to the current user and
// invalidates the effective-privilege cache. Guests cannot hold grants.
func (g *Guard) AssignPrivilege(ctx context.Context, s string) (ulid.ULID, error) {
	ident, err := g.User(ctx)
	if err != nil {
		return ulid.ULID{}, err
	}
	if ident.IsGuest() {
		return ulid.ULID{}, oops.In("doorman").Code("GUEST_PRIVILEGE").
			Errorf("guests cannot hold privileges")
	}

	id, err := g.inst.Grant(ctx, identity.OwnerIdentity, ident.ID, s)
	if err != nil {
		return ulid.ULID{}, err
	}
	g.resolver.Invalidate()
	return id, nil
}

// RevokePrivilege removes a privilege from the current user and
// invalidates the effective-privilege cache. Revoking an unheld
// privilege is a no-op.
func (g *Guard) RevokePrivilege(ctx context.Context, s string) error {
	ident, err := g.User(ctx)
	if err != nil {
		return err
	}
	if ident.IsGuest() {
		return oops.In("doorman").Code("GUEST_PRIVILEGE").
			Errorf("guests cannot hold privileges")
	}

	if err := g.inst.Revoke(ctx, identity.OwnerIdentity, ident.ID, s); err != nil {
		return err
	}
	g.resolver.Invalidate()
	return nil
}

// setCurrent updates the identity cache and drops the stale privilege
// cache alongside it.
func (g *Guard) setCurrent(ident *identity.Identity) {
	g.current = ident
	g.checked = true
	g.resolver.Invalidate()
}
