// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/torchedm/doorman/pkg/identity"
)

// Session key suffixes. Keys are namespaced per instance:
// "{prefix}_identifier" and "{prefix}_login_hash".
const (
	identifierKeySuffix = "_identifier"
	loginHashKeySuffix  = "_login_hash"
)

// BindingConfig carries the instance configuration a Binding needs.
type BindingConfig struct {
	// KeyPrefix namespaces the session keys, normally the instance name.
	KeyPrefix string

	// Field is the canonical identifier attribute.
	Field identity.Field

	// Salt feeds login-hash derivation.
	Salt string

	// UseLoginHash requires the session hash to match the persisted one.
	// When false, a resolvable identifier alone proves the login.
	UseLoginHash bool
}

// Binding maps one session to a verified identity. It holds no state of its
// own beyond the store and repository handles; the login state lives in the
// session and the identity row.
type Binding struct {
	store  Store
	idents identity.Repository
	cfg    BindingConfig
}

// NewBinding creates a Binding over a session store.
func NewBinding(store Store, idents identity.Repository, cfg BindingConfig) (*Binding, error) {
	if store == nil {
		return nil, oops.Code("BINDING_INVALID").Errorf("session store is required")
	}
	if idents == nil {
		return nil, oops.Code("BINDING_INVALID").Errorf("identity repository is required")
	}
	if !cfg.Field.Valid() {
		return nil, oops.Code("BINDING_INVALID").With("field", string(cfg.Field)).
			Errorf("unknown identifier field")
	}
	return &Binding{store: store, idents: idents, cfg: cfg}, nil
}

func (b *Binding) identifierKey() string { return b.cfg.KeyPrefix + identifierKeySuffix }
func (b *Binding) loginHashKey() string  { return b.cfg.KeyPrefix + loginHashKeySuffix }

// Check verifies the session's login state. It returns the bound identity,
// or nil when the session is logged out. Unresolvable identifiers and hash
// mismatches clear the session keys and report logged out; storage failures
// propagate.
func (b *Binding) Check(ctx context.Context) (*identity.Identity, error) {
	identifier, ok, err := b.store.Get(ctx, b.identifierKey())
	if err != nil {
		return nil, oops.Code("BINDING_CHECK_FAILED").With("operation", "read identifier").Wrap(err)
	}
	if !ok || identifier == "" {
		// No identifier: make sure no orphaned hash survives either.
		if err := b.store.Delete(ctx, b.loginHashKey()); err != nil {
			return nil, oops.Code("BINDING_CHECK_FAILED").With("operation", "clear orphaned hash").Wrap(err)
		}
		return nil, nil
	}

	ident, err := b.idents.GetByField(ctx, b.cfg.Field, identifier)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			if clearErr := b.Clear(ctx); clearErr != nil {
				return nil, clearErr
			}
			return nil, nil
		}
		return nil, oops.Code("BINDING_CHECK_FAILED").With("operation", "resolve identifier").Wrap(err)
	}

	if b.cfg.UseLoginHash {
		sessionHash, ok, err := b.store.Get(ctx, b.loginHashKey())
		if err != nil {
			return nil, oops.Code("BINDING_CHECK_FAILED").With("operation", "read login hash").Wrap(err)
		}
		if !ok || sessionHash == "" || ident.LoginHash == "" || sessionHash != ident.LoginHash {
			if clearErr := b.Clear(ctx); clearErr != nil {
				return nil, clearErr
			}
			return nil, nil
		}
	}

	return ident, nil
}

// Bind marks the session as logged in for ident. Identifier and login hash
// are written before the session rotates; rotation is always the final
// step.
func (b *Binding) Bind(ctx context.Context, ident *identity.Identity) error {
	value := ident.IdentifierValue(b.cfg.Field)
	if value == "" {
		return oops.Code("BINDING_BIND_FAILED").With("field", string(b.cfg.Field)).
			Errorf("identity has no value for the identifier field")
	}

	if err := b.store.Set(ctx, b.identifierKey(), value); err != nil {
		return oops.Code("BINDING_BIND_FAILED").With("operation", "write identifier").Wrap(err)
	}

	if b.cfg.UseLoginHash {
		hash, err := newLoginHash(b.cfg.Salt, value)
		if err != nil {
			return err
		}
		if err := b.idents.RotateLoginHash(ctx, ident.ID, hash); err != nil {
			return oops.Code("BINDING_BIND_FAILED").With("operation", "rotate login hash").Wrap(err)
		}
		ident.LoginHash = hash
		if err := b.store.Set(ctx, b.loginHashKey(), hash); err != nil {
			return oops.Code("BINDING_BIND_FAILED").With("operation", "write login hash").Wrap(err)
		}
	}

	if err := b.store.Rotate(ctx); err != nil {
		return oops.Code("BINDING_BIND_FAILED").With("operation", "rotate session").Wrap(err)
	}
	return nil
}

// Clear removes both session keys. Idempotent: clearing an already-clean
// session succeeds.
func (b *Binding) Clear(ctx context.Context) error {
	if err := b.store.Delete(ctx, b.identifierKey()); err != nil {
		return oops.Code("BINDING_CLEAR_FAILED").With("operation", "delete identifier").Wrap(err)
	}
	if err := b.store.Delete(ctx, b.loginHashKey()); err != nil {
		return oops.Code("BINDING_CLEAR_FAILED").With("operation", "delete login hash").Wrap(err)
	}
	return nil
}

// newLoginHash derives a rotating login token. Salt, identifier, timestamp
// and fresh random bytes feed a sha256 so consecutive logins for the same
// identity can never produce the same hash.
func newLoginHash(salt, identifier string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", oops.Code("BINDING_HASH_FAILED").Wrap(err)
	}

	h := sha256.New()
	h.Write([]byte(salt))
	h.Write([]byte(identifier))
	h.Write([]byte(strconv.FormatInt(time.Now().UnixNano(), 10)))
	h.Write(nonce)
	return hex.EncodeToString(h.Sum(nil)), nil
}
