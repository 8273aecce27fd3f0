// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package driver

import (
	"context"

	"github.com/samber/oops"

	"github.com/torchedm/doorman/pkg/session"
)

// TokenLookup resolves an API token to an account identifier. ok is
// false for unknown tokens.
type TokenLookup func(ctx context.Context, token string) (identifier string, ok bool, err error)

// TokenAuthDriver authenticates requests that carry an API token in the
// session. The token is resolved to an identifier through a lookup
// supplied by the host application.
type TokenAuthDriver struct {
	key    string
	lookup TokenLookup
}

var _ AuthDriver = (*TokenAuthDriver)(nil)

// NewTokenAuthDriver creates a token driver reading the token from
// sessionKey.
func NewTokenAuthDriver(sessionKey string, lookup TokenLookup) *TokenAuthDriver {
	return &TokenAuthDriver{key: sessionKey, lookup: lookup}
}

// Name implements AuthDriver.
func (d *TokenAuthDriver) Name() string { return "token" }

// Authenticate implements AuthDriver. A missing or unknown token is no
// opinion, not an error.
func (d *TokenAuthDriver) Authenticate(ctx context.Context, sess session.Store) (string, bool, error) {
	token, present, err := sess.Get(ctx, d.key)
	if err != nil {
		return "", false, oops.In("driver").
			Code("TOKEN_READ_FAILED").
			With("key", d.key).
			Wrap(err)
	}
	if !present || token == "" {
		return "", false, nil
	}

	identifier, ok, err := d.lookup(ctx, token)
	if err != nil {
		return "", false, oops.In("driver").
			Code("TOKEN_LOOKUP_FAILED").
			Wrap(err)
	}
	if !ok {
		return "", false, nil
	}
	return identifier, true, nil
}

// Logout implements AuthDriver by discarding the stored token.
func (d *TokenAuthDriver) Logout(ctx context.Context, sess session.Store) error {
	return sess.Delete(ctx, d.key)
}
