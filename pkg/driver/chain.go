// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package driver

import (
	"context"
	"log/slog"

	"github.com/torchedm/doorman/pkg/identity"
	"github.com/torchedm/doorman/pkg/privilege"
	"github.com/torchedm/doorman/pkg/session"
)

// AuthChain consults auth drivers in registration order. The first
// driver to authenticate wins; driver errors count as no opinion.
type AuthChain struct {
	drivers []AuthDriver
	logger  *slog.Logger
	onError func(driver string)
}

// NewAuthChain creates an empty auth chain. If logger is nil,
// slog.Default() is used.
func NewAuthChain(logger *slog.Logger) *AuthChain {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthChain{logger: logger}
}

// Register appends a driver to the chain. Registration order is
// consultation order.
func (c *AuthChain) Register(d AuthDriver) {
	c.drivers = append(c.drivers, d)
}

// Len reports the number of registered drivers.
func (c *AuthChain) Len() int { return len(c.drivers) }

// OnError registers a callback invoked with the driver name whenever a
// driver failure is swallowed as "no opinion".
func (c *AuthChain) OnError(fn func(driver string)) {
	c.onError = fn
}

// Authenticate asks each driver in order. Returns the identifier from
// the first driver that authenticates, or ok=false when every driver
// abstains or errors.
func (c *AuthChain) Authenticate(ctx context.Context, sess session.Store) (string, bool) {
	for _, d := range c.drivers {
		identifier, ok, err := d.Authenticate(ctx, sess)
		if err != nil {
			c.logger.Warn("auth driver failed, treating as no opinion",
				slog.String("driver", d.Name()),
				slog.String("error", err.Error()))
			if c.onError != nil {
				c.onError(d.Name())
			}
			continue
		}
		if ok {
			return identifier, true
		}
	}
	return "", false
}

// Logout asks every driver to discard its credentials. Best-effort:
// failures are logged and the remaining drivers still run.
func (c *AuthChain) Logout(ctx context.Context, sess session.Store) {
	for _, d := range c.drivers {
		if err := d.Logout(ctx, sess); err != nil {
			c.logger.Warn("auth driver logout failed",
				slog.String("driver", d.Name()),
				slog.String("error", err.Error()))
		}
	}
}

// AccessChain consults access drivers in registration order. The first
// non-abstain decision wins; driver errors count as abstain.
type AccessChain struct {
	drivers []AccessDriver
	logger  *slog.Logger
	onError func(driver string)
}

// NewAccessChain creates an empty access chain. If logger is nil,
// slog.Default() is used.
func NewAccessChain(logger *slog.Logger) *AccessChain {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessChain{logger: logger}
}

// Register appends a driver to the chain. Registration order is
// consultation order.
func (c *AccessChain) Register(d AccessDriver) {
	c.drivers = append(c.drivers, d)
}

// Len reports the number of registered drivers.
func (c *AccessChain) Len() int { return len(c.drivers) }

// OnError registers a callback invoked with the driver name whenever a
// driver failure is swallowed as abstain.
func (c *AccessChain) OnError(fn func(driver string)) {
	c.onError = fn
}

// Check asks each driver in order and returns the first non-abstain
// decision. Returns Abstain when every driver abstains or errors, in
// which case the caller falls back to stored grants.
func (c *AccessChain) Check(ctx context.Context, ident *identity.Identity, priv privilege.Privilege) Decision {
	for _, d := range c.drivers {
		decision, err := d.Check(ctx, ident, priv)
		if err != nil {
			c.logger.Warn("access driver failed, treating as abstain",
				slog.String("driver", d.Name()),
				slog.String("privilege", priv.String()),
				slog.String("error", err.Error()))
			if c.onError != nil {
				c.onError(d.Name())
			}
			continue
		}
		if decision != Abstain {
			return decision
		}
	}
	return Abstain
}
