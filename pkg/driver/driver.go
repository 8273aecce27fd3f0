// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package driver defines the pluggable authentication and access driver
// contracts and the chains that consult them in registration order.
package driver

import (
	"context"

	"github.com/torchedm/doorman/pkg/identity"
	"github.com/torchedm/doorman/pkg/privilege"
	"github.com/torchedm/doorman/pkg/session"
)

// Decision is a driver's opinion on an access check.
type Decision int

const (
	// Abstain means the driver has no opinion; the next driver is consulted.
	Abstain Decision = iota
	// Allow grants the check and stops the chain.
	Allow
	// Deny refuses the check and stops the chain.
	Deny
)

// String returns the decision name for logging.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "abstain"
	}
}

// AuthDriver validates out-of-band credentials carried by a request,
// such as API tokens. A successful authentication yields the identifier
// value of the account to bind the session to.
type AuthDriver interface {
	// Name identifies the driver in logs.
	Name() string

	// Authenticate inspects the session for credentials this driver
	// understands. ok is false when the driver has no opinion. An error
	// is treated as no opinion by the chain.
	Authenticate(ctx context.Context, sess session.Store) (identifier string, ok bool, err error)

	// Logout discards any driver-held credentials from the session.
	// Best-effort: errors are logged, not propagated.
	Logout(ctx context.Context, sess session.Store) error
}

// AccessDriver gives an opinion on whether an identity may exercise a
// privilege, before the stored grants are consulted.
type AccessDriver interface {
	// Name identifies the driver in logs.
	Name() string

	// Check returns the driver's opinion. An error is treated as
	// Abstain by the chain.
	Check(ctx context.Context, ident *identity.Identity, priv privilege.Privilege) (Decision, error)
}
