// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package driver

import (
	"context"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/torchedm/doorman/pkg/identity"
	"github.com/torchedm/doorman/pkg/privilege"
)

// SubjectAny matches every identity, guests included.
const SubjectAny = "*"

// GlobRule maps a privilege pattern to a decision for a subject.
// Subject is a username or SubjectAny. Pattern is a glob over the
// canonical privilege string with '.' as separator, so "doc.*" matches
// "doc.edit" but not "doc.edit.5".
type GlobRule struct {
	Subject string
	Pattern string
	Effect  Decision
}

// compiledRule holds a rule and its compiled glob.
type compiledRule struct {
	rule GlobRule
	glob glob.Glob
}

// GlobAccessDriver answers access checks from a static rule table.
// Rules are evaluated in declaration order; the first match decides.
// No match means abstain.
//
// Thread-safety: rules are immutable after construction.
type GlobAccessDriver struct {
	rules []compiledRule
}

var _ AccessDriver = (*GlobAccessDriver)(nil)

// NewGlobAccessDriver compiles the rule table. Returns an error if any
// pattern fails to compile.
func NewGlobAccessDriver(rules []GlobRule) (*GlobAccessDriver, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		g, err := glob.Compile(r.Pattern, '.')
		if err != nil {
			return nil, oops.In("driver").
				Code("INVALID_ACCESS_PATTERN").
				With("subject", r.Subject).
				With("pattern", r.Pattern).
				Wrap(err)
		}
		compiled = append(compiled, compiledRule{rule: r, glob: g})
	}
	return &GlobAccessDriver{rules: compiled}, nil
}

// Name implements AccessDriver.
func (d *GlobAccessDriver) Name() string { return "glob" }

// Check implements AccessDriver. Guests only match SubjectAny rules.
func (d *GlobAccessDriver) Check(_ context.Context, ident *identity.Identity, priv privilege.Privilege) (Decision, error) {
	target := priv.String()
	for _, c := range d.rules {
		if c.rule.Subject != SubjectAny {
			if ident.IsGuest() || ident.Username != c.rule.Subject {
				continue
			}
		}
		if c.glob.Match(target) {
			return c.rule.Effect, nil
		}
	}
	return Abstain, nil
}
