// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package privilege implements the dotted privilege grammar and its
// evaluation rules.
//
// A privilege serializes to "object", "object.action" or
// "object.action.id", or the literal universal privilege "all". Object and
// action segments are letters and underscores; the id segment is numeric.
package privilege

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/oops"
)

// Wildcard is the universal privilege granting every action on every object.
const Wildcard = "all"

// Placeholder is the generic object segment expanded against the configured
// known object types. "object.create" held by an admin becomes "doc.create",
// "page.create", ... at resolution time.
const Placeholder = "object"

// privilegeRegex anchors the serialized grammar:
// object[.action[.object_id]] with letter/underscore segments and a numeric id.
var privilegeRegex = regexp.MustCompile(`^[A-Za-z_]+(\.[A-Za-z_]+)?(\.[0-9]+)?$`)

// ErrMalformed is wrapped by every parse failure.
var ErrMalformed = oops.Code("MALFORMED_PRIVILEGE").Errorf("malformed privilege string")

// Privilege is one parsed access grant.
type Privilege struct {
	Object   string
	Action   string // empty when the grant covers every action
	ObjectID int64  // 0 when the grant covers every instance
	HasID    bool
}

// Parse validates s against the grammar and splits it into segments.
func Parse(s string) (Privilege, error) {
	if s == Wildcard {
		return Privilege{Object: Wildcard}, nil
	}
	if !privilegeRegex.MatchString(s) {
		return Privilege{}, oops.With("privilege", s).Wrap(ErrMalformed)
	}

	parts := strings.Split(s, ".")
	p := Privilege{Object: parts[0]}
	if len(parts) > 1 {
		p.Action = parts[1]
	}
	if len(parts) > 2 {
		id, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			// Regex admits only digits; overflow is the remaining failure.
			return Privilege{}, oops.With("privilege", s).Wrap(ErrMalformed)
		}
		p.ObjectID = id
		p.HasID = true
	}
	return p, nil
}

// Valid reports whether s parses under the grammar.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// String reassembles the serialized form.
func (p Privilege) String() string {
	if p.Object == Wildcard {
		return Wildcard
	}
	var b strings.Builder
	b.WriteString(p.Object)
	if p.Action != "" {
		b.WriteString(".")
		b.WriteString(p.Action)
	}
	if p.HasID {
		b.WriteString(".")
		b.WriteString(strconv.FormatInt(p.ObjectID, 10))
	}
	return b.String()
}

// IsWildcard reports whether the privilege is the universal grant.
func (p Privilege) IsWildcard() bool {
	return p.Object == Wildcard
}

// IsPlaceholder reports whether the privilege uses the generic object
// segment and should be expanded against known object types.
func (p Privilege) IsPlaceholder() bool {
	return p.Object == Placeholder
}
