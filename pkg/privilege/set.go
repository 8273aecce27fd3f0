// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package privilege

import "strconv"

// Set is a deduplicated collection of serialized privileges. Membership is
// checked on the serialized form; evaluation order in Allows follows the
// wildcard-first rules, not insertion order.
type Set struct {
	members map[string]struct{}
}

// NewSet builds a Set from serialized privileges. Strings are taken as-is;
// callers validate with Parse before anything reaches persistence.
func NewSet(privs ...string) Set {
	s := Set{members: make(map[string]struct{}, len(privs))}
	for _, p := range privs {
		s.members[p] = struct{}{}
	}
	return s
}

// Add inserts a serialized privilege.
func (s Set) Add(priv string) {
	s.members[priv] = struct{}{}
}

// Has reports exact membership of the serialized form.
func (s Set) Has(priv string) bool {
	_, ok := s.members[priv]
	return ok
}

// Len returns the number of distinct privileges held.
func (s Set) Len() int {
	return len(s.members)
}

// Strings returns the members in unspecified order.
func (s Set) Strings() []string {
	out := make([]string, 0, len(s.members))
	for p := range s.members {
		out = append(out, p)
	}
	return out
}

// Allows evaluates whether the held privileges grant action on an object
// instance. Checks short-circuit in order:
//
//  1. "all"
//  2. "{object}.all"
//  3. "{object}"
//  4. "{object}.{action}"
//  5. "{object}.{action}.{id}"
func (s Set) Allows(object, action string, objectID int64) bool {
	if s.Has(Wildcard) {
		return true
	}
	if s.Has(object + "." + Wildcard) {
		return true
	}
	if s.Has(object) {
		return true
	}
	if s.Has(object + "." + action) {
		return true
	}
	return s.Has(object + "." + action + "." + strconv.FormatInt(objectID, 10))
}

// Expand resolves placeholder privileges ("object.{action}") into one
// concrete privilege per known object type, preserving the action (and id,
// when present). Expansion follows the order of knownObjects; placeholders
// themselves do not survive. Non-placeholder members pass through unchanged.
func Expand(privs []string, knownObjects []string) Set {
	out := NewSet()
	for _, raw := range privs {
		p, err := Parse(raw)
		if err != nil {
			// Malformed strings are rejected at assignment time; anything
			// that slipped into storage is skipped rather than matched.
			continue
		}
		// Only "object.{action}" shapes expand; a bare "object" privilege
		// is an ordinary grant on an object type literally named "object".
		if !p.IsPlaceholder() || p.Action == "" {
			out.Add(p.String())
			continue
		}
		for _, obj := range knownObjects {
			expanded := p
			expanded.Object = obj
			out.Add(expanded.String())
		}
	}
	return out
}
