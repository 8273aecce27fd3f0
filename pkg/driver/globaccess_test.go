// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torchedm/doorman/pkg/identity"
	"github.com/torchedm/doorman/pkg/privilege"
)

func mustPriv(t *testing.T, s string) privilege.Privilege {
	t.Helper()
	p, err := privilege.Parse(s)
	require.NoError(t, err)
	return p
}

func TestGlobAccessDriver_Check(t *testing.T) {
	ctx := context.Background()

	alice, err := identity.New("alice", "a@x.com", "hash")
	require.NoError(t, err)
	alice.MarkPersisted()
	bob, err := identity.New("bob", "b@x.com", "hash")
	require.NoError(t, err)
	bob.MarkPersisted()

	drv, err := NewGlobAccessDriver([]GlobRule{
		{Subject: "alice", Pattern: "admin.*", Effect: Allow},
		{Subject: SubjectAny, Pattern: "banned.*", Effect: Deny},
		{Subject: SubjectAny, Pattern: "doc.read", Effect: Allow},
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		ident *identity.Identity
		priv  string
		want  Decision
	}{
		{"subject rule matches its subject", alice, "admin.shutdown", Allow},
		{"subject rule skipped for others", bob, "admin.shutdown", Abstain},
		{"wildcard subject matches anyone", bob, "banned.post", Deny},
		{"wildcard subject matches guests", identity.Guest(), "doc.read", Allow},
		{"single star does not cross segments", alice, "banned.post.5", Abstain},
		{"no rule matches", bob, "doc.edit", Abstain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := drv.Check(ctx, tt.ident, mustPriv(t, tt.priv))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGlobAccessDriver_FirstMatchWins(t *testing.T) {
	drv, err := NewGlobAccessDriver([]GlobRule{
		{Subject: SubjectAny, Pattern: "doc.edit", Effect: Deny},
		{Subject: SubjectAny, Pattern: "doc.*", Effect: Allow},
	})
	require.NoError(t, err)

	got, err := drv.Check(context.Background(), identity.Guest(), mustPriv(t, "doc.edit"))
	require.NoError(t, err)
	assert.Equal(t, Deny, got)

	got, err = drv.Check(context.Background(), identity.Guest(), mustPriv(t, "doc.read"))
	require.NoError(t, err)
	assert.Equal(t, Allow, got)
}

func TestNewGlobAccessDriver_InvalidPattern(t *testing.T) {
	_, err := NewGlobAccessDriver([]GlobRule{
		{Subject: SubjectAny, Pattern: "doc.[", Effect: Allow},
	})
	require.Error(t, err)
}
