// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package doorman

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torchedm/doorman/pkg/driver"
	"github.com/torchedm/doorman/pkg/identity"
	"github.com/torchedm/doorman/pkg/privilege"
)

// flakyAccessDriver fails every check.
type flakyAccessDriver struct{}

func (flakyAccessDriver) Name() string { return "flaky" }

func (flakyAccessDriver) Check(context.Context, *identity.Identity, privilege.Privilege) (driver.Decision, error) {
	return driver.Deny, assert.AnError
}

func TestDriverErrorMetric_IncrementedOnSwallowedFailure(t *testing.T) {
	ctx := context.Background()

	chain := driver.NewAccessChain(nil)
	chain.Register(flakyAccessDriver{})

	cfg := testConfig()
	cfg.Name = "metrics"
	f := newFixtureWithChains(t, cfg, nil, chain)
	ident := f.addUser(t, "alice", "a@x.com", "s3cret")

	series := driverErrors.WithLabelValues("metrics", "flaky")
	before := testutil.ToFloat64(series)

	// The failing driver abstains, so the check falls through to grants.
	allowed, err := f.inst.AccessFor(ctx, ident, "doc", "edit", -1)
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.Equal(t, before+1, testutil.ToFloat64(series))
}
