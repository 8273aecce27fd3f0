// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package doorman

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for login and access-check traffic.
var (
	// loginAttempts counts logins by instance and result.
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doorman_login_attempts_total",
		Help: "Total number of login attempts",
	}, []string{"instance", "result"})

	// accessChecks counts access checks by deciding source and decision.
	accessChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doorman_access_checks_total",
		Help: "Total number of access checks",
	}, []string{"instance", "source", "decision"})

	// accessCheckDuration tracks access-check latency.
	accessCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "doorman_access_check_duration_seconds",
		Help:    "Histogram of access check latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// driverErrors counts driver failures the chains swallow as no
	// opinion, incremented through the chain error hooks.
	driverErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doorman_driver_errors_total",
		Help: "Total number of driver errors treated as no opinion",
	}, []string{"instance", "driver"})
)

// Login attempt results.
const (
	resultSuccess = "success"
	resultFailure = "failure"
	resultError   = "error"
)

// Access check sources.
const (
	sourceDriver = "driver"
	sourceGrants = "grants"
)

func recordLogin(instance, result string) {
	loginAttempts.WithLabelValues(instance, result).Inc()
}

func recordAccessCheck(instance, source string, allowed bool, start time.Time) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	accessChecks.WithLabelValues(instance, source, decision).Inc()
	accessCheckDuration.Observe(time.Since(start).Seconds())
}

func recordDriverError(instance, driverName string) {
	driverErrors.WithLabelValues(instance, driverName).Inc()
}
