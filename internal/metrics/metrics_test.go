// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCacheLookupsCounter(t *testing.T) {
	before := testutil.ToFloat64(CacheLookups.WithLabelValues("exact"))
	CacheLookups.WithLabelValues("exact").Inc()
	after := testutil.ToFloat64(CacheLookups.WithLabelValues("exact"))

	if after != before+1 {
		t.Errorf("expected counter to increment by 1, got %f -> %f", before, after)
	}
}

func TestCircuitBreakerStateGauge(t *testing.T) {
	CircuitBreakerState.WithLabelValues("bridge").Set(2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("bridge")); got != 2 {
		t.Errorf("expected gauge 2 (open), got %f", got)
	}

	CircuitBreakerState.WithLabelValues("bridge").Set(0)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("bridge")); got != 0 {
		t.Errorf("expected gauge 0 (closed), got %f", got)
	}
}

func TestSessionTurnsCounter(t *testing.T) {
	before := testutil.ToFloat64(SessionTurns)
	SessionTurns.Inc()
	SessionTurns.Inc()
	after := testutil.ToFloat64(SessionTurns)

	if after != before+2 {
		t.Errorf("expected counter to increment by 2, got %f -> %f", before, after)
	}
}
