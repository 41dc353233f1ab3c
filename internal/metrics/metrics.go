// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

// Package metrics provides Prometheus instrumentation for Shopgraph.
//
// Covered surfaces:
//   - Product cache lookups by hit kind, store errors, origin backfills
//   - Conversation sessions and turns
//   - Bridge client requests and circuit breaker state
//   - Recommendation latency and HTTP traffic
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Product cache metrics

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopgraph_cache_lookups_total",
			Help: "Total product cache lookups by hit kind",
		},
		[]string{"hit_kind"}, // exact, flexible, partial, miss
	)

	CacheStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopgraph_cache_store_errors_total",
			Help: "Total cache store errors, swallowed and degraded to miss or skipped write",
		},
		[]string{"operation"}, // get, put, invalidate
	)

	CacheBackfillItems = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shopgraph_cache_backfill_items_total",
			Help: "Total items fetched from origin to complete partial cache hits",
		},
	)

	OriginFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopgraph_origin_fetches_total",
			Help: "Total origin catalog fetches by outcome",
		},
		[]string{"outcome"}, // success, failure
	)

	// Session metrics

	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shopgraph_sessions_created_total",
			Help: "Total conversation sessions created",
		},
	)

	SessionTurns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shopgraph_session_turns_total",
			Help: "Total turns appended across all sessions",
		},
	)

	SessionStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopgraph_session_store_errors_total",
			Help: "Total session store errors by operation",
		},
		[]string{"operation"}, // load, create, add_turn
	)

	// Bridge client metrics

	BridgeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopgraph_bridge_requests_total",
			Help: "Total bridge requests by outcome",
		},
		[]string{"outcome"}, // success, failure, rejected, fallback
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shopgraph_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopgraph_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Coordinator metrics

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shopgraph_recommend_duration_seconds",
			Help:    "End-to-end recommendation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecommendResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopgraph_recommend_results_total",
			Help: "Total recommendation requests by result quality",
		},
		[]string{"quality"}, // full, reduced, unavailable
	)

	// HTTP metrics

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopgraph_http_requests_total",
			Help: "Total HTTP requests by method, path, and status class",
		},
		[]string{"method", "path", "status"},
	)
)
