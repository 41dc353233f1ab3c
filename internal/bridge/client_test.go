// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/shopgraph/internal/config"
	"github.com/tomtom215/shopgraph/internal/models"
)

func decodeJSONBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func testBridgeConfig(url string) config.BridgeConfig {
	return config.BridgeConfig{
		URL:              url,
		RequestTimeout:   2 * time.Second,
		RetryAttempts:    2,
		RetryDelay:       5 * time.Millisecond,
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      100 * time.Millisecond,
	}
}

func TestExtractIntentRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract-intent" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		var req extractIntentRequest
		if err := decodeJSONBody(r, &req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "running shoes" {
			t.Errorf("unexpected query %q", req.Query)
		}
		if req.MarketContext.Currency != "GBP" {
			t.Errorf("expected GBP market context, got %q", req.MarketContext.Currency)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"intent": "search", "confidence": 0.92}`))
	}))
	defer srv.Close()

	client := NewClient(testBridgeConfig(srv.URL))
	record := client.ExtractIntent(context.Background(), "running shoes", "gb")

	if record.Intent != models.IntentSearch {
		t.Errorf("expected search intent, got %q", record.Intent)
	}
	if record.Source != models.IntentSourceRemote {
		t.Errorf("expected remote source, got %q", record.Source)
	}
	if record.Confidence != 0.92 {
		t.Errorf("expected confidence 0.92, got %v", record.Confidence)
	}
	if record.MarketID != "gb" {
		t.Errorf("expected market gb, got %q", record.MarketID)
	}
}

func TestExtractIntentRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"intent": "compare", "confidence": 0.8}`))
	}))
	defer srv.Close()

	client := NewClient(testBridgeConfig(srv.URL))
	record := client.ExtractIntent(context.Background(), "compare these", "us")

	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
	if record.Source != models.IntentSourceRemote {
		t.Errorf("retry should have recovered remotely, got source %q", record.Source)
	}
}

func TestExtractIntentNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(testBridgeConfig(srv.URL))
	record := client.ExtractIntent(context.Background(), "hello", "us")

	if calls.Load() != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", calls.Load())
	}
	if record.Source != models.IntentSourceLocalFallback {
		t.Errorf("expected fallback, got source %q", record.Source)
	}
}

func TestBreakerOpensAndShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testBridgeConfig(srv.URL)
	cfg.RetryAttempts = 1 // one attempt per breaker-accounted call
	client := NewClient(cfg)
	ctx := context.Background()

	// Three consecutive failures open the breaker.
	for i := 0; i < 3; i++ {
		record := client.ExtractIntent(ctx, "buy shoes", "us")
		if record.Source != models.IntentSourceLocalFallback {
			t.Fatalf("call %d: expected fallback, got %q", i+1, record.Source)
		}
	}
	if client.BreakerState() != "open" {
		t.Fatalf("expected open breaker, got %q", client.BreakerState())
	}

	// A call while open must not hit the network.
	before := calls.Load()
	record := client.ExtractIntent(ctx, "buy shoes", "us")
	if calls.Load() != before {
		t.Error("open breaker must short-circuit without a network attempt")
	}
	if record.Source != models.IntentSourceLocalFallback {
		t.Errorf("expected fallback while open, got %q", record.Source)
	}
	if record.Intent != models.IntentPurchase {
		t.Errorf("fallback heuristic should classify %q as purchase, got %q", "buy shoes", record.Intent)
	}
}

func TestBreakerRecoversAfterTimeout(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"intent": "search", "confidence": 0.9}`))
	}))
	defer srv.Close()

	cfg := testBridgeConfig(srv.URL)
	cfg.RetryAttempts = 1
	client := NewClient(cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		client.ExtractIntent(ctx, "shoes", "us")
	}
	if client.BreakerState() != "open" {
		t.Fatalf("expected open breaker, got %q", client.BreakerState())
	}

	failing.Store(false)
	time.Sleep(cfg.OpenTimeout + 20*time.Millisecond)

	// Two half-open successes close the breaker.
	for i := 0; i < 2; i++ {
		record := client.ExtractIntent(ctx, "shoes", "us")
		if record.Source != models.IntentSourceRemote {
			t.Fatalf("half-open probe %d should succeed remotely, got %q", i+1, record.Source)
		}
	}
	if client.BreakerState() != "closed" {
		t.Errorf("expected closed breaker after recovery, got %q", client.BreakerState())
	}
}

func TestFallbackIntent(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"compare nike vs adidas", models.IntentCompare},
		{"buy running shoes", models.IntentPurchase},
		{"I want a refund", models.IntentSupport},
		{"show me trending sneakers", models.IntentBrowse},
		{"red dress size 8", models.IntentSearch},
		{"", models.IntentSearch},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			record := FallbackIntent(tt.query, "us")
			if record.Intent != tt.want {
				t.Errorf("FallbackIntent(%q) = %q, want %q", tt.query, record.Intent, tt.want)
			}
			if record.Source != models.IntentSourceLocalFallback {
				t.Errorf("expected local_fallback source, got %q", record.Source)
			}
			if record.Confidence != fallbackConfidence {
				t.Errorf("expected fixed confidence %v, got %v", fallbackConfidence, record.Confidence)
			}
		})
	}
}

func TestMarketContextFor(t *testing.T) {
	ctx := MarketContextFor("de")
	if ctx.Currency != "EUR" || ctx.Locale != "de-DE" {
		t.Errorf("unexpected context for de: %+v", ctx)
	}

	unknown := MarketContextFor("zz")
	if unknown.Currency != "USD" {
		t.Errorf("unknown market should default to USD, got %q", unknown.Currency)
	}
	if unknown.MarketID != "zz" {
		t.Errorf("market id must be preserved, got %q", unknown.MarketID)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(testBridgeConfig(srv.URL))
	status := client.HealthCheck(context.Background())

	if !status.Healthy {
		t.Error("expected healthy status")
	}
	if status.BreakerState != "closed" {
		t.Errorf("expected closed breaker, got %q", status.BreakerState)
	}
}

func TestHealthCheckDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(testBridgeConfig(srv.URL))
	status := client.HealthCheck(context.Background())

	if status.Healthy {
		t.Error("expected unhealthy status for unreachable bridge")
	}
}

func TestHealthCheckFailuresCountTowardBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(testBridgeConfig(srv.URL))

	// FailureThreshold probe failures open the breaker.
	for i := 0; i < 3; i++ {
		if status := client.HealthCheck(context.Background()); status.Healthy {
			t.Fatalf("probe %d: expected unhealthy status", i+1)
		}
	}
	if got := client.BreakerState(); got != "open" {
		t.Fatalf("expected open breaker after failed probes, got %q", got)
	}

	// While open, probes short-circuit without touching the network.
	before := calls.Load()
	status := client.HealthCheck(context.Background())
	if status.Healthy {
		t.Error("expected unhealthy status while breaker open")
	}
	if status.BreakerState != "open" {
		t.Errorf("expected open breaker state, got %q", status.BreakerState)
	}
	if calls.Load() != before {
		t.Errorf("open breaker must not probe the network, got %d extra calls", calls.Load()-before)
	}
}
