// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

// Package bridge wraps the external intent-extraction service behind a
// circuit breaker with bounded retries and a pure local fallback. Callers
// always get an IntentRecord: remote when the service cooperates, the
// fallback heuristic when it does not. Only HealthCheck surfaces errors.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/shopgraph/internal/config"
	"github.com/tomtom215/shopgraph/internal/logging"
	"github.com/tomtom215/shopgraph/internal/metrics"
	"github.com/tomtom215/shopgraph/internal/models"
)

const breakerName = "intent-bridge"

// errClientStatus marks 4xx responses, which are not retried.
var errClientStatus = errors.New("bridge: client error status")

// MarketContext is the per-market presentation context sent alongside a
// query so the remote service can localize its classification.
type MarketContext struct {
	MarketID string `json:"market_id"`
	Currency string `json:"currency"`
	Locale   string `json:"locale"`
}

// Status is the bridge health snapshot.
type Status struct {
	Healthy      bool   `json:"healthy"`
	BreakerState string `json:"breaker_state"`
}

// Client calls the intent service with circuit breaker protection.
//
// The breaker uses real time for its open-interval accounting; tests
// exercise transitions with a short configured OpenTimeout rather than by
// mocking the clock.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cfg        config.BridgeConfig
	cb         *gobreaker.CircuitBreaker[models.IntentRecord]
}

// NewClient creates a bridge client.
// Breaker policy: opens after cfg.FailureThreshold consecutive failures,
// stays open for cfg.OpenTimeout, then closes again after
// cfg.SuccessThreshold consecutive half-open successes.
func NewClient(cfg config.BridgeConfig) *Client {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[models.IntentRecord](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: uint32(cfg.SuccessThreshold),
		Timeout:     cfg.OpenTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.WithComponent("bridge").Info().
				Str("from", fromStr).
				Str("to", toStr).
				Msg("Circuit breaker state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		cfg: cfg,
		cb:  cb,
	}
}

// ExtractIntent classifies the query, falling back to the local heuristic
// when the breaker is open, retries are exhausted, or the response cannot
// be used. It never returns an error: degraded classification is still a
// classification.
func (c *Client) ExtractIntent(ctx context.Context, query, marketID string) models.IntentRecord {
	record, err := c.cb.Execute(func() (models.IntentRecord, error) {
		return c.extractIntentRemote(ctx, query, marketID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.BridgeRequests.WithLabelValues("rejected").Inc()
			logging.WithComponent("bridge").Debug().
				Err(err).
				Msg("Breaker rejected intent call, using local fallback")
		} else {
			metrics.BridgeRequests.WithLabelValues("failure").Inc()
			logging.WithComponent("bridge").Warn().
				Err(err).
				Str("market_id", marketID).
				Msg("Intent extraction failed, using local fallback")
		}
		metrics.BridgeRequests.WithLabelValues("fallback").Inc()
		return FallbackIntent(query, marketID)
	}

	metrics.BridgeRequests.WithLabelValues("success").Inc()
	return record
}

// extractIntentRemote performs one breaker-accounted attempt sequence:
// the hard request timeout covers all retries of a single logical call.
func (c *Client) extractIntentRemote(ctx context.Context, query, marketID string) (models.IntentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var record models.IntentRecord
	err := c.retryWithBackoff(ctx, func() error {
		var err error
		record, err = c.postExtractIntent(ctx, query, marketID)
		return err
	})
	return record, err
}

// retryWithBackoff retries fn with exponential backoff for retryable
// failures (timeouts, 5xx). Client errors abort immediately; backoff waits
// are cancellable.
func (c *Client) retryWithBackoff(ctx context.Context, fn func() error) error {
	var err error
	delay := c.cfg.RetryDelay

	for attempt := 0; attempt < c.cfg.RetryAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, errClientStatus) {
			return err
		}

		if attempt < c.cfg.RetryAttempts-1 {
			logging.WithComponent("bridge").Debug().
				Err(err).
				Int("attempt", attempt+1).
				Int("max_attempts", c.cfg.RetryAttempts).
				Dur("delay", delay).
				Msg("Retrying intent call")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}

// extractIntentRequest is the POST /extract-intent payload.
type extractIntentRequest struct {
	Query         string        `json:"query"`
	MarketContext MarketContext `json:"market_context"`
}

// extractIntentResponse is the remote service's classification payload.
type extractIntentResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

func (c *Client) postExtractIntent(ctx context.Context, query, marketID string) (models.IntentRecord, error) {
	payload, err := json.Marshal(extractIntentRequest{
		Query:         query,
		MarketContext: MarketContextFor(marketID),
	})
	if err != nil {
		return models.IntentRecord{}, fmt.Errorf("encode intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract-intent", bytes.NewReader(payload))
	if err != nil {
		return models.IntentRecord{}, fmt.Errorf("build intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.IntentRecord{}, fmt.Errorf("intent request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Decoded below.
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.IntentRecord{}, fmt.Errorf("%w: status %d: %s", errClientStatus, resp.StatusCode, string(body))
	default:
		return models.IntentRecord{}, fmt.Errorf("intent request: status %d", resp.StatusCode)
	}

	var out extractIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.IntentRecord{}, fmt.Errorf("decode intent response: %w", err)
	}
	if out.Intent == "" {
		return models.IntentRecord{}, fmt.Errorf("intent response missing intent label")
	}

	return models.IntentRecord{
		Intent:     out.Intent,
		Confidence: out.Confidence,
		Source:     models.IntentSourceRemote,
		MarketID:   marketID,
	}, nil
}

// HealthCheck probes GET /health through the breaker, so non-2xx responses
// and timeouts on the probe count toward the same failure accounting as
// intent calls. Breaker-open short-circuits without a network attempt; the
// returned Status carries the breaker state as of after the probe.
func (c *Client) HealthCheck(ctx context.Context) Status {
	_, err := c.cb.Execute(func() (models.IntentRecord, error) {
		return models.IntentRecord{}, c.probeHealth(ctx)
	})

	return Status{
		Healthy:      err == nil,
		BreakerState: stateToString(c.cb.State()),
	}
}

func (c *Client) probeHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health request: status %d", resp.StatusCode)
	}
	return nil
}

// BreakerState exposes the current breaker state for diagnostics.
func (c *Client) BreakerState() string {
	return stateToString(c.cb.State())
}

// stateToFloat converts breaker state to the metric gauge value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts breaker state to its log label.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
