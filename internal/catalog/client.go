// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/shopgraph/internal/config"
	"github.com/tomtom215/shopgraph/internal/metrics"
	"github.com/tomtom215/shopgraph/internal/models"
)

// Client provides access to the catalog service REST API.
// It implements Origin.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Origin = (*Client)(nil)

// productsResponse is the catalog service's product listing payload.
type productsResponse struct {
	Products []productPayload `json:"products"`
	Total    int              `json:"total"`
}

// productPayload mirrors the catalog service's product schema.
type productPayload struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Currency   string  `json:"currency"`
	Category   string  `json:"category"`
	Popularity float64 `json:"popularity"`
}

// NewClient creates a catalog API client.
//
// The rate limiter bounds origin load during cache-miss storms: cache misses
// and diversity backfills both land here, and the origin is the slowest
// dependency in the request path.
func NewClient(cfg config.CatalogConfig) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// FetchProducts returns up to count products for the market starting at offset.
func (c *Client) FetchProducts(ctx context.Context, market, category string, offset, count int) ([]models.Product, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("catalog rate limiter: %w", err)
	}

	query := url.Values{}
	query.Set("market", market)
	if category != "" {
		query.Set("category", category)
	}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("count", strconv.Itoa(count))

	endpoint := c.baseURL + "/api/products?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.OriginFetches.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.OriginFetches.WithLabelValues("failure").Inc()
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 512))
		if readErr != nil {
			return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	var payload productsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.OriginFetches.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	metrics.OriginFetches.WithLabelValues("success").Inc()

	products := make([]models.Product, 0, len(payload.Products))
	for _, p := range payload.Products {
		raw, err := json.Marshal(p)
		if err != nil {
			// Raw payload is best-effort; the summary fields are what matter.
			raw = nil
		}
		products = append(products, models.Product{
			ID:              p.ID,
			Title:           p.Title,
			Price:           p.Price,
			Currency:        p.Currency,
			Category:        p.Category,
			PopularityScore: p.Popularity,
			Raw:             raw,
		})
	}

	return products, nil
}

// Ping verifies connectivity to the catalog service.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("build catalog ping: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
