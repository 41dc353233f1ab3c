// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

// Package catalog defines the origin catalog and market adaptation contracts,
// plus the HTTP client that implements the origin side against the catalog
// service. The cache and coordinator consume only the interfaces.
package catalog

import (
	"context"
	"errors"

	"github.com/tomtom215/shopgraph/internal/models"
)

// ErrUnavailable indicates the origin catalog could not serve the request.
var ErrUnavailable = errors.New("catalog: origin unavailable")

// Origin fetches product summaries from the catalog service.
type Origin interface {
	// FetchProducts returns up to count products for the market, starting at
	// offset. An empty category means all categories. Fewer than count items
	// signals the catalog is exhausted for the query, not an error.
	FetchProducts(ctx context.Context, market, category string, offset, count int) ([]models.Product, error)
}

// MarketAdapter adapts a product for presentation in a target market
// (currency conversion, locale). Implementations are pure: they copy,
// never mutate.
type MarketAdapter interface {
	AdaptForMarket(product models.Product, marketID string) models.Product
}
