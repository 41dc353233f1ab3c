// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package catalog

import (
	"math"
	"strings"

	"github.com/tomtom215/shopgraph/internal/models"
)

// MarketInfo describes presentation settings for a market.
type MarketInfo struct {
	Currency string
	Locale   string
	// USDRate converts a USD base price into the market currency.
	USDRate float64
}

// marketTable is the static market registry. Unknown markets fall back to US.
var marketTable = map[string]MarketInfo{
	"us": {Currency: "USD", Locale: "en-US", USDRate: 1.0},
	"gb": {Currency: "GBP", Locale: "en-GB", USDRate: 0.79},
	"de": {Currency: "EUR", Locale: "de-DE", USDRate: 0.92},
	"fr": {Currency: "EUR", Locale: "fr-FR", USDRate: 0.92},
	"jp": {Currency: "JPY", Locale: "ja-JP", USDRate: 149.0},
	"au": {Currency: "AUD", Locale: "en-AU", USDRate: 1.53},
	"ca": {Currency: "CAD", Locale: "en-CA", USDRate: 1.36},
	"in": {Currency: "INR", Locale: "en-IN", USDRate: 83.2},
	"br": {Currency: "BRL", Locale: "pt-BR", USDRate: 5.4},
	"mx": {Currency: "MXN", Locale: "es-MX", USDRate: 18.6},
}

// defaultMarket is used for markets not in the table.
var defaultMarket = marketTable["us"]

// MarketFor returns the market info for id, falling back to the default
// market when the id is unknown.
func MarketFor(id string) MarketInfo {
	if info, ok := marketTable[strings.ToLower(id)]; ok {
		return info
	}
	return defaultMarket
}

// StaticAdapter adapts products using the static market registry.
// Prices in the catalog are USD-based; adaptation converts to the market
// currency and rounds to two decimals (zero for JPY).
type StaticAdapter struct{}

var _ MarketAdapter = (*StaticAdapter)(nil)

// NewStaticAdapter returns a market adapter backed by the static registry.
func NewStaticAdapter() *StaticAdapter {
	return &StaticAdapter{}
}

// AdaptForMarket returns a copy of product priced for the target market.
// Products already carrying the market currency pass through unchanged.
func (a *StaticAdapter) AdaptForMarket(product models.Product, marketID string) models.Product {
	info := MarketFor(marketID)

	adapted := product.Clone()
	if adapted.Currency == info.Currency {
		return adapted
	}

	adapted.Price = roundPrice(product.Price*info.USDRate, info.Currency)
	adapted.Currency = info.Currency
	return adapted
}

// roundPrice rounds to the customary precision for the currency.
func roundPrice(price float64, currency string) float64 {
	if currency == "JPY" {
		return math.Round(price)
	}
	return math.Round(price*100) / 100
}
