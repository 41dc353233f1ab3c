// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

// Package models defines the shared domain types exchanged between the
// catalog, cache, and recommendation layers.
package models

import (
	"github.com/goccy/go-json"
)

// Product is a catalog product summary. Instances are immutable once cached:
// market adaptation copies a product, it never mutates one in place.
type Product struct {
	// ID is the catalog product identifier.
	ID string `json:"id"`

	// Title is the display title, in the origin's default language.
	Title string `json:"title"`

	// Price is the unit price in Currency.
	Price float64 `json:"price"`

	// Currency is the ISO 4217 currency code of Price.
	Currency string `json:"currency"`

	// Category is the catalog category slug.
	Category string `json:"category"`

	// PopularityScore is a pre-computed popularity metric from the catalog,
	// normalized to [0, 1].
	PopularityScore float64 `json:"popularity_score,omitempty"`

	// Raw is the unmodified origin payload, kept so downstream adapters can
	// reach fields the summary does not model.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// Clone returns a copy of the product with its own Raw buffer.
// Use this before any per-market adaptation.
func (p Product) Clone() Product {
	out := p
	if p.Raw != nil {
		out.Raw = make(json.RawMessage, len(p.Raw))
		copy(out.Raw, p.Raw)
	}
	return out
}

// ProductIDs extracts the IDs of a product slice, preserving order.
func ProductIDs(products []Product) []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}
