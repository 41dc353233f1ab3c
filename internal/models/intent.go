// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package models

// Intent sources.
const (
	IntentSourceRemote        = "remote"
	IntentSourceLocalFallback = "local_fallback"
)

// Intent labels. The first block is what classification produces; the
// second is refined labels introduced by intent evolution.
const (
	IntentSearch   = "search"
	IntentBrowse   = "browse"
	IntentCompare  = "compare"
	IntentPurchase = "purchase"
	IntentSupport  = "support"

	IntentRefinedSearch    = "refined_search"
	IntentFocusedBrowse    = "focused_browse"
	IntentComparison       = "comparison"
	IntentInformedPurchase = "informed_purchase"
)

// IntentRecord is one intent classification for a user query, produced by
// the bridge client (remote service or local fallback heuristic).
type IntentRecord struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	MarketID   string  `json:"market_id"`
}
