// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package productcache

import (
	"fmt"
	"strings"
)

// Fingerprint identifies a catalog query for caching purposes.
// Two requests with the same fingerprint are interchangeable.
type Fingerprint struct {
	Market   string
	Limit    int
	Offset   int
	Category string
}

// Normalize returns the fingerprint with lowercased market and category.
func (f Fingerprint) Normalize() Fingerprint {
	f.Market = strings.ToLower(f.Market)
	f.Category = strings.ToLower(f.Category)
	return f
}

// ExactKey is the store key for the exact-fingerprint entry.
func (f Fingerprint) ExactKey() string {
	return fmt.Sprintf("query:%s:%d:%d:%s", f.Market, f.Limit, f.Offset, f.Category)
}

// FlexibleKey is the store key for the market-level entry shared by all
// queries against the same market.
func (f Fingerprint) FlexibleKey() string {
	return "market:" + f.Market
}

// ProductKey is the store key for a per-product entry.
func ProductKey(productID string) string {
	return "product:" + productID
}

// HitKind classifies how a cache lookup was satisfied.
type HitKind int

const (
	// HitMiss means no usable entry was found; fetch everything from origin.
	HitMiss HitKind = iota
	// HitExact means an exact-fingerprint entry covered the request.
	HitExact
	// HitFlexible means the market-level entry covered the request.
	HitFlexible
	// HitPartial means a stored entry covered most of the request and the
	// deficit was fetched from origin.
	HitPartial
)

// String returns the metric label for the hit kind.
func (h HitKind) String() string {
	switch h {
	case HitExact:
		return "exact"
	case HitFlexible:
		return "flexible"
	case HitPartial:
		return "partial"
	default:
		return "miss"
	}
}

// TTLClass selects which tier an entry is written to.
type TTLClass int

const (
	// TTLExact is the short-lived exact-fingerprint tier.
	TTLExact TTLClass = iota
	// TTLFlexible is the longer-lived market-level tier.
	TTLFlexible
	// TTLIndividual is the per-product tier.
	TTLIndividual
)

// partialThreshold is the minimum stored count that still qualifies a
// stale-ish entry for deficit top-up instead of a full origin fetch:
// max(3, ceil(0.75*limit)).
func partialThreshold(limit int) int {
	t := (3*limit + 3) / 4
	if t < 3 {
		return 3
	}
	return t
}
