// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

// Package productcache implements the tiered query-result cache in front of
// the origin catalog. A lookup walks exact, flexible, then partial tiers
// before declaring a miss, and every successful origin fetch is written back
// through all three tiers. Cache failures never fail the read path: store
// errors on lookup degrade to a miss, and write-through errors are logged
// and dropped.
package productcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/shopgraph/internal/catalog"
	"github.com/tomtom215/shopgraph/internal/config"
	"github.com/tomtom215/shopgraph/internal/logging"
	"github.com/tomtom215/shopgraph/internal/metrics"
	"github.com/tomtom215/shopgraph/internal/models"
	"github.com/tomtom215/shopgraph/internal/store"
)

// entry is the serialized form of a cached product list.
type entry struct {
	Items    []models.Product `json:"items"`
	StoredAt time.Time        `json:"stored_at"`
}

// Cache is the tiered product cache. It owns all query:, market:, and
// product: keys in the store.
type Cache struct {
	kv     store.KV
	origin catalog.Origin
	cfg    config.CacheConfig
}

// New creates a Cache over kv, using origin for partial-hit deficit fetches.
func New(kv store.KV, origin catalog.Origin, cfg config.CacheConfig) *Cache {
	return &Cache{
		kv:     kv,
		origin: origin,
		cfg:    cfg,
	}
}

// Get performs the tiered lookup for a query fingerprint.
//
// Tier order: an exact-fingerprint entry that covers limit, then the
// market-level entry, then a partial entry holding at least
// max(3, ceil(0.75*limit)) items whose deficit is topped up from origin.
// Anything else is a miss and the caller fetches from origin itself.
// The returned slice holds at most limit items and is safe to mutate.
func (c *Cache) Get(ctx context.Context, fp Fingerprint, limit int) ([]models.Product, HitKind) {
	fp = fp.Normalize()

	exact := c.load(ctx, fp.ExactKey())
	if exact != nil && len(exact.Items) >= limit {
		metrics.CacheLookups.WithLabelValues(HitExact.String()).Inc()
		return cloneItems(exact.Items[:limit]), HitExact
	}

	flexible := c.load(ctx, fp.FlexibleKey())
	if flexible != nil && len(flexible.Items) >= limit {
		metrics.CacheLookups.WithLabelValues(HitFlexible.String()).Inc()
		return cloneItems(flexible.Items[:limit]), HitFlexible
	}

	// Partial tier: whichever entry holds more items.
	best := exact
	if flexible != nil && (best == nil || len(flexible.Items) > len(best.Items)) {
		best = flexible
	}
	if best != nil && len(best.Items) >= partialThreshold(limit) {
		items, ok := c.topUp(ctx, fp, best.Items, limit)
		if ok {
			metrics.CacheLookups.WithLabelValues(HitPartial.String()).Inc()
			return items, HitPartial
		}
	}

	metrics.CacheLookups.WithLabelValues(HitMiss.String()).Inc()
	return nil, HitMiss
}

// topUp fetches the deficit from origin and concatenates it after the
// stored items, deduplicating by product id. A failed deficit fetch
// disqualifies the partial hit.
func (c *Cache) topUp(ctx context.Context, fp Fingerprint, stored []models.Product, limit int) ([]models.Product, bool) {
	deficit := limit - len(stored)
	if deficit <= 0 {
		return cloneItems(stored[:limit]), true
	}

	// Over-fetch slightly so dedupe against stored items still fills the
	// deficit in the common case.
	fetched, err := c.origin.FetchProducts(ctx, fp.Market, fp.Category, fp.Offset+len(stored), deficit+2)
	if err != nil {
		logging.WithComponent("productcache").Debug().
			Err(err).
			Str("market", fp.Market).
			Int("deficit", deficit).
			Msg("Deficit fetch failed, degrading partial hit to miss")
		return nil, false
	}

	seen := make(map[string]struct{}, len(stored))
	items := cloneItems(stored)
	for _, p := range stored {
		seen[p.ID] = struct{}{}
	}
	for _, p := range fetched {
		if len(items) >= limit {
			break
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		items = append(items, p)
	}

	metrics.CacheBackfillItems.Add(float64(len(items) - len(stored)))

	// Write the merged result back through all tiers so the next identical
	// request is an exact hit instead of a repeat deficit fetch.
	c.WriteThrough(ctx, fp, items)

	// The origin may be exhausted; fewer than limit is still a valid
	// partial result as long as the top-up itself succeeded.
	return items, true
}

// Put writes items under one TTL class for the fingerprint.
func (c *Cache) Put(ctx context.Context, fp Fingerprint, items []models.Product, class TTLClass) error {
	fp = fp.Normalize()

	switch class {
	case TTLExact:
		return c.storeEntry(ctx, fp.ExactKey(), items, c.cfg.ExactTTL)
	case TTLFlexible:
		capped := items
		if len(capped) > c.cfg.FlexibleMaxItems {
			capped = capped[:c.cfg.FlexibleMaxItems]
		}
		return c.storeEntry(ctx, fp.FlexibleKey(), capped, c.cfg.FlexibleTTL)
	case TTLIndividual:
		var firstErr error
		for _, p := range items {
			if err := c.storeProduct(ctx, p); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	default:
		return fmt.Errorf("unknown ttl class %d", class)
	}
}

// WriteThrough writes items through all three tiers after an origin fetch.
// Each tier is attempted independently; failures are counted and logged but
// never returned, so a flaky store cannot fail the read that triggered the
// fetch.
func (c *Cache) WriteThrough(ctx context.Context, fp Fingerprint, items []models.Product) {
	if len(items) == 0 {
		return
	}

	for _, class := range []TTLClass{TTLExact, TTLFlexible, TTLIndividual} {
		if err := c.Put(ctx, fp, items, class); err != nil {
			metrics.CacheStoreErrors.WithLabelValues("write_through").Inc()
			logging.WithComponent("productcache").Warn().
				Err(err).
				Str("market", fp.Market).
				Msg("Cache write-through failed")
		}
	}
}

// Invalidate removes the exact-fingerprint entry.
func (c *Cache) Invalidate(ctx context.Context, fp Fingerprint) error {
	fp = fp.Normalize()
	if err := c.kv.Delete(ctx, fp.ExactKey()); err != nil {
		metrics.CacheStoreErrors.WithLabelValues("invalidate").Inc()
		return fmt.Errorf("invalidate %s: %w", fp.ExactKey(), err)
	}
	return nil
}

// GetProduct returns a single product from the individual tier, or
// store.ErrKeyNotFound when absent or expired.
func (c *Cache) GetProduct(ctx context.Context, productID string) (models.Product, error) {
	data, err := c.kv.Get(ctx, ProductKey(productID))
	if err != nil {
		if !errors.Is(err, store.ErrKeyNotFound) {
			metrics.CacheStoreErrors.WithLabelValues("get_product").Inc()
		}
		return models.Product{}, err
	}

	var p models.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return models.Product{}, fmt.Errorf("decode product %s: %w", productID, err)
	}
	return p, nil
}

// load reads and decodes an entry, returning nil on absence or any error.
func (c *Cache) load(ctx context.Context, key string) *entry {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrKeyNotFound) {
			metrics.CacheStoreErrors.WithLabelValues("get").Inc()
			logging.WithComponent("productcache").Warn().
				Err(err).
				Str("key", key).
				Msg("Cache read failed, treating as miss")
		}
		return nil
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		logging.WithComponent("productcache").Warn().
			Err(err).
			Str("key", key).
			Msg("Corrupt cache entry, treating as miss")
		return nil
	}
	return &e
}

func (c *Cache) storeEntry(ctx context.Context, key string, items []models.Product, ttl time.Duration) error {
	data, err := json.Marshal(entry{Items: items, StoredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.kv.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("store cache entry %s: %w", key, err)
	}
	return nil
}

func (c *Cache) storeProduct(ctx context.Context, p models.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode product %s: %w", p.ID, err)
	}
	if err := c.kv.Set(ctx, ProductKey(p.ID), data, c.cfg.IndividualTTL); err != nil {
		return fmt.Errorf("store product %s: %w", p.ID, err)
	}
	return nil
}

func cloneItems(items []models.Product) []models.Product {
	out := make([]models.Product, len(items))
	for i, p := range items {
		out[i] = p.Clone()
	}
	return out
}
