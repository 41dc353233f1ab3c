// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

// Package recommender coordinates one recommendation request end to end:
// session lookup, intent extraction, tiered cache lookup, diversity
// filtering against already-shown products, origin backfill, weighted
// ranking, market adaptation, and the session turn write.
//
// The no-repeat guarantee outranks completeness: once a product has been
// shown in a session it is never recommended again, even when that means
// returning fewer items than requested.
package recommender

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/shopgraph/internal/catalog"
	"github.com/tomtom215/shopgraph/internal/config"
	"github.com/tomtom215/shopgraph/internal/logging"
	"github.com/tomtom215/shopgraph/internal/metrics"
	"github.com/tomtom215/shopgraph/internal/models"
	"github.com/tomtom215/shopgraph/internal/productcache"
	"github.com/tomtom215/shopgraph/internal/session"
)

// ErrUnavailable indicates the origin failed and the cache had nothing
// usable, so no recommendations can be produced at all.
var ErrUnavailable = errors.New("recommendations unavailable")

// Result qualities.
const (
	QualityFull    = "full"
	QualityReduced = "reduced"
)

// backfillPages bounds how many extra origin pages the diversity backfill
// reads before accepting a short result.
const backfillPages = 3

// Request is one recommendation request.
type Request struct {
	SessionID string
	UserID    string
	MarketID  string
	Query     string
	Category  string
	Limit     int
}

// Result is the response for one request. TurnNumber is only set once the
// corresponding session write has been persisted.
type Result struct {
	SessionID  string              `json:"session_id"`
	TurnNumber int                 `json:"turn_number"`
	Intent     models.IntentRecord `json:"intent"`
	Products   []models.Product    `json:"products"`
	CacheHit   string              `json:"cache_hit"`
	// Quality is "reduced" when an origin failure forced a best-effort
	// answer from whatever candidates were already at hand.
	Quality string `json:"quality"`
}

// sessionStore is the slice of session.Manager the coordinator uses.
type sessionStore interface {
	GetOrCreate(ctx context.Context, sessionID, userID, marketID string) (*session.Session, error)
	AddTurn(ctx context.Context, sessionID, query string, intent models.IntentRecord, recommendedIDs []string) (*session.Turn, error)
}

// productCache is the slice of productcache.Cache the coordinator uses.
type productCache interface {
	Get(ctx context.Context, fp productcache.Fingerprint, limit int) ([]models.Product, productcache.HitKind)
	WriteThrough(ctx context.Context, fp productcache.Fingerprint, items []models.Product)
}

// intentExtractor is the slice of the bridge client the coordinator uses.
type intentExtractor interface {
	ExtractIntent(ctx context.Context, query, marketID string) models.IntentRecord
}

// Coordinator wires the collaborators for the recommendation flow. All
// dependencies are injected; the coordinator holds no mutable state of
// its own.
type Coordinator struct {
	sessions sessionStore
	cache    productCache
	bridge   intentExtractor
	origin   catalog.Origin
	adapter  catalog.MarketAdapter
	cfg      config.RecommendConfig
}

// New creates a Coordinator.
func New(sessions sessionStore, cache productCache, bridge intentExtractor, origin catalog.Origin, adapter catalog.MarketAdapter, cfg config.RecommendConfig) *Coordinator {
	return &Coordinator{
		sessions: sessions,
		cache:    cache,
		bridge:   bridge,
		origin:   origin,
		adapter:  adapter,
		cfg:      cfg,
	}
}

// Recommend runs the full flow for one request.
//
// Failure policy: cache and intent failures degrade silently, an origin
// failure degrades to reduced quality when any candidates exist and to
// ErrUnavailable when none do, and a session persist failure is the one
// error always surfaced, because the response must not claim a turn
// number that was not durably stored.
func (c *Coordinator) Recommend(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecommendDuration.Observe(time.Since(start).Seconds())
	}()

	limit := req.Limit
	if limit <= 0 {
		limit = c.cfg.DefaultLimit
	}
	if limit > c.cfg.MaxLimit {
		limit = c.cfg.MaxLimit
	}

	sess, err := c.sessions.GetOrCreate(ctx, req.SessionID, req.UserID, req.MarketID)
	if err != nil {
		return nil, err
	}

	intent := c.bridge.ExtractIntent(ctx, req.Query, req.MarketID)

	fp := productcache.Fingerprint{
		Market:   req.MarketID,
		Limit:    limit,
		Offset:   0,
		Category: req.Category,
	}

	candidates, hitKind := c.cache.Get(ctx, fp, limit)

	originHealthy := true
	if hitKind == productcache.HitMiss {
		fetched, fetchErr := c.origin.FetchProducts(ctx, req.MarketID, req.Category, 0, limit)
		if fetchErr != nil {
			originHealthy = false
			logging.WithComponent("recommender").Warn().
				Err(fetchErr).
				Str("market_id", req.MarketID).
				Msg("Origin fetch failed on cache miss")
		} else {
			candidates = fetched
			c.cache.WriteThrough(ctx, fp, fetched)
		}
	}

	shown := sess.ShownSet()
	unseen := excludeShown(candidates, shown)

	if len(unseen) < limit && originHealthy {
		var backfillErr error
		unseen, backfillErr = c.backfill(ctx, req, unseen, shown, limit, len(candidates))
		if backfillErr != nil {
			originHealthy = false
		}
	}

	// Unavailable only when the cache had nothing at all and the origin
	// failed. Cached candidates that exclusion filtered out still count
	// as "the system had data": the answer degrades instead of erroring.
	if len(candidates) == 0 && !originHealthy {
		metrics.RecommendResults.WithLabelValues("unavailable").Inc()
		return nil, ErrUnavailable
	}

	ranked := rank(unseen, req.Query, c.cfg.SimilarityWeight, c.cfg.PopularityWeight)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	adapted := make([]models.Product, len(ranked))
	for i, p := range ranked {
		adapted[i] = c.adapter.AdaptForMarket(p, req.MarketID)
	}

	turn, err := c.sessions.AddTurn(ctx, sess.SessionID, req.Query, intent, models.ProductIDs(adapted))
	if err != nil {
		return nil, err
	}

	quality := QualityFull
	if !originHealthy {
		quality = QualityReduced
	}
	metrics.RecommendResults.WithLabelValues(quality).Inc()

	return &Result{
		SessionID:  sess.SessionID,
		TurnNumber: turn.TurnNumber,
		Intent:     intent,
		Products:   adapted,
		CacheHit:   hitKind.String(),
		Quality:    quality,
	}, nil
}

// backfill pages through the origin, bypassing the cache, until limit
// unseen products are collected, the catalog is exhausted, or the page
// budget runs out. A short result is acceptable; an origin error is
// reported so the caller can mark the response reduced.
func (c *Coordinator) backfill(ctx context.Context, req Request, unseen []models.Product, shown map[string]struct{}, limit, offset int) ([]models.Product, error) {
	have := make(map[string]struct{}, len(unseen))
	for _, p := range unseen {
		have[p.ID] = struct{}{}
	}

	for page := 0; page < backfillPages && len(unseen) < limit; page++ {
		deficit := limit - len(unseen)
		fetched, err := c.origin.FetchProducts(ctx, req.MarketID, req.Category, offset, deficit*2)
		if err != nil {
			logging.WithComponent("recommender").Warn().
				Err(err).
				Str("market_id", req.MarketID).
				Int("offset", offset).
				Msg("Origin backfill failed")
			return unseen, err
		}
		if len(fetched) == 0 {
			break // catalog exhausted
		}
		offset += len(fetched)

		for _, p := range fetched {
			if len(unseen) >= limit {
				break
			}
			if _, seen := shown[p.ID]; seen {
				continue
			}
			if _, dup := have[p.ID]; dup {
				continue
			}
			have[p.ID] = struct{}{}
			unseen = append(unseen, p)
			metrics.CacheBackfillItems.Inc()
		}
	}

	return unseen, nil
}

// excludeShown drops candidates already recommended in the session.
func excludeShown(candidates []models.Product, shown map[string]struct{}) []models.Product {
	out := make([]models.Product, 0, len(candidates))
	for _, p := range candidates {
		if _, seen := shown[p.ID]; seen {
			continue
		}
		out = append(out, p)
	}
	return out
}
