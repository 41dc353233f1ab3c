// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

// Package main is the entry point for the Shopgraph server.
//
// Shopgraph serves conversational product recommendations for e-commerce
// storefronts. Each request resolves a conversation session, classifies the
// query's intent through the external bridge service (with a circuit
// breaker and local fallback), pulls candidates through the tiered product
// cache, filters out products already shown in the session, ranks by a
// blend of lexical similarity and catalog popularity, and adapts prices
// for the caller's market.
//
// Initialization order:
//
//  1. Configuration: layered defaults, config.yaml, environment (Koanf v2)
//  2. Logging: zerolog, level and format from configuration
//  3. Store: shared BadgerDB instance for cache and session state
//  4. Clients: origin catalog client, intent bridge with circuit breaker
//  5. Core: product cache, session manager, recommendation coordinator
//  6. Supervision: suture tree running the HTTP server and store GC loop
//
// The server shuts down gracefully on SIGINT and SIGTERM: the supervisor
// tree drains the HTTP server, then the store is closed.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/tomtom215/shopgraph/internal/api"
	"github.com/tomtom215/shopgraph/internal/bridge"
	"github.com/tomtom215/shopgraph/internal/catalog"
	"github.com/tomtom215/shopgraph/internal/config"
	"github.com/tomtom215/shopgraph/internal/logging"
	"github.com/tomtom215/shopgraph/internal/productcache"
	"github.com/tomtom215/shopgraph/internal/recommender"
	"github.com/tomtom215/shopgraph/internal/session"
	"github.com/tomtom215/shopgraph/internal/store"
	"github.com/tomtom215/shopgraph/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet; the default logger has to do.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("store_path", cfg.Store.Path).
		Str("bridge_url", cfg.Bridge.URL).
		Str("catalog_url", cfg.Catalog.URL).
		Msg("Starting Shopgraph")

	kv, err := store.Shared(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	origin := catalog.NewClient(cfg.Catalog)
	if err := origin.Ping(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Catalog unreachable at startup (will retry per request)")
	}

	bridgeClient := bridge.NewClient(cfg.Bridge)
	adapter := catalog.NewStaticAdapter()
	cache := productcache.New(kv, origin, cfg.Cache)
	sessions := session.NewManager(kv, cfg.Session)
	coordinator := recommender.New(sessions, cache, bridgeClient, origin, adapter, cfg.Recommend)

	handler := api.NewHandler(coordinator, sessions, cache, bridgeClient)
	router := api.NewRouter(cfg.Server, handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout

	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
	tree.AddDataService(supervisor.NewStoreGCService(kv, cfg.Store.GCInterval))
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Supervisor tree starting")

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Fatal().Err(err).Msg("Supervisor tree failed")
	}

	logging.Info().Msg("Shutdown complete")
}
