// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/shopgraph/internal/config"
	"github.com/tomtom215/shopgraph/internal/logging"
	"github.com/tomtom215/shopgraph/internal/metrics"
)

// NewRouter builds the HTTP routing tree.
func NewRouter(cfg config.ServerConfig, handler *Handler) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health endpoints get a permissive limit so monitoring can poll.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		}
		r.Use(recordMetrics)

		r.Post("/recommendations", handler.Recommend)
		r.Get("/sessions/{sessionID}", handler.Session)
		r.Get("/products/{productID}", handler.Product)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestID assigns each request an id, propagated via context for log
// correlation and echoed in the X-Request-ID response header. An id
// supplied by the client is kept.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = logging.GenerateRequestID()
		}

		ctx := logging.ContextWithRequestID(r.Context(), id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recordMetrics counts requests by method, route pattern, and status.
func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
	})
}
