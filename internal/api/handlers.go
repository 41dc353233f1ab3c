// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/shopgraph/internal/bridge"
	"github.com/tomtom215/shopgraph/internal/logging"
	"github.com/tomtom215/shopgraph/internal/models"
	"github.com/tomtom215/shopgraph/internal/recommender"
	"github.com/tomtom215/shopgraph/internal/session"
	"github.com/tomtom215/shopgraph/internal/store"
	"github.com/tomtom215/shopgraph/internal/validation"
)

// recommendService is the coordinator surface the handlers call.
type recommendService interface {
	Recommend(ctx context.Context, req recommender.Request) (*recommender.Result, error)
}

// sessionReader loads sessions for the read-only session endpoint.
type sessionReader interface {
	Load(ctx context.Context, sessionID string) (*session.Session, error)
}

// productReader serves single products from the individual cache tier.
type productReader interface {
	GetProduct(ctx context.Context, productID string) (models.Product, error)
}

// bridgeHealth reports the intent bridge status for readiness checks.
type bridgeHealth interface {
	HealthCheck(ctx context.Context) bridge.Status
}

// Handler holds the handler dependencies.
type Handler struct {
	recommender recommendService
	sessions    sessionReader
	products    productReader
	bridge      bridgeHealth
}

// NewHandler creates the API handler set.
func NewHandler(rec recommendService, sessions sessionReader, products productReader, br bridgeHealth) *Handler {
	return &Handler{
		recommender: rec,
		sessions:    sessions,
		products:    products,
		bridge:      br,
	}
}

// recommendRequest is the POST /api/v1/recommendations payload.
type recommendRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
	UserID    string `json:"user_id" validate:"required,max=128"`
	MarketID  string `json:"market_id" validate:"required,market"`
	Query     string `json:"query" validate:"required,max=500"`
	Category  string `json:"category" validate:"omitempty,max=100"`
	Limit     int    `json:"limit" validate:"min=0,max=50"`
}

// Recommend handles POST /api/v1/recommendations.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, "request validation failed", verrs)
			return
		}
		rw.BadRequest(err.Error())
		return
	}

	result, err := h.recommender.Recommend(r.Context(), recommender.Request{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		MarketID:  req.MarketID,
		Query:     req.Query,
		Category:  req.Category,
		Limit:     req.Limit,
	})
	if err != nil {
		if errors.Is(err, recommender.ErrUnavailable) {
			rw.ServiceUnavailable("recommendations unavailable")
			return
		}
		logging.Ctx(r.Context()).Error().
			Err(err).
			Str("session_id", req.SessionID).
			Msg("Recommendation request failed")
		rw.InternalError("failed to process recommendation")
		return
	}

	rw.Success(result)
}

// Session handles GET /api/v1/sessions/{sessionID}.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		rw.BadRequest("session id is required")
		return
	}

	sess, err := h.sessions.Load(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			rw.NotFound("session not found")
			return
		}
		logging.Ctx(r.Context()).Error().
			Err(err).
			Str("session_id", sessionID).
			Msg("Session load failed")
		rw.InternalError("failed to load session")
		return
	}

	rw.Success(sess)
}

// Product handles GET /api/v1/products/{productID}. It serves only the
// individual cache tier; a miss is a 404, not an origin round-trip.
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	productID := chi.URLParam(r, "productID")
	if productID == "" {
		rw.BadRequest("product id is required")
		return
	}

	product, err := h.products.GetProduct(r.Context(), productID)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			rw.NotFound("product not cached")
			return
		}
		rw.InternalError("failed to load product")
		return
	}

	rw.Success(product)
}

// HealthLive handles GET /api/v1/health/live. Process-up only.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// healthStatus is the readiness payload.
type healthStatus struct {
	Status string        `json:"status"`
	Bridge bridge.Status `json:"bridge"`
}

// HealthReady handles GET /api/v1/health/ready. The bridge being down does
// not fail readiness: the local fallback keeps recommendations flowing, so
// its state is reported rather than gating.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	status := healthStatus{
		Status: "ready",
		Bridge: h.bridge.HealthCheck(r.Context()),
	}
	rw.Success(status)
}
