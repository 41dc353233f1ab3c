// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/shopgraph/internal/config"
	"github.com/tomtom215/shopgraph/internal/models"
)

func testProduct(id, title string, price float64) models.Product {
	return models.Product{
		ID:       id,
		Title:    title,
		Price:    price,
		Currency: "USD",
		Category: "shoes",
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.CatalogConfig{
		URL:     srv.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	})
}

func TestFetchProducts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/products" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "test-key" {
			t.Errorf("expected api key header, got %q", got)
		}
		q := r.URL.Query()
		if q.Get("market") != "us" {
			t.Errorf("expected market=us, got %q", q.Get("market"))
		}
		if q.Get("category") != "shoes" {
			t.Errorf("expected category=shoes, got %q", q.Get("category"))
		}
		if q.Get("offset") != "5" || q.Get("count") != "2" {
			t.Errorf("unexpected paging: offset=%q count=%q", q.Get("offset"), q.Get("count"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"products": [
				{"id": "p1", "title": "Runner", "price": 49.99, "currency": "USD", "category": "shoes", "popularity": 0.8},
				{"id": "p2", "title": "Trail", "price": 89.99, "currency": "USD", "category": "shoes", "popularity": 0.6}
			],
			"total": 120
		}`))
	})

	products, err := client.FetchProducts(context.Background(), "us", "shoes", 5, 2)
	if err != nil {
		t.Fatalf("FetchProducts failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	if products[0].ID != "p1" || products[0].Title != "Runner" {
		t.Errorf("unexpected first product: %+v", products[0])
	}
	if products[1].PopularityScore != 0.6 {
		t.Errorf("expected popularity 0.6, got %v", products[1].PopularityScore)
	}
	if len(products[0].Raw) == 0 {
		t.Error("expected raw payload to be preserved")
	}
}

func TestFetchProductsOmitsEmptyCategory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("category") {
			t.Error("expected no category parameter")
		}
		_, _ = w.Write([]byte(`{"products": [], "total": 0}`))
	})

	products, err := client.FetchProducts(context.Background(), "gb", "", 0, 10)
	if err != nil {
		t.Fatalf("FetchProducts failed: %v", err)
	}
	if len(products) != 0 {
		t.Errorf("expected no products, got %d", len(products))
	}
}

func TestFetchProductsServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "catalog down", http.StatusInternalServerError)
	})

	_, err := client.FetchProducts(context.Background(), "us", "", 0, 10)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestFetchProductsConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(config.CatalogConfig{
		URL:     srv.URL,
		Timeout: time.Second,
	})

	_, err := client.FetchProducts(context.Background(), "us", "", 0, 10)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestPing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestPingUnhealthy(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if err := client.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestMarketFor(t *testing.T) {
	tests := []struct {
		id       string
		currency string
		locale   string
	}{
		{"us", "USD", "en-US"},
		{"GB", "GBP", "en-GB"},
		{"de", "EUR", "de-DE"},
		{"jp", "JPY", "ja-JP"},
		{"zz", "USD", "en-US"}, // unknown falls back
		{"", "USD", "en-US"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			info := MarketFor(tt.id)
			if info.Currency != tt.currency {
				t.Errorf("MarketFor(%q).Currency = %q, want %q", tt.id, info.Currency, tt.currency)
			}
			if info.Locale != tt.locale {
				t.Errorf("MarketFor(%q).Locale = %q, want %q", tt.id, info.Locale, tt.locale)
			}
		})
	}
}

func TestAdaptForMarket(t *testing.T) {
	adapter := NewStaticAdapter()

	base := testProduct("p1", "Runner", 100.0)

	gb := adapter.AdaptForMarket(base, "gb")
	if gb.Currency != "GBP" {
		t.Errorf("expected GBP, got %q", gb.Currency)
	}
	if gb.Price != 79.0 {
		t.Errorf("expected 79.0, got %v", gb.Price)
	}

	jp := adapter.AdaptForMarket(base, "jp")
	if jp.Currency != "JPY" {
		t.Errorf("expected JPY, got %q", jp.Currency)
	}
	if jp.Price != 14900.0 {
		t.Errorf("expected whole-yen rounding, got %v", jp.Price)
	}

	// Source product must not be mutated.
	if base.Currency != "USD" || base.Price != 100.0 {
		t.Errorf("source product mutated: %+v", base)
	}
}

func TestAdaptForMarketSameCurrency(t *testing.T) {
	adapter := NewStaticAdapter()
	base := testProduct("p1", "Runner", 49.99)

	us := adapter.AdaptForMarket(base, "us")
	if us.Price != 49.99 || us.Currency != "USD" {
		t.Errorf("same-currency adaptation changed product: %+v", us)
	}
}
