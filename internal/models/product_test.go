// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package models

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestProductClone(t *testing.T) {
	t.Parallel()

	orig := Product{
		ID:       "sku-1",
		Title:    "Trail Runner",
		Price:    89.90,
		Currency: "USD",
		Category: "shoes",
		Raw:      json.RawMessage(`{"id":"sku-1"}`),
	}

	clone := orig.Clone()

	if clone.ID != orig.ID || clone.Title != orig.Title {
		t.Error("clone should copy scalar fields")
	}

	// Mutating the clone's raw payload must not touch the original.
	clone.Raw[2] = 'x'
	if string(orig.Raw) != `{"id":"sku-1"}` {
		t.Errorf("original raw payload mutated: %s", orig.Raw)
	}
}

func TestProductCloneNilRaw(t *testing.T) {
	t.Parallel()

	clone := Product{ID: "sku-2"}.Clone()
	if clone.Raw != nil {
		t.Error("expected nil raw payload to stay nil")
	}
}

func TestProductIDs(t *testing.T) {
	t.Parallel()

	products := []Product{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	ids := ProductIDs(products)

	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("unexpected ids: %v", ids)
	}

	if got := ProductIDs(nil); len(got) != 0 {
		t.Errorf("expected empty ids for nil input, got %v", got)
	}
}
