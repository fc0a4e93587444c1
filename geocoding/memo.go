// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"sync"
)

// MemoGeocoder remembers successful answers for the lifetime of a run, so a
// city shared by many players is looked up once. Misses and failures are not
// remembered; a later record with the same query tries again. Queries are
// matched exactly: "São Tomé" and "Sao Tome" may be different places to the
// service, so each gets its own lookup.
type MemoGeocoder struct {
	next Geocoder

	mu      sync.Mutex
	answers map[string]Result
	hits    int
}

// NewMemoGeocoder wraps next.
func NewMemoGeocoder(next Geocoder) *MemoGeocoder {
	return &MemoGeocoder{
		next:    next,
		answers: make(map[string]Result),
	}
}

func (g *MemoGeocoder) Geocode(ctx context.Context, query string) (*Result, error) {
	g.mu.Lock()
	if answer, ok := g.answers[query]; ok {
		g.hits++
		g.mu.Unlock()

		answer.Cached = true

		return &answer, nil
	}
	g.mu.Unlock()

	result, err := g.next.Geocode(ctx, query)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.answers[query] = *result
	g.mu.Unlock()

	return result, nil
}

// Hits returns how many lookups were answered from memory.
func (g *MemoGeocoder) Hits() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.hits
}
