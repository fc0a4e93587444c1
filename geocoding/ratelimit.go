// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimitedGeocoder spaces the start of consecutive lookups by at least a
// fixed delay. It doesn't retry; a throttled lookup simply fails.
type RateLimitedGeocoder struct {
	next    Geocoder
	limiter *rate.Limiter
}

// NewRateLimitedGeocoder wraps next. A zero or negative delay disables
// spacing; config rejects it, so only tests and embedders get there.
func NewRateLimitedGeocoder(next Geocoder, minDelay time.Duration) *RateLimitedGeocoder {
	limit := rate.Inf
	if minDelay > 0 {
		limit = rate.Every(minDelay)
	} else {
		log.Warn().Dur("delay", minDelay).Msg("geocoder rate limit disabled")
	}

	return &RateLimitedGeocoder{
		next:    next,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Geocode waits for its slot and delegates. It only fails on its own when ctx
// is done before the slot arrives.
func (g *RateLimitedGeocoder) Geocode(ctx context.Context, query string) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return g.next.Geocode(ctx, query)
}
