// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package enrich adds coordinates to player records by geocoding their
// city and country.
package enrich

import (
	"context"
	"fmt"
	"os"

	"github.com/renjurating/renjumap/geocoding"
	"github.com/renjurating/renjumap/players"
	"github.com/renjurating/renjumap/spatial"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// Options configures a Pipeline.
type Options struct {
	// Force re-resolves records that already carry coordinates
	Force bool

	// Progress draws a progress bar on stderr instead of logging each record
	Progress bool
}

// Metrics counts what happened to each record during a run.
type Metrics struct {
	Total    int
	Skipped  int // already had coordinates
	Resolved int
	Missed   int // the service had no match
	Failed   int // the lookup itself failed
	Cached   int // resolved without a network call

	// Breakdown of Failed.
	Throttled int // rate limited or out of quota
	TimedOut  int

	Moved int // forced lookups that landed far from the previous pair
}

// MovedThreshold is the distance, in meters, past which a forced lookup is
// reported as having moved the player.
const MovedThreshold = 10_000

// Pipeline resolves records one at a time, in order. Pacing between lookups
// is the geocoder's business; see geocoding.RateLimitedGeocoder.
type Pipeline struct {
	geocoder geocoding.Geocoder
	options  Options
	Metrics  Metrics
}

// New creates a pipeline around geocoder.
func New(geocoder geocoding.Geocoder, options Options) *Pipeline {
	return &Pipeline{
		geocoder: geocoder,
		options:  options,
	}
}

// geocode shields the run from a misbehaving geocoder: a panic becomes an
// ordinary lookup failure.
func (p *Pipeline) geocode(ctx context.Context, query string) (res *geocoding.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &geocoding.GeocodingError{
				Type:    geocoding.ErrorTypeUnknown,
				Message: fmt.Sprintf("geocoder panic: %v", r),
			}
		}
	}()

	return p.geocoder.Geocode(ctx, query)
}

// Resolve returns the coordinates of "{city}, {country}", or nil when the
// service has no match or the lookup fails for any reason. The error is only
// set when ctx is done, which aborts the run.
func (p *Pipeline) Resolve(ctx context.Context, city, country string) (*spatial.Point, error) {
	query := geocoding.Query(city, country)

	res, err := p.geocode(ctx, query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if geocoding.IsNotFoundError(err) {
			p.Metrics.Missed++

			log.Debug().Str("query", query).Msg("no match")
		} else {
			p.Metrics.Failed++

			switch {
			case geocoding.IsRateLimitError(err), geocoding.IsQuotaExceededError(err):
				p.Metrics.Throttled++
			case geocoding.IsTimeoutError(err):
				p.Metrics.TimedOut++
			}

			log.Warn().
				Str("query", query).
				Stringer("cause", geocoding.TypeOf(err)).
				Err(err).
				Msg("lookup failed")
		}

		return nil, nil
	}

	point, err := spatial.NewPoint(res.Latitude, res.Longitude)
	if err != nil {
		p.Metrics.Failed++

		log.Warn().Str("query", query).Err(err).Msg("discarding invalid coordinates")

		return nil, nil
	}

	p.Metrics.Resolved++
	if res.Cached {
		p.Metrics.Cached++
	}

	return point, nil
}

// Run fills in the coordinates of every record lacking them. Records that
// already have a pair are left untouched unless Options.Force is set. The
// records keep their order; only Point changes.
func (p *Pipeline) Run(ctx context.Context, records []*players.EnrichedRecord) error {
	n := len(records)
	p.Metrics.Total += n

	var bar *progressbar.ProgressBar
	if p.options.Progress {
		bar = progressbar.NewOptions(n,
			progressbar.OptionSetDescription("Geocoding"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		if r.HasCoordinates() && !p.options.Force {
			p.Metrics.Skipped++
		} else {
			point, err := p.Resolve(ctx, r.City, r.Country)
			if err != nil {
				return fmt.Errorf("row %d: %w", r.Row, err)
			}

			if r.Point != nil && point != nil {
				if d := r.Point.HaversineDistance(point); d > MovedThreshold {
					p.Metrics.Moved++

					log.Info().Msgf("row %d: %s, %s moved %.1f km", r.Row, r.City, r.Country, d/1000)
				}
			}

			r.Point = point
			r.Updated = true

			if bar == nil {
				if point == nil {
					log.Info().Msgf("[%d/%d] %s, %s → no coordinates", i+1, n, r.City, r.Country)
				} else {
					log.Info().Msgf("[%d/%d] %s, %s → (%f, %f)", i+1, n, r.City, r.Country, point.Lat, point.Lng)
				}
			}
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}

	return nil
}

// EnrichFile runs the pipeline over a workbook and saves the result to
// output. Nothing is written when reading, resolving or saving fails.
func (p *Pipeline) EnrichFile(ctx context.Context, input, output, sheet string) error {
	s, err := players.Open(input, sheet)
	if err != nil {
		return fmt.Errorf("reading %s: %w", input, err)
	}
	defer s.Close()

	records := s.Records()

	log.Info().Msgf("Read %d records from sheet %q of %s", len(records), s.Name(), input)

	if err := p.Run(ctx, records); err != nil {
		return fmt.Errorf("geocoding %s: %w", input, err)
	}

	if err := s.SetCoordinates(records); err != nil {
		return fmt.Errorf("updating coordinates: %w", err)
	}

	if err := s.Save(output); err != nil {
		return fmt.Errorf("saving %s: %w", output, err)
	}

	return nil
}
