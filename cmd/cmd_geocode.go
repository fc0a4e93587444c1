// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/renjurating/renjumap/config"
	"github.com/renjurating/renjumap/enrich"
	"github.com/renjurating/renjumap/geocoding"
	"github.com/renjurating/renjumap/logger"
	"github.com/renjurating/renjumap/utils/httputils"
	"github.com/renjurating/renjumap/utils/textutils"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// geocoderOptions are the flags shared by every command that talks to a
// geocoding service.
type geocoderOptions struct {
	provider      string
	delay         time.Duration
	timeout       time.Duration
	dedupe        bool
	traceHTTP     bool
	traceHTTPBody bool
}

func (o *geocoderOptions) register(flags *pflag.FlagSet) {
	flags.StringVar(&o.provider, "provider", geocoding.ProviderNominatim, "geocoding service: nominatim or google (GEOCODER_PROVIDER)")
	flags.DurationVar(&o.delay, "delay", time.Second, "minimum time between lookups, must be positive (GEOCODER_DELAY)")
	flags.DurationVar(&o.timeout, "timeout", 10*time.Second, "per lookup timeout (GEOCODER_TIMEOUT)")
	flags.BoolVar(&o.dedupe, "dedupe", false, "look up each distinct city only once per run")
	flags.BoolVar(&o.traceHTTP, "trace-http", false, "dump geocoder requests and responses to stderr")
	flags.BoolVar(&o.traceHTTPBody, "trace-http-body", false, "include bodies in the HTTP dumps")
}

// apply overrides the environment with the flags given explicitly.
func (o *geocoderOptions) apply(flags *pflag.FlagSet, gc *config.GeocoderConfig) {
	if flags.Changed("provider") {
		gc.Provider = o.provider
	}

	if flags.Changed("delay") {
		gc.Delay = o.delay
	}

	if flags.Changed("timeout") {
		gc.Timeout = o.timeout
	}
}

// newGeocoder builds the lookup chain: provider, rate limit and, when asked
// for, the in-run memo in front of it.
func (o *geocoderOptions) newGeocoder(ctx context.Context, c *config.Config) (geocoding.Geocoder, *geocoding.MemoGeocoder, error) {
	gc := c.Geocoder

	var trace io.Writer
	if o.traceHTTP || o.traceHTTPBody {
		trace = os.Stderr
	}

	client := httputils.NewClient(httputils.ClientOptions{
		UserAgent:   c.UserAgent,
		Timeout:     gc.Timeout,
		TraceWriter: trace,
		TraceBody:   o.traceHTTPBody,
	})

	options := geocoding.Options{
		Provider: gc.Provider,
		Endpoint: gc.NominatimURL,
		Client:   client,
	}

	if gc.Provider == geocoding.ProviderGoogleMaps {
		options.Endpoint = gc.GoogleMapsURL
		options.APIKey = gc.GoogleMapsAPIKey

		if options.APIKey == "" {
			log.Info().Msg("GOOGLE_MAPS_API_KEY is not set. Attempting to retrieve via ADC...")

			key, err := geocoding.LookupGoogleMapsKey(ctx, gc.GoogleCloudProject, geocoding.DefaultKeyDisplayName)
			if err != nil {
				return nil, nil, fmt.Errorf("GOOGLE_MAPS_API_KEY is not set and ADC failed: %w", err)
			}

			log.Info().Msg("Retrieved Google Maps API key via ADC")

			options.APIKey = key
		}
	}

	provider, err := geocoding.New(options)
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("provider", gc.Provider).
		Str("endpoint", options.Endpoint).
		Dur("delay", gc.Delay).
		Dur("timeout", gc.Timeout).
		Msg("Geocoding")

	var g geocoding.Geocoder = geocoding.NewRateLimitedGeocoder(provider, gc.Delay)

	if !o.dedupe {
		return g, nil, nil
	}

	memo := geocoding.NewMemoGeocoder(g)

	return memo, memo, nil
}

var (
	geocodeOpts  geocoderOptions
	geocodeSheet string
	geocodeForce bool
)

// defaultOutput derives players_with_coordinates.xlsx from players.xlsx.
func defaultOutput(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + "_with_coordinates.xlsx"
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode <input.xlsx> [output.xlsx]",
	Short: "Adds latitude and longitude to every player",
	Long: `Geocodes the "City, Country" of every row and writes a copy of the
workbook with latitude and longitude columns. Rows that already carry both
coordinates are kept as they are, so running it again over its own output
only retries the rows that failed.

Lookups are sequential and spaced by --delay, as public geocoders require.
A lookup that fails or finds nothing leaves the row without coordinates;
the output file is only written when every row has been processed.

$ renju geocode players.xlsx
$ renju geocode players_with_coordinates.xlsx players_with_coordinates.xlsx
`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]

		output := defaultOutput(input)
		if len(args) > 1 {
			output = args[1]
		}

		geocodeOpts.apply(cmd.Flags(), &cfg.Geocoder)
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx := cmd.Context()

		geocoder, _, err := geocodeOpts.newGeocoder(ctx, cfg)
		if err != nil {
			return err
		}

		pipeline := enrich.New(geocoder, enrich.Options{
			Force:    geocodeForce,
			Progress: logger.IsTerminal(os.Stderr) && !geocodeOpts.traceHTTP,
		})

		start := time.Now()
		err = pipeline.EnrichFile(ctx, input, output, geocodeSheet)
		logMetrics(&pipeline.Metrics, time.Since(start))

		if err != nil {
			return err
		}

		log.Info().Msgf("Wrote %s", output)

		return nil
	},
}

func logMetrics(m *enrich.Metrics, elapsed time.Duration) {
	f := func(n int) string { return textutils.FormatInt(int64(n)) }

	log.Info().Msgf(
		"Geocoding metrics - %s records: %s resolved (%s from memo), %s not found, %s failed "+
			"(%s throttled, %s timed out), %s kept, %s moved in %s",
		f(m.Total), f(m.Resolved), f(m.Cached), f(m.Missed), f(m.Failed),
		f(m.Throttled), f(m.TimedOut), f(m.Skipped), f(m.Moved),
		elapsed.Round(time.Second),
	)

	if m.Throttled > 0 {
		log.Warn().Msgf("%s lookups were throttled; consider a larger --delay", f(m.Throttled))
	}
}

func init() {
	rootCmd.AddCommand(geocodeCmd)

	geocodeOpts.register(geocodeCmd.Flags())
	geocodeCmd.Flags().StringVar(&geocodeSheet, "sheet", "", `worksheet to read (default "players" or the first one)`)
	geocodeCmd.Flags().BoolVar(&geocodeForce, "force", false, "geocode rows that already have coordinates")
}
