// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocoding resolves free-text place descriptions to coordinates
// through public geocoding services.
package geocoding

import (
	"context"
	"fmt"
	"net/http"
)

// Provider names accepted by New.
const (
	ProviderNominatim  = "nominatim"
	ProviderGoogleMaps = "google"
)

// Result is the best match a provider returned for a query.
type Result struct {
	Latitude    float64
	Longitude   float64
	Provider    string
	DisplayName string

	// Cached is set when the answer came from an in-process memo instead of
	// the network.
	Cached bool
}

// Geocoder resolves a free-text query to its best match. A query with no
// match fails with a GeocodingError of type ErrorTypeNotFound.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*Result, error)
}

// Query builds the free-text lookup for a city within a country.
func Query(city, country string) string {
	return fmt.Sprintf("%s, %s", city, country)
}

// Options selects and configures a provider.
type Options struct {
	Provider string
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// New returns the geocoder for options.Provider.
func New(options Options) (Geocoder, error) {
	client := options.Client
	if client == nil {
		client = http.DefaultClient
	}

	switch options.Provider {
	case "", ProviderNominatim:
		return NewNominatimGeocoder(client, options.Endpoint), nil
	case ProviderGoogleMaps:
		if options.APIKey == "" {
			return nil, fmt.Errorf("provider %q requires an API key", ProviderGoogleMaps)
		}

		return NewGoogleMapsGeocoder(client, options.Endpoint, options.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown geocoding provider %q", options.Provider)
	}
}
