// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultNominatimEndpoint is the public OpenStreetMap instance. Its usage
// policy allows at most one request per second from an identified client.
const DefaultNominatimEndpoint = "https://nominatim.openstreetmap.org"

// NominatimGeocoder uses the OpenStreetMap Nominatim search API.
type NominatimGeocoder struct {
	endpoint   string
	httpClient *http.Client
}

// NewNominatimGeocoder creates a geocoder for the Nominatim instance at
// endpoint, or the public one when endpoint is empty.
func NewNominatimGeocoder(client *http.Client, endpoint string) *NominatimGeocoder {
	if endpoint == "" {
		endpoint = DefaultNominatimEndpoint
	}

	return &NominatimGeocoder{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: client,
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, query string) (*Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "building request", Err: err}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return nil, ClassifyHTTPError(resp.StatusCode, string(body))
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, &GeocodingError{Type: ErrorTypeInvalidResponse, Message: "decoding nominatim response", Err: err}
	}

	if len(places) == 0 {
		return nil, notFound(query)
	}

	place := places[0]

	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return nil, &GeocodingError{Type: ErrorTypeInvalidResponse, Message: fmt.Sprintf("latitude %q", place.Lat), Err: err}
	}

	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return nil, &GeocodingError{Type: ErrorTypeInvalidResponse, Message: fmt.Sprintf("longitude %q", place.Lon), Err: err}
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		Provider:    ProviderNominatim,
		DisplayName: place.DisplayName,
	}, nil
}
