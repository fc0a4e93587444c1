// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package players reads and writes the player rating spreadsheet.
package players

import "github.com/renjurating/renjumap/spatial"

// Record is one player row. Country and City are free text and are never
// checked against a geographic registry.
type Record struct {
	Row     int    `json:"-"` // 1-based spreadsheet row
	Name    string `json:"name"`
	Country string `json:"country"`
	City    string `json:"city"`
	Rating  int    `json:"rating"`
	Rank    *int   `json:"rank,omitempty"`
}

// EnrichedRecord is a Record plus its coordinates. A nil Point means both
// latitude and longitude are absent.
type EnrichedRecord struct {
	Record

	Point *spatial.Point `json:"-"`

	// Updated marks a record looked up during the current run. Only updated
	// records get their coordinate cells written back.
	Updated bool `json:"-"`
}

// HasCoordinates reports whether the record already carries a coordinate pair.
func (r *EnrichedRecord) HasCoordinates() bool {
	return r.Point != nil
}

// Latitude returns the latitude or nil.
func (r *EnrichedRecord) Latitude() *float64 {
	if r.Point == nil {
		return nil
	}

	lat := r.Point.Lat

	return &lat
}

// Longitude returns the longitude or nil.
func (r *EnrichedRecord) Longitude() *float64 {
	if r.Point == nil {
		return nil
	}

	lng := r.Point.Lng

	return &lng
}
