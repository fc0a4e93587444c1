// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"dagger/renjumap/internal/dagger"
	"fmt"
	"path"
)

type Renjumap struct{}

// Runs the unit tests
func (r *Renjumap) Test(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["build", "*.xlsx"]
	src *dagger.Directory,
) (string, error) {
	return r.BuildCliBase(ctx, src, "test").
		WithExec([]string{"go", "test", "-count=1", "./..."}).
		Stdout(ctx)
}

// Geocodes a player workbook inside the CLI container and returns the
// enriched copy. Passing a previous output as input only retries the rows
// that have no coordinates yet.
func (r *Renjumap) Geocode(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["build", "*.xlsx"]
	src *dagger.Directory,
	players *dagger.File,
	// Geocoding provider: nominatim or google
	// +optional
	// +default="nominatim"
	provider string,
	// Google Maps API key, required when provider is google
	// +optional
	apiKey *dagger.Secret,
) (*dagger.File, error) {
	name, err := players.Name(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading input name: %w", err)
	}

	input := path.Join("/data", name)
	output := path.Join("/data", "players_with_coordinates.xlsx")

	ctr := r.BuildCli(ctx, src, "development").
		WithFile(input, players, dagger.ContainerWithFileOpts{Owner: distrolessUser}).
		WithEnvVariable("GEOCODER_PROVIDER", provider)

	if apiKey != nil {
		ctr = ctr.WithSecretVariable("GOOGLE_MAPS_API_KEY", apiKey)
	}

	ctr = ctr.WithExec([]string{"/app/renju", "geocode", input, output})

	if _, err := ctr.Sync(ctx); err != nil {
		return nil, fmt.Errorf("geocoding %s: %w", name, err)
	}

	return ctr.File(output), nil
}
