// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

// Builds, checks and packages the renju CLI
package main

import (
	"context"
	"dagger/renjumap/internal/dagger"
	"fmt"
	"strings"
)

const (
	builderUser    = "builder" // owns the module and build caches
	distrolessUser = "65532"   // nonroot user in distroless images

	dashboardPort = 8080
)

// excluded from every source upload: build output and player workbooks
var srcIgnore = []string{"build", "*.xlsx"}

// Compiles the CLI into /src/build/renju. duckdb needs cgo, so the builder is
// glibc based and CGO_ENABLED is set explicitly.
func (r *Renjumap) BuildCliBase(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["build", "*.xlsx"]
	src *dagger.Directory,
	// Version stamped into main.Version and the geocoder User-Agent
	// +optional
	// +default="development"
	version string,
) *dagger.Container {
	home := "/home/" + builderUser
	owned := dagger.ContainerWithMountedCacheOpts{Owner: builderUser}

	return dag.Container().
		From("golang:1.25.5-bookworm").
		WithExec([]string{"useradd", "-m", "-u", "1000", builderUser}).
		WithMountedCache("/go/pkg", dag.CacheVolume("renju-go-mod"), owned).
		WithMountedCache(home+"/.cache", dag.CacheVolume("renju-go-build"), owned).
		WithEnvVariable("GOCACHE", home+"/.cache/go-build").
		WithEnvVariable("CGO_ENABLED", "1").
		WithWorkdir("/src").
		// modules are downloaded before the sources land, so edits keep the cache
		WithDirectory("/src", src.Filter(dagger.DirectoryFilterOpts{
			Include: []string{"go.mod", "go.sum"},
		}), dagger.ContainerWithDirectoryOpts{Owner: builderUser}).
		WithUser(builderUser).
		WithExec([]string{"go", "mod", "download"}).
		WithDirectory("/src", src, dagger.ContainerWithDirectoryOpts{
			Owner:   builderUser,
			Exclude: srcIgnore,
		}).
		WithExec([]string{
			"go", "build",
			"-trimpath",
			"-ldflags", "-s -w -X main.Version=" + version,
			"-o", "build/renju",
			".",
		})
}

// Lints, scans and checks license headers
func (r *Renjumap) BuildCliValidate(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["build", "*.xlsx"]
	src *dagger.Directory,
) *dagger.Container {
	tools := []string{
		"github.com/golangci/golangci-lint/cmd/golangci-lint@latest",
		"golang.org/x/vuln/cmd/govulncheck@latest",
		"github.com/google/addlicense@latest",
	}

	ctr := r.BuildCliBase(ctx, src, "validate")
	for _, tool := range tools {
		ctr = ctr.WithExec([]string{"go", "install", tool})
	}

	return ctr.
		WithExec([]string{"go", "vet", "./..."}).
		WithExec([]string{"golangci-lint", "run", "--timeout", "5m", "./..."}).
		WithExec([]string{"govulncheck", "./..."}).
		WithExec([]string{
			"addlicense", "-check",
			"-c", "The RenjuMap Authors",
			"-l", "apache",
			"-s=only",
			"-ignore", "build/**",
			"-ignore", ".dagger/internal/**",
			".",
		})
}

// Packages the CLI in a distroless image with an empty /data owned by the
// runtime user, where workbooks are mounted.
func (r *Renjumap) BuildCli(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["build", "*.xlsx"]
	src *dagger.Directory,
	// +optional
	// +default="development"
	version string,
) *dagger.Container {
	builder := r.BuildCliBase(ctx, src, version)

	return dag.Container().
		From("gcr.io/distroless/cc-debian12").
		WithDirectory("/data", dag.Directory(), dagger.ContainerWithDirectoryOpts{Owner: distrolessUser}).
		WithFile("/app/renju", builder.File("/src/build/renju")).
		WithWorkdir("/data").
		WithUser(distrolessUser).
		WithEnvVariable("RENJU_LISTEN", fmt.Sprintf(":%d", dashboardPort)).
		WithEntrypoint([]string{"/app/renju"}).
		WithExposedPort(dashboardPort)
}

// Checks the packaged binary starts in the runtime image and lists its
// commands. duckdb links against libstdc++, so a missing shared library shows
// up here rather than at the first serve.
func (r *Renjumap) SmokeTest(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["build", "*.xlsx"]
	src *dagger.Directory,
) (string, error) {
	out, err := r.BuildCli(ctx, src, "smoke").
		WithExec([]string{"--help"}, dagger.ContainerWithExecOpts{UseEntrypoint: true}).
		Stdout(ctx)
	if err != nil {
		return "", err
	}

	for _, command := range []string{"geocode", "serve", "debug"} {
		if !strings.Contains(out, command) {
			return out, fmt.Errorf("renju --help does not list %q", command)
		}
	}

	return out, nil
}

// Serves the dashboard API over an enriched workbook
func (r *Renjumap) Serve(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["build", "*.xlsx"]
	src *dagger.Directory,
	// Output of Geocode, or any workbook with latitude and longitude columns
	players *dagger.File,
) *dagger.Service {
	return r.BuildCli(ctx, src, "development").
		WithFile("/data/players.xlsx", players, dagger.ContainerWithFileOpts{Owner: distrolessUser}).
		AsService(dagger.ContainerAsServiceOpts{
			Args:          []string{"serve", "/data/players.xlsx"},
			UseEntrypoint: true,
		})
}
