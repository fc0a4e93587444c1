// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/renjurating/renjumap/config"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDefaultOutput(t *testing.T) {
	assert.Equal(t, "players_with_coordinates.xlsx", defaultOutput("players.xlsx"))
	assert.Equal(t, filepath.Join("data", "2024_with_coordinates.xlsx"), defaultOutput(filepath.Join("data", "2024.xlsx")))
	assert.Equal(t, "players_with_coordinates.xlsx", defaultOutput("players"))
}

func TestGeocoderOptions_Apply(t *testing.T) {
	var o geocoderOptions

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.register(flags)
	require.NoError(t, flags.Parse([]string{"--delay", "250ms", "--dedupe"}))

	gc := config.GeocoderConfig{Provider: "google", Delay: time.Second, Timeout: 3 * time.Second}
	o.apply(flags, &gc)

	assert.Equal(t, "google", gc.Provider, "unset flags keep the environment value")
	assert.Equal(t, 250*time.Millisecond, gc.Delay)
	assert.Equal(t, 3*time.Second, gc.Timeout)
	assert.True(t, o.dedupe)
}

func TestGeocoderOptions_ZeroDelayIsRejected(t *testing.T) {
	cfg, err := config.LoadFrom(context.Background(), envconfig.MapLookuper(nil))
	require.NoError(t, err)

	var o geocoderOptions

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.register(flags)
	require.NoError(t, flags.Parse([]string{"--delay", "0"}))

	o.apply(flags, &cfg.Geocoder)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Geocoder.Delay must be > 0")
}

func TestGeocodeCommand(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "renjumap/"))

		switch r.URL.Query().Get("q") {
		case "Tokyo, Japan":
			_, _ = w.Write([]byte(`[{"lat":"35.6768601","lon":"139.7638947","display_name":"Tokyo"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	t.Setenv("NOMINATIM_URL", srv.URL)
	t.Setenv("GEOCODER_DELAY", "1ms")
	t.Setenv("GEOCODER_PROVIDER", "nominatim")

	dir := t.TempDir()
	input := filepath.Join(dir, "players.xlsx")

	f := excelize.NewFile()
	for i, row := range [][]any{
		{"Rank", "Name", "Country", "City", "Rating"},
		{1, "Ana", "Japan", "Tokyo", 2450},
		{2, "Bo", "Japan", "Tokyo", 2400},
		{3, "Cy", "Atlantis", "Nowhereland", 2100},
	} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(input))
	require.NoError(t, f.Close())

	rootCmd.SetArgs([]string{"geocode", "--dedupe", input})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	assert.Equal(t, int32(2), calls.Load(), "the second Tokyo is served from the memo")

	out, err := excelize.OpenFile(filepath.Join(dir, "players_with_coordinates.xlsx"))
	require.NoError(t, err)
	defer out.Close()

	rows, err := out.GetRows("Sheet1", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"Rank", "Name", "Country", "City", "Rating", "latitude", "longitude"}, rows[0])
	assert.Equal(t, "35.6768601", rows[1][5])
	assert.Equal(t, "139.7638947", rows[2][6])
	for _, i := range []int{5, 6} {
		if i < len(rows[3]) {
			assert.Empty(t, rows[3][i], "no match leaves both cells empty")
		}
	}
}
