// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

package players

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/renjurating/renjumap/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// writeWorkbook saves rows into sheet (created when it isn't the default
// "Sheet1") and returns the file path.
func writeWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "players.xlsx")
	require.NoError(t, f.SaveAs(path))

	return path
}

func readRows(t *testing.T, path, sheet string) [][]string {
	t.Helper()

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)

	return rows
}

var header = []any{"Rank", "Name", "Country", "City", "Rating"}

func TestOpen_Records(t *testing.T) {
	path := writeWorkbook(t, "players", [][]any{
		header,
		{1, "Ana Álvarez", "Japan", "Tokyo", 2450},
		{nil, "Bo Chen", "China", "", 2301.0},
		{3, "Cy", "Atlantis", "Nowhereland", "n/a"},
	})

	s, err := Open(path, "")
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "players", s.Name())
	assert.Equal(t, 3, s.Len())

	records := s.Records()
	require.Len(t, records, 3)

	one := 1
	assert.Equal(t, Record{Row: 2, Name: "Ana Álvarez", Country: "Japan", City: "Tokyo", Rating: 2450, Rank: &one}, records[0].Record)
	assert.Nil(t, records[0].Point)

	assert.Equal(t, 3, records[1].Row)
	assert.Nil(t, records[1].Rank)
	assert.Empty(t, records[1].City)
	assert.Equal(t, 2301, records[1].Rating)

	assert.Equal(t, 0, records[2].Rating, "unparseable rating falls back to zero")
}

func TestOpen_HeadersAreFolded(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]any{
		{" NAME ", "country", "CITY", "rating", "Latitude", "LONGITUDE"},
		{"Ana", "Japan", "Tokyo", 2450, 35.68, 139.69},
	})

	s, err := Open(path, "")
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "Sheet1", s.Name())

	records := s.Records()
	require.Len(t, records, 1)
	assert.Equal(t, &spatial.Point{Lat: 35.68, Lng: 139.69}, records[0].Point)
}

func TestOpen_MissingColumns(t *testing.T) {
	path := writeWorkbook(t, "players", [][]any{
		{"Name", "City"},
		{"Ana", "Tokyo"},
	})

	_, err := Open(path, "")
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "Country, Rating")
}

func TestOpen_EmptySheet(t *testing.T) {
	path := writeWorkbook(t, "players", nil)

	_, err := Open(path, "players")
	require.ErrorIs(t, err, ErrEmptySheet)
}

func TestOpen_UnknownSheet(t *testing.T) {
	path := writeWorkbook(t, "players", [][]any{header})

	_, err := Open(path, "ratings")
	require.Error(t, err)
}

func TestOpen_Unreadable(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.xlsx"), "")
	require.Error(t, err)
}

func TestRecords_CoordinatePairs(t *testing.T) {
	path := writeWorkbook(t, "players", [][]any{
		{"Name", "Country", "City", "Rating", "latitude", "longitude"},
		{"both", "Japan", "Tokyo", 1, 35.68, 139.69},
		{"lat only", "Japan", "Osaka", 1, 34.69, nil},
		{"lon only", "Japan", "Kyoto", 1, nil, 135.76},
		{"garbage", "Japan", "Nara", 1, "north", 135.8},
		{"out of range", "Japan", "Kobe", 1, 135.19, 34.69},
		{"none", "Japan", "Sapporo", 1},
	})

	s, err := Open(path, "")
	require.NoError(t, err)
	defer s.Close()

	records := s.Records()
	require.Len(t, records, 6)
	assert.True(t, records[0].HasCoordinates())

	for _, r := range records[1:] {
		assert.False(t, r.HasCoordinates(), r.Name)
		assert.Nil(t, r.Latitude(), r.Name)
		assert.Nil(t, r.Longitude(), r.Name)
	}
}

func TestSetCoordinates_AppendsColumnsAndPreservesCells(t *testing.T) {
	path := writeWorkbook(t, "players", [][]any{
		header,
		{1, "Ana", "Japan", "Tokyo", 2450},
		{2, "Cy", "Atlantis", "Nowhereland", 2100},
	})

	s, err := Open(path, "")
	require.NoError(t, err)
	defer s.Close()

	records := s.Records()
	records[0].Point = &spatial.Point{Lat: 35.68, Lng: 139.69}
	records[0].Updated = true
	records[1].Updated = true

	require.NoError(t, s.SetCoordinates(records))

	out := filepath.Join(t.TempDir(), "players_with_coordinates.xlsx")
	require.NoError(t, s.Save(out))

	rows := readRows(t, out, "players")
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Rank", "Name", "Country", "City", "Rating", "latitude", "longitude"}, rows[0])
	assert.Equal(t, []string{"1", "Ana", "Japan", "Tokyo", "2450", "35.68", "139.69"}, rows[1])
	assert.Equal(t, []string{"2", "Cy", "Atlantis", "Nowhereland", "2100"}, rows[2][:5])

	for _, v := range rows[2][5:] {
		assert.Empty(t, v)
	}
}

func TestSetCoordinates_ReusesColumnsAndClearsHalfPairs(t *testing.T) {
	path := writeWorkbook(t, "players", [][]any{
		{"latitude", "Name", "Country", "City", "Rating", "longitude"},
		{35.68, "Ana", "Japan", "Tokyo", 2450, 139.69},
		{34.69, "Bo", "Japan", "Osaka", 2300, nil},
	})

	s, err := Open(path, "")
	require.NoError(t, err)
	defer s.Close()

	records := s.Records()
	records[1].Updated = true
	require.NoError(t, s.SetCoordinates(records))

	out := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, s.Save(out))

	rows := readRows(t, out, "players")
	assert.Equal(t, []string{"latitude", "Name", "Country", "City", "Rating", "longitude"}, rows[0])
	assert.Equal(t, []string{"35.68", "Ana", "Japan", "Tokyo", "2450", "139.69"}, rows[1])
	assert.Empty(t, rows[2][0], "half pair must be cleared")
}

func TestSetCoordinates_KeepsCellsOfUntouchedRows(t *testing.T) {
	path := writeWorkbook(t, "players", [][]any{
		{"Name", "Country", "City", "Rating", "latitude", "longitude"},
		{"Ana", "Japan", "Tokyo", 2450, "35.680", "139.6900"},
		{"Bo", "Russia", "Moscow", 2400},
	})

	s, err := Open(path, "")
	require.NoError(t, err)
	defer s.Close()

	records := s.Records()
	require.True(t, records[0].HasCoordinates())
	records[1].Point = &spatial.Point{Lat: 55.75, Lng: 37.62}
	records[1].Updated = true

	require.NoError(t, s.SetCoordinates(records))

	out := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, s.Save(out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	for cell, want := range map[string]string{"E2": "35.680", "F2": "139.6900"} {
		raw, err := f.GetCellValue("players", cell, excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		assert.Equal(t, want, raw, cell)

		typ, err := f.GetCellType("players", cell)
		require.NoError(t, err)
		assert.Equal(t, excelize.CellTypeSharedString, typ, cell)
	}

	rows := readRows(t, out, "players")
	assert.Equal(t, []string{"Bo", "Russia", "Moscow", "2400", "55.75", "37.62"}, rows[2])
}

func TestSetCoordinates_RowOutOfRange(t *testing.T) {
	path := writeWorkbook(t, "players", [][]any{header, {1, "Ana", "Japan", "Tokyo", 2450}})

	s, err := Open(path, "")
	require.NoError(t, err)
	defer s.Close()

	err = s.SetCoordinates([]*EnrichedRecord{{Record: Record{Row: 9}, Updated: true}})
	require.Error(t, err)
}

func TestSave_Failures(t *testing.T) {
	path := writeWorkbook(t, "players", [][]any{header})

	s, err := Open(path, "")
	require.NoError(t, err)
	defer s.Close()

	dir := t.TempDir()

	require.Error(t, s.Save(filepath.Join(dir, "out.csv")))
	require.Error(t, s.Save(filepath.Join(dir, "missing", "out.xlsx")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a failed save must not leave files behind")
}
