// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

package players

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/renjurating/renjumap/spatial"
	"github.com/renjurating/renjumap/utils/textutils"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// Column headers, matched case and accent insensitively.
const (
	ColumnName      = "Name"
	ColumnCountry   = "Country"
	ColumnCity      = "City"
	ColumnRating    = "Rating"
	ColumnRank      = "Rank"
	ColumnLatitude  = "latitude"
	ColumnLongitude = "longitude"
)

// DefaultSheet is preferred when the caller doesn't name a sheet.
const DefaultSheet = "players"

var (
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("missing required column")
	// ErrEmptySheet is returned when the sheet has no header row.
	ErrEmptySheet = errors.New("sheet is empty")
)

// columns holds 0-based indexes; -1 marks an absent column.
type columns struct {
	name, country, city, rating, rank int
	lat, lon                          int
}

// Sheet is an open player spreadsheet. Only the coordinate cells are ever
// modified; every other cell is written back as it was read.
type Sheet struct {
	file    *excelize.File
	name    string
	rows    [][]string
	width   int
	columns columns
}

// Open reads the named sheet of the workbook at path. An empty name selects
// the "players" sheet when present, the first sheet otherwise.
func Open(path, sheet string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}

	s, err := newSheet(f, sheet)
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}

	return s, nil
}

func newSheet(f *excelize.File, name string) (*Sheet, error) {
	switch {
	case name != "":
		if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
			return nil, fmt.Errorf("sheet %q not found", name)
		}
	default:
		if idx, err := f.GetSheetIndex(DefaultSheet); err == nil && idx >= 0 {
			name = DefaultSheet
		} else {
			name = f.GetSheetName(0)
		}
	}

	if name == "" {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", name, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q: %w", name, ErrEmptySheet)
	}

	cols, err := locateColumns(rows[0])
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", name, err)
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	return &Sheet{
		file:    f,
		name:    name,
		rows:    rows,
		width:   width,
		columns: cols,
	}, nil
}

func locateColumns(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, cell := range header {
		key := textutils.Fold(cell)
		if _, seen := idx[key]; !seen && key != "" {
			idx[key] = i
		}
	}

	find := func(name string) int {
		if i, ok := idx[textutils.Fold(name)]; ok {
			return i
		}

		return -1
	}

	cols := columns{
		name:    find(ColumnName),
		country: find(ColumnCountry),
		city:    find(ColumnCity),
		rating:  find(ColumnRating),
		rank:    find(ColumnRank),
		lat:     find(ColumnLatitude),
		lon:     find(ColumnLongitude),
	}

	var missing []string

	for name, i := range map[string]int{
		ColumnName:    cols.name,
		ColumnCountry: cols.country,
		ColumnCity:    cols.city,
		ColumnRating:  cols.rating,
	} {
		if i < 0 {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)

		return cols, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	return cols, nil
}

// Name returns the sheet name.
func (s *Sheet) Name() string {
	return s.name
}

// Len returns the number of data rows, excluding the header.
func (s *Sheet) Len() int {
	return len(s.rows) - 1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[i])
}

func parseInt(v string) (int, bool) {
	if v == "" {
		return 0, false
	}

	if n, err := strconv.Atoi(v); err == nil {
		return n, true
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return int(f), true
}

// parsePoint returns nil unless both cells hold valid coordinates, so a
// half-filled pair is treated as missing.
func parsePoint(latCell, lonCell string) *spatial.Point {
	if latCell == "" || lonCell == "" {
		return nil
	}

	lat, err := strconv.ParseFloat(latCell, 64)
	if err != nil {
		return nil
	}

	lon, err := strconv.ParseFloat(lonCell, 64)
	if err != nil {
		return nil
	}

	p, err := spatial.NewPoint(lat, lon)
	if err != nil {
		return nil
	}

	return p
}

// Records parses every data row, in sheet order.
func (s *Sheet) Records() []*EnrichedRecord {
	records := make([]*EnrichedRecord, 0, s.Len())

	for i, row := range s.rows[1:] {
		r := &EnrichedRecord{
			Record: Record{
				Row:     i + 2,
				Name:    cell(row, s.columns.name),
				Country: cell(row, s.columns.country),
				City:    cell(row, s.columns.city),
			},
			Point: parsePoint(cell(row, s.columns.lat), cell(row, s.columns.lon)),
		}

		if v := cell(row, s.columns.rating); v != "" {
			rating, ok := parseInt(v)
			if !ok {
				log.Warn().Int("row", r.Row).Str("rating", v).Msg("unparseable rating, using 0")
			}

			r.Rating = rating
		}

		if rank, ok := parseInt(cell(row, s.columns.rank)); ok {
			r.Rank = &rank
		}

		records = append(records, r)
	}

	return records
}

// coordinateColumns returns the 0-based latitude and longitude columns,
// appending headers after the widest row for whichever is missing.
func (s *Sheet) coordinateColumns() (int, int, error) {
	next := s.width

	for _, c := range []struct {
		idx    *int
		header string
	}{
		{&s.columns.lat, ColumnLatitude},
		{&s.columns.lon, ColumnLongitude},
	} {
		if *c.idx >= 0 {
			continue
		}

		name, err := excelize.CoordinatesToCellName(next+1, 1)
		if err != nil {
			return 0, 0, err
		}

		if err := s.file.SetCellStr(s.name, name, c.header); err != nil {
			return 0, 0, fmt.Errorf("adding %s header: %w", c.header, err)
		}

		*c.idx = next
		next++
	}

	s.width = next

	return s.columns.lat, s.columns.lon, nil
}

// SetCoordinates writes the pair of every updated record into its row. An
// absent pair clears both cells. Rows of records that were not updated keep
// their cells as they are, value and type.
func (s *Sheet) SetCoordinates(records []*EnrichedRecord) error {
	latCol, lonCol, err := s.coordinateColumns()
	if err != nil {
		return err
	}

	for _, r := range records {
		if r.Row < 2 || r.Row > len(s.rows) {
			return fmt.Errorf("record row %d outside sheet %q", r.Row, s.name)
		}

		if !r.Updated {
			continue
		}

		latCell, err := excelize.CoordinatesToCellName(latCol+1, r.Row)
		if err != nil {
			return err
		}

		lonCell, err := excelize.CoordinatesToCellName(lonCol+1, r.Row)
		if err != nil {
			return err
		}

		if r.Point == nil {
			err = errors.Join(
				s.file.SetCellStr(s.name, latCell, ""),
				s.file.SetCellStr(s.name, lonCell, ""),
			)
		} else {
			err = errors.Join(
				s.file.SetCellFloat(s.name, latCell, r.Point.Lat, -1, 64),
				s.file.SetCellFloat(s.name, lonCell, r.Point.Lng, -1, 64),
			)
		}

		if err != nil {
			return fmt.Errorf("writing coordinates for row %d: %w", r.Row, err)
		}
	}

	return nil
}

// Save writes the workbook to path. The content goes to a temporary file in
// the same directory first, so path either holds the complete workbook or is
// left untouched.
func (s *Sheet) Save(path string) error {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".xlsx" {
		return fmt.Errorf("unsupported output extension %q, expected .xlsx", ext)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary output: %w", err)
	}

	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := s.file.WriteTo(tmp); err != nil {
		return errors.Join(fmt.Errorf("writing workbook: %w", err), tmp.Close())
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary output: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("moving output into place: %w", err)
	}

	return nil
}

// Close releases the workbook.
func (s *Sheet) Close() error {
	return s.file.Close()
}
