// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package dashboard serves the enriched player table as a read-only API.
package dashboard

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver
	"github.com/renjurating/renjumap/players"
	"github.com/renjurating/renjumap/spatial"
	"github.com/renjurating/renjumap/utils/textutils"
	"github.com/rs/zerolog/log"
	"github.com/uber/h3-go/v4"
)

// MinResolution and MaxResolution bound the H3 resolutions kept per player.
const (
	MinResolution = 1
	MaxResolution = 8
)

// Player is one row as returned by the API.
type Player struct {
	Name      string   `json:"name"`
	Country   string   `json:"country"`
	City      string   `json:"city"`
	Rating    int      `json:"rating"`
	Rank      *int     `json:"rank,omitempty"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// CountryStat aggregates the players of one country.
type CountryStat struct {
	Country       string  `json:"country"`
	Players       int     `json:"players"`
	AverageRating float64 `json:"average_rating"`
}

// Cluster groups the players that fall in the same H3 cell.
type Cluster struct {
	Cell          string        `json:"cell"`
	Players       int           `json:"players"`
	AverageRating float64       `json:"average_rating"`
	Centroid      spatial.Point `json:"centroid"`
}

// Bin is one bar of the rating distribution, covering [From, To). The last
// bin also includes To.
type Bin struct {
	From    float64 `json:"from"`
	To      float64 `json:"to"`
	Players int     `json:"players"`
}

// Filter narrows the player table. Zero values mean no restriction.
type Filter struct {
	Countries []string
	Cities    []string
	MinRating *int
	MaxRating *int
	Name      string
	Limit     int
}

// Store keeps the table in an in-memory DuckDB database.
type Store struct {
	db *sql.DB
}

// NewStore loads records into a fresh in-memory database.
func NewStore(ctx context.Context, records []*players.EnrichedRecord) (*Store, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(ctx); err != nil {
		db.Close()

		return nil, err
	}

	if err := s.load(ctx, records); err != nil {
		db.Close()

		return nil, err
	}

	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema(ctx context.Context) error {
	cells := make([]string, 0, MaxResolution)
	for res := MinResolution; res <= MaxResolution; res++ {
		cells = append(cells, fmt.Sprintf("h3_res%d BIGINT", res))
	}

	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE players (
			row_index INTEGER NOT NULL,
			name VARCHAR NOT NULL,
			name_folded VARCHAR NOT NULL,
			country VARCHAR NOT NULL,
			country_folded VARCHAR NOT NULL,
			city VARCHAR NOT NULL,
			city_folded VARCHAR NOT NULL,
			rating INTEGER NOT NULL,
			player_rank INTEGER,
			latitude DOUBLE,
			longitude DOUBLE,
			`+strings.Join(cells, ",\n\t\t\t")+`
		)`)
	if err != nil {
		return fmt.Errorf("creating players table: %w", err)
	}

	return nil
}

func (s *Store) load(ctx context.Context, records []*players.EnrichedRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", 11+MaxResolution), ", ")

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO players VALUES ("+placeholders+")")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var rank, lat, lng any
		if r.Rank != nil {
			rank = *r.Rank
		}
		if r.Point != nil {
			lat, lng = r.Point.Lat, r.Point.Lng
		}

		args := []any{
			r.Row,
			r.Name, textutils.Fold(r.Name),
			r.Country, textutils.Fold(r.Country),
			r.City, textutils.Fold(r.City),
			r.Rating, rank, lat, lng,
		}

		for res := MinResolution; res <= MaxResolution; res++ {
			var cell any
			if r.Point != nil {
				c, err := r.Point.Cell(res)
				if err != nil {
					return fmt.Errorf("row %d: h3 cell at res %d: %w", r.Row, res, err)
				}
				cell = int64(c)
			}
			args = append(args, cell)
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting row %d: %w", r.Row, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing players: %w", err)
	}

	log.Debug().Int("players", len(records)).Msg("loaded player table")

	return nil
}

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)

	in := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		marks := make([]string, len(values))
		for i, v := range values {
			marks[i] = "?"
			args = append(args, textutils.Fold(v))
		}
		clauses = append(clauses, column+" IN ("+strings.Join(marks, ", ")+")")
	}

	in("country_folded", f.Countries)
	in("city_folded", f.Cities)

	if f.MinRating != nil {
		clauses = append(clauses, "rating >= ?")
		args = append(args, *f.MinRating)
	}

	if f.MaxRating != nil {
		clauses = append(clauses, "rating <= ?")
		args = append(args, *f.MaxRating)
	}

	if name := textutils.Fold(f.Name); name != "" {
		clauses = append(clauses, "contains(name_folded, ?)")
		args = append(args, name)
	}

	if len(clauses) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Players lists the matching rows, best rating first.
func (s *Store) Players(ctx context.Context, f Filter) ([]*Player, error) {
	where, args := f.where()

	query := `SELECT name, country, city, rating, player_rank, latitude, longitude FROM players` +
		where + ` ORDER BY rating DESC, row_index`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying players: %w", err)
	}
	defer rows.Close()

	result := []*Player{}

	for rows.Next() {
		var (
			p        Player
			rank     sql.NullInt64
			lat, lng sql.NullFloat64
		)

		if err := rows.Scan(&p.Name, &p.Country, &p.City, &p.Rating, &rank, &lat, &lng); err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}

		if rank.Valid {
			v := int(rank.Int64)
			p.Rank = &v
		}

		if lat.Valid && lng.Valid {
			p.Latitude = &lat.Float64
			p.Longitude = &lng.Float64
		}

		result = append(result, &p)
	}

	return result, rows.Err()
}

// Countries aggregates the matching rows per country, highest average first.
func (s *Store) Countries(ctx context.Context, f Filter) ([]*CountryStat, error) {
	where, args := f.where()

	rows, err := s.db.QueryContext(ctx, `
		SELECT country, COUNT(*), AVG(rating)
		FROM players`+where+`
		GROUP BY country
		ORDER BY AVG(rating) DESC, country`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying countries: %w", err)
	}
	defer rows.Close()

	result := []*CountryStat{}

	for rows.Next() {
		var c CountryStat
		if err := rows.Scan(&c.Country, &c.Players, &c.AverageRating); err != nil {
			return nil, fmt.Errorf("scanning country: %w", err)
		}
		result = append(result, &c)
	}

	return result, rows.Err()
}

// Clusters groups the matching rows that have coordinates by H3 cell.
func (s *Store) Clusters(ctx context.Context, f Filter, res int) ([]*Cluster, error) {
	if res < MinResolution || res > MaxResolution {
		return nil, fmt.Errorf("resolution %d out of range [%d, %d]", res, MinResolution, MaxResolution)
	}

	where, args := f.where()
	if where == "" {
		where = " WHERE latitude IS NOT NULL"
	} else {
		where += " AND latitude IS NOT NULL"
	}

	column := fmt.Sprintf("h3_res%d", res)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+column+`, COUNT(*), AVG(rating), AVG(latitude), AVG(longitude)
		FROM players`+where+`
		GROUP BY `+column+`
		ORDER BY COUNT(*) DESC, `+column, args...)
	if err != nil {
		return nil, fmt.Errorf("querying clusters: %w", err)
	}
	defer rows.Close()

	result := []*Cluster{}

	for rows.Next() {
		var (
			c    Cluster
			cell int64
		)

		if err := rows.Scan(&cell, &c.Players, &c.AverageRating, &c.Centroid.Lat, &c.Centroid.Lng); err != nil {
			return nil, fmt.Errorf("scanning cluster: %w", err)
		}

		c.Cell = h3.Cell(cell).String()
		result = append(result, &c)
	}

	return result, rows.Err()
}

// Histogram splits the rating range of the matching rows into bins of equal
// width. Empty bins are kept; no matching rows means no bins.
func (s *Store) Histogram(ctx context.Context, f Filter, bins int) ([]*Bin, error) {
	if bins < 1 {
		return nil, fmt.Errorf("invalid bin count %d", bins)
	}

	where, args := f.where()

	var (
		lo, hi sql.NullInt64
		total  int
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(rating), MAX(rating), COUNT(*) FROM players`+where, args...,
	).Scan(&lo, &hi, &total)
	if err != nil {
		return nil, fmt.Errorf("querying rating range: %w", err)
	}

	result := []*Bin{}
	if total == 0 {
		return result, nil
	}

	span := float64(hi.Int64 - lo.Int64)
	if span == 0 {
		span = 1
	}

	width := span / float64(bins)

	for i := range bins {
		result = append(result, &Bin{
			From: float64(lo.Int64) + float64(i)*width,
			To:   float64(lo.Int64) + float64(i+1)*width,
		})
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bucket, COUNT(*)
		FROM (
			SELECT LEAST(
				CAST(FLOOR((rating - CAST(? AS DOUBLE)) / CAST(? AS DOUBLE)) AS INTEGER),
				CAST(? AS INTEGER)
			) AS bucket
			FROM players`+where+`
		)
		GROUP BY bucket
		ORDER BY bucket`, append([]any{lo.Int64, width, bins - 1}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("querying histogram: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bucket, count int
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("scanning bin: %w", err)
		}

		if bucket < 0 || bucket >= bins {
			return nil, fmt.Errorf("bin %d out of range", bucket)
		}

		result[bucket].Players = count
	}

	return result, rows.Err()
}
