// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

package dashboard

import (
	"context"
	"testing"

	"github.com/renjurating/renjumap/players"
	"github.com/renjurating/renjumap/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func record(row int, name, country, city string, rating int, rank *int, point *spatial.Point) *players.EnrichedRecord {
	return &players.EnrichedRecord{
		Record: players.Record{Row: row, Name: name, Country: country, City: city, Rating: rating, Rank: rank},
		Point:  point,
	}
}

func fixture() []*players.EnrichedRecord {
	return []*players.EnrichedRecord{
		record(2, "Alice Zhang", "China", "Beijing", 2500, intp(1), &spatial.Point{Lat: 39.9, Lng: 116.4}),
		record(3, "Bob Ivanov", "Russia", "Moscow", 2400, intp(2), &spatial.Point{Lat: 55.75, Lng: 37.62}),
		record(4, "Chloé Dubois", "France", "Paris", 2300, nil, &spatial.Point{Lat: 48.85, Lng: 2.35}),
		record(5, "Dmitri Petrov", "Russia", "Moscow", 2200, intp(4), &spatial.Point{Lat: 55.75, Lng: 37.62}),
		record(6, "Eve Unknown", "Atlantis", "Nowhereland", 2100, intp(5), nil),
	}
}

func setupStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(context.Background(), fixture())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func names(ps []*Player) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}

	return out
}

func TestStorePlayers(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all by rating", Filter{}, []string{"Alice Zhang", "Bob Ivanov", "Chloé Dubois", "Dmitri Petrov", "Eve Unknown"}},
		{"country folded", Filter{Countries: []string{"russia"}}, []string{"Bob Ivanov", "Dmitri Petrov"}},
		{"several countries", Filter{Countries: []string{"France", "China"}}, []string{"Alice Zhang", "Chloé Dubois"}},
		{"city", Filter{Cities: []string{"Moscow"}}, []string{"Bob Ivanov", "Dmitri Petrov"}},
		{"rating range", Filter{MinRating: intp(2200), MaxRating: intp(2400)}, []string{"Bob Ivanov", "Chloé Dubois", "Dmitri Petrov"}},
		{"name without accents", Filter{Name: "chloe"}, []string{"Chloé Dubois"}},
		{"name substring", Filter{Name: "OV"}, []string{"Bob Ivanov", "Dmitri Petrov"}},
		{"limit", Filter{Limit: 2}, []string{"Alice Zhang", "Bob Ivanov"}},
		{"no match", Filter{Countries: []string{"Peru"}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Players(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestStorePlayers_Fields(t *testing.T) {
	store := setupStore(t)

	got, err := store.Players(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, got, 5)

	alice := got[0]
	require.NotNil(t, alice.Rank)
	assert.Equal(t, 1, *alice.Rank)
	require.NotNil(t, alice.Latitude)
	require.NotNil(t, alice.Longitude)
	assert.InDelta(t, 39.9, *alice.Latitude, 1e-9)
	assert.InDelta(t, 116.4, *alice.Longitude, 1e-9)

	assert.Nil(t, got[2].Rank)

	eve := got[4]
	assert.Nil(t, eve.Latitude)
	assert.Nil(t, eve.Longitude)
}

func TestStoreCountries(t *testing.T) {
	store := setupStore(t)

	got, err := store.Countries(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "China", got[0].Country)
	assert.Equal(t, "France", got[1].Country)
	assert.Equal(t, "Russia", got[2].Country)
	assert.Equal(t, 2, got[2].Players)
	assert.InDelta(t, 2300, got[2].AverageRating, 1e-9)
	assert.Equal(t, "Atlantis", got[3].Country)
}

func TestStoreClusters(t *testing.T) {
	store := setupStore(t)

	got, err := store.Clusters(context.Background(), Filter{}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3, "players without coordinates are left out")

	moscow := got[0]
	cell, err := spatial.Point{Lat: 55.75, Lng: 37.62}.Cell(3)
	require.NoError(t, err)

	assert.Equal(t, cell.String(), moscow.Cell)
	assert.Equal(t, 2, moscow.Players)
	assert.InDelta(t, 2300, moscow.AverageRating, 1e-9)
	assert.InDelta(t, 55.75, moscow.Centroid.Lat, 1e-9)
	assert.InDelta(t, 37.62, moscow.Centroid.Lng, 1e-9)

	filtered, err := store.Clusters(context.Background(), Filter{Countries: []string{"Atlantis"}}, 3)
	require.NoError(t, err)
	assert.Empty(t, filtered)
}

func TestStoreClusters_Resolution(t *testing.T) {
	store := setupStore(t)

	_, err := store.Clusters(context.Background(), Filter{}, 0)
	require.Error(t, err)

	_, err = store.Clusters(context.Background(), Filter{}, MaxResolution+1)
	require.Error(t, err)
}

func TestStoreHistogram(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	got, err := store.Histogram(ctx, Filter{}, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)

	want := []Bin{
		{From: 2100, To: 2200, Players: 1},
		{From: 2200, To: 2300, Players: 1},
		{From: 2300, To: 2400, Players: 1},
		{From: 2400, To: 2500, Players: 2},
	}
	for i, b := range got {
		assert.InDelta(t, want[i].From, b.From, 1e-9, "bin %d", i)
		assert.InDelta(t, want[i].To, b.To, 1e-9, "bin %d", i)
		assert.Equal(t, want[i].Players, b.Players, "bin %d", i)
	}

	russia, err := store.Histogram(ctx, Filter{Countries: []string{"Russia"}}, 2)
	require.NoError(t, err)
	require.Len(t, russia, 2)
	assert.Equal(t, 1, russia[0].Players)
	assert.Equal(t, 1, russia[1].Players)

	single, err := store.Histogram(ctx, Filter{Name: "chloe"}, 5)
	require.NoError(t, err)
	require.Len(t, single, 5)
	assert.Equal(t, 1, single[0].Players)
	assert.InDelta(t, 2300, single[0].From, 1e-9)

	none, err := store.Histogram(ctx, Filter{Countries: []string{"Peru"}}, 5)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = store.Histogram(ctx, Filter{}, 0)
	require.Error(t, err)
}

func TestNewStore_Empty(t *testing.T) {
	store, err := NewStore(context.Background(), nil)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Players(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
