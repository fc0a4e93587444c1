// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

package dashboard

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// DefaultTopN is the size of the leaderboard when n is not given.
const DefaultTopN = 10

type playerQuery struct {
	Countries []string `form:"country"`
	Cities    []string `form:"city"`
	MinRating *int     `form:"min_rating"`
	MaxRating *int     `form:"max_rating"`
	Name      string   `form:"name"       binding:"max=100"`
}

type topQuery struct {
	playerQuery

	N int `form:"n,default=10" binding:"min=1,max=20"`
}

type histogramQuery struct {
	playerQuery

	Bins int `form:"bins,default=20" binding:"min=1,max=100"`
}

type mapQuery struct {
	playerQuery

	Res int `form:"res,default=3" binding:"min=1,max=8"`
}

func (q playerQuery) filter() (Filter, error) {
	if q.MinRating != nil && q.MaxRating != nil && *q.MinRating > *q.MaxRating {
		return Filter{}, errors.New("min_rating must not exceed max_rating")
	}

	return Filter{
		Countries: q.Countries,
		Cities:    q.Cities,
		MinRating: q.MinRating,
		MaxRating: q.MaxRating,
		Name:      q.Name,
	}, nil
}

// Server exposes a Store over HTTP.
type Server struct {
	store   *Store
	metrics *metrics
	engine  *gin.Engine
}

// NewServer wires the routes. size is reported as a gauge.
func NewServer(store *Store, size int) *Server {
	s := &Server{store: store, metrics: newMetrics()}
	s.metrics.players.Set(float64(size))

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), s.metrics.middleware())

	api := r.Group("/api")
	api.GET("/players", s.listPlayers)
	api.GET("/players.csv", s.downloadPlayers)
	api.GET("/players/top", s.topPlayers)
	api.GET("/countries", s.countryStats)
	api.GET("/ratings/histogram", s.ratingHistogram)
	api.GET("/map", s.playerMap)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	s.engine = r

	return s
}

// Handler returns the routes as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)

	go func() {
		log.Info().Str("addr", addr).Msg("serving player data")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func bindFilter(ctx *gin.Context, q *playerQuery, target any) (Filter, bool) {
	if err := ctx.ShouldBindQuery(target); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return Filter{}, false
	}

	f, err := q.filter()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return Filter{}, false
	}

	return f, true
}

func (s *Server) listPlayers(ctx *gin.Context) {
	var q playerQuery

	f, ok := bindFilter(ctx, &q, &q)
	if !ok {
		return
	}

	result, err := s.store.Players(ctx.Request.Context(), f)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (s *Server) topPlayers(ctx *gin.Context) {
	var q topQuery

	f, ok := bindFilter(ctx, &q.playerQuery, &q)
	if !ok {
		return
	}

	f.Limit = q.N

	result, err := s.store.Players(ctx.Request.Context(), f)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (s *Server) downloadPlayers(ctx *gin.Context) {
	var q playerQuery

	f, ok := bindFilter(ctx, &q, &q)
	if !ok {
		return
	}

	result, err := s.store.Players(ctx.Request.Context(), f)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.Header("Content-Disposition", `attachment; filename="filtered_data.csv"`)
	ctx.Header("Content-Type", "text/csv; charset=utf-8")
	ctx.Status(http.StatusOK)

	w := csv.NewWriter(ctx.Writer)
	_ = w.Write([]string{"Rank", "Name", "Country", "City", "Rating"})

	for _, p := range result {
		rank := ""
		if p.Rank != nil {
			rank = strconv.Itoa(*p.Rank)
		}
		_ = w.Write([]string{rank, p.Name, p.Country, p.City, strconv.Itoa(p.Rating)})
	}

	w.Flush()

	if err := w.Error(); err != nil {
		log.Warn().Err(err).Msg("writing csv")
	}
}

func (s *Server) countryStats(ctx *gin.Context) {
	var q playerQuery

	f, ok := bindFilter(ctx, &q, &q)
	if !ok {
		return
	}

	result, err := s.store.Countries(ctx.Request.Context(), f)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (s *Server) ratingHistogram(ctx *gin.Context) {
	var q histogramQuery

	f, ok := bindFilter(ctx, &q.playerQuery, &q)
	if !ok {
		return
	}

	result, err := s.store.Histogram(ctx.Request.Context(), f, q.Bins)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (s *Server) playerMap(ctx *gin.Context) {
	var q mapQuery

	f, ok := bindFilter(ctx, &q.playerQuery, &q)
	if !ok {
		return
	}

	result, err := s.store.Clusters(ctx.Request.Context(), f, q.Res)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, result)
}
