// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/renjurating/renjumap/dashboard"
	"github.com/renjurating/renjumap/players"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	serveSheet  string
	serveListen string
)

var serveCmd = &cobra.Command{
	Use:   "serve <enriched.xlsx>",
	Short: "Serves the enriched player table as a read-only JSON API",
	Long: `Loads the workbook once and answers queries over it until interrupted.
The file is never written.

  GET /api/players        ?country=&city=&min_rating=&max_rating=&name=
  GET /api/players.csv    same filters, as a CSV download
  GET /api/players/top    ?n=10 plus the filters above
  GET /api/countries      players and average rating per country
  GET /api/ratings/histogram  ?bins=20 rating distribution
  GET /api/map            ?res=3 players grouped by H3 cell
  GET /metrics            Prometheus metrics
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("listen") {
			cfg.Listen = serveListen
		}

		sheet, err := players.Open(args[0], serveSheet)
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		records := sheet.Records()
		sheet.Close()

		located := 0
		for _, r := range records {
			if r.HasCoordinates() {
				located++
			}
		}

		log.Info().Msgf("Loaded %d players (%d with coordinates) from %s", len(records), located, args[0])

		ctx := cmd.Context()

		store, err := dashboard.NewStore(ctx, records)
		if err != nil {
			return err
		}
		defer store.Close()

		gin.SetMode(gin.ReleaseMode)

		return dashboard.NewServer(store, len(records)).Run(ctx, cfg.Listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveSheet, "sheet", "", `worksheet to read (default "players" or the first one)`)
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8080", "address to listen on (RENJU_LISTEN)")
}
