// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/renjurating/renjumap/config"
	"github.com/renjurating/renjumap/logger"
	"github.com/spf13/cobra"
)

var (
	cfg      *config.Config
	logLevel string
)

func init() {
	logger.Init(logger.Options{})

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "trace, debug, info, warn or error (RENJU_LOG_LEVEL)")
}

var rootCmd = &cobra.Command{
	Use:   "renju",
	Short: "Player coordinates and ratings for the Renju community",
	Long: `
renju adds latitude and longitude columns to the Renju player rating
spreadsheet by geocoding each player's city and country, and serves the
enriched table as a read-only data API.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("log-level") {
			c.LogLevel = logLevel
		}

		if err := c.Validate(); err != nil {
			return err
		}

		if c.UserAgent == "" {
			c.UserAgent = config.DefaultUserAgent(Version)
		}

		logger.Init(logger.Options{Level: c.LogLevel})
		cfg = c

		return nil
	},
}

var Version = "dev"

// Execute runs the command line. SIGINT and SIGTERM cancel the context
// handed to every command.
func Execute(version string) {
	Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}
