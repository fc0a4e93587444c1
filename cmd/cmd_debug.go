// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/renjurating/renjumap/geocoding"
	"github.com/renjurating/renjumap/logger"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

var debugGeocodeOpts geocoderOptions

var debugGeocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Resolves places read from stdin",
	Long: `Reads one place per line, e.g. "Tallinn, Estonia", and prints it followed by
the geocoder answer, or by the kind of failure.

$ echo "Tallinn, Estonia" | renju debug geocode
Tallinn, Estonia		{"Latitude":59.4372155,"Longitude":24.7453688,…}
`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		debugGeocodeOpts.apply(cmd.Flags(), &cfg.Geocoder)
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx := cmd.Context()

		geocoder, memo, err := debugGeocodeOpts.newGeocoder(ctx, cfg)
		if err != nil {
			return err
		}

		input := os.Stdin
		if logger.IsTerminal(input) {
			fmt.Fprintln(os.Stderr, "Enter places to resolve, one per line…")
		}

		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			query := strings.TrimSpace(scanner.Text())
			if query == "" {
				continue
			}

			res, err := geocoder.Geocode(ctx, query)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				fmt.Printf("%s\t%s\t%q\n", query, geocoding.TypeOf(err), err)

				continue
			}

			s, err := json.Marshal(res)
			if err != nil {
				return err
			}

			fmt.Printf("%s\t\t%s\n", query, s)
		}

		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		if memo != nil {
			fmt.Fprintf(os.Stderr, "%d answers served from memo\n", memo.Hits())
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugGeocodeCmd)

	debugGeocodeOpts.register(debugGeocodeCmd.Flags())
}
