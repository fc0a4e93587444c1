// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package logger configures the process-wide zerolog logger.
//
// Call Init once from the command entry point; packages then log through
// github.com/rs/zerolog/log.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TimeFormat is used by the console writer.
const TimeFormat = "2006-01-02 15:04:05"

// Options controls Init.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Unknown values mean info.
	Level string
	// JSON disables the console writer.
	JSON bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// Init builds the logger, installs it as the global one and returns it.
// Calling it again replaces the previous configuration.
func Init(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: TimeFormat, NoColor: !colorable(out)}
	}

	lvl := ParseLevel(opts.Level)
	zerolog.SetGlobalLevel(lvl)

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name into a zerolog.Level.
//
//	"trace" → TraceLevel
//	"debug" → DebugLevel
//	"info"  → InfoLevel (default)
//	"warn"  → WarnLevel
//	"error" → ErrorLevel
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func colorable(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return IsTerminal(f)
}
