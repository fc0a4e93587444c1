// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package config reads runtime settings from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Config holds every environment-driven setting. Command line flags take
// precedence over these values when set explicitly.
type Config struct {
	LogLevel  string `env:"RENJU_LOG_LEVEL, default=info" validate:"oneof=trace debug info warn error"`
	UserAgent string `env:"RENJU_USER_AGENT"`
	Listen    string `env:"RENJU_LISTEN, default=:8080" validate:"required"`

	Geocoder GeocoderConfig
}

// GeocoderConfig selects and tunes the geocoding provider.
type GeocoderConfig struct {
	Provider string        `env:"GEOCODER_PROVIDER, default=nominatim" validate:"oneof=nominatim google"`
	Delay    time.Duration `env:"GEOCODER_DELAY, default=1s"           validate:"gt=0"`
	Timeout  time.Duration `env:"GEOCODER_TIMEOUT, default=10s"        validate:"gt=0"`

	NominatimURL  string `env:"NOMINATIM_URL, default=https://nominatim.openstreetmap.org"                  validate:"url"`
	GoogleMapsURL string `env:"GOOGLE_MAPS_URL, default=https://maps.googleapis.com/maps/api/geocode/json" validate:"url"`

	GoogleMapsAPIKey   string `env:"GOOGLE_MAPS_API_KEY"`
	GoogleCloudProject string `env:"GOOGLE_CLOUD_PROJECT"`
}

// Load reads the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads settings through lookuper and validates them.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values, including the ones overridden by flags.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldError(fe))
	}

	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func fieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s (got %v)", field, fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a URL (got %v)", field, fe.Value())
	case "gt", "gte":
		return fmt.Sprintf("%s must be %s %s", field, map[string]string{"gt": ">", "gte": ">="}[fe.Tag()], fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// DefaultUserAgent identifies the program to geocoding services, which
// reject generic clients.
func DefaultUserAgent(version string) string {
	return fmt.Sprintf("renjumap/%s (+https://github.com/renjurating/renjumap)", version)
}
