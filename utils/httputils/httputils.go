// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package httputils builds the HTTP clients used to talk to geocoding services.
package httputils

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"
)

const (
	maxTraceLines = 256
	maxTraceWidth = 512
)

// TracingRoundTripper writes a compact dump of every exchange to Writer.
// A nil Writer disables tracing.
type TracingRoundTripper struct {
	Transport http.RoundTripper
	Writer    io.Writer
	DumpBody  bool
}

// prefix marks every line with the direction of the traffic and clips the dump
// so a large response doesn't flood the terminal.
func prefix(dump []byte, marker rune) string {
	lines := strings.Split(strings.TrimRight(string(dump), "\r\n"), "\n")

	truncated := len(lines) > maxTraceLines
	if truncated {
		lines = lines[:maxTraceLines]
	}

	var b strings.Builder

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if len(line) > maxTraceWidth {
			line = line[:maxTraceWidth] + "…"
		}

		fmt.Fprintf(&b, "%c %s\n", marker, line)
	}

	if truncated {
		fmt.Fprintf(&b, "%c …\n", marker)
	}

	return b.String()
}

// RoundTrip implements the http.RoundTripper interface.
func (t *TracingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Writer == nil {
		return t.Transport.RoundTrip(req)
	}

	dump, err := httputil.DumpRequestOut(req, t.DumpBody)
	if err != nil {
		return nil, fmt.Errorf("tracing HTTP request: %w", err)
	}

	if _, err := io.WriteString(t.Writer, prefix(dump, '>')); err != nil {
		return nil, fmt.Errorf("tracing HTTP request: %w", err)
	}

	start := time.Now()

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		fmt.Fprintf(t.Writer, "< ERROR: [%v] %v\n", time.Since(start), err)

		return nil, err
	}

	elapsed := time.Since(start)

	dump, err = httputil.DumpResponse(resp, t.DumpBody)
	if err != nil {
		resp.Body.Close()

		return nil, fmt.Errorf("tracing HTTP response: %w", err)
	}

	fmt.Fprintf(t.Writer, "< RESPONSE: [%v]\n", elapsed)

	if _, err := io.WriteString(t.Writer, prefix(dump, '<')); err != nil {
		resp.Body.Close()

		return nil, fmt.Errorf("tracing HTTP response: %w", err)
	}

	return resp, nil
}

// HeaderRoundTripper sets fixed headers on every outgoing request.
type HeaderRoundTripper struct {
	Transport http.RoundTripper
	Headers   map[string]string
}

// RoundTrip implements the http.RoundTripper interface.
func (t *HeaderRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}

	return t.Transport.RoundTrip(req)
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	// UserAgent identifies the application; public geocoders reject anonymous clients
	UserAgent string

	// Timeout bounds a whole request, including reading the body
	Timeout time.Duration

	// TraceWriter receives request/response dumps when not nil
	TraceWriter io.Writer

	// TraceBody includes bodies in the dumps
	TraceBody bool
}

// NewClient returns an http.Client that identifies itself, refuses redirects
// and optionally traces its traffic.
func NewClient(options ClientOptions) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   1,
		MaxConnsPerHost:       1,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: options.Timeout,
	}

	userAgent := options.UserAgent
	if userAgent == "" {
		userAgent = "renjumap/unknown"
	}

	return &http.Client{
		Timeout: options.Timeout,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Transport: &HeaderRoundTripper{
			Headers: map[string]string{
				"User-Agent": userAgent,
				"Accept":     "application/json",
			},
			Transport: &TracingRoundTripper{
				Writer:    options.TraceWriter,
				DumpBody:  options.TraceBody,
				Transport: transport,
			},
		},
	}
}
