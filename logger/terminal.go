// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"os"

	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether f is attached to a terminal. When in doubt
// we say that it isn't.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
