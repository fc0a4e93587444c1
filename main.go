// Copyright 2025 The RenjuMap Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/renjurating/renjumap/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
