// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// This is the entry point for the optmd binary.
package main

import "github.com/cockroachdb/optmd/pkg/cli"

func main() {
	cli.Main()
}
