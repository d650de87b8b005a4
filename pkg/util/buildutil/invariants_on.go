// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

//go:build invariants || race

package buildutil

// Invariants is enabled when built with the invariants or race build tags. It
// turns on expensive consistency checks of metadata results, such as
// verifying that selectivities fall in [0, 1] and that cached values are
// never overwritten with different ones.
const Invariants = true
