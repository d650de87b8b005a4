// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

//go:build !invariants && !race

package buildutil

// Invariants is disabled in regular builds.
const Invariants = false
