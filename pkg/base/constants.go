// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package base

const (
	// DefaultMaxSubstitutions is the default bound on the number of predicates
	// that join inference derives from each input predicate.
	DefaultMaxSubstitutions = 256

	// DefaultLazyCacheEntries is the default capacity of the cross-epoch
	// metadata cache.
	DefaultLazyCacheEntries = 1 << 16

	// DefaultConfigFile is the file loaded when no configuration file is
	// given on the command line, if it exists.
	DefaultConfigFile = "optmd.yaml"

	// EnvConfigFile names the environment variable that overrides
	// DefaultConfigFile.
	EnvConfigFile = "OPTMD_CONFIG"
)
