// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cliflags describes the command-line flags of the optmd commands.
package cliflags

import "strings"

// FlagInfo contains the static information for a CLI flag.
type FlagInfo struct {
	// Name of the flag as used on the command line.
	Name string

	// Shorthand is the short form of the flag (optional).
	Shorthand string

	// EnvVar is the name of the environment variable through which the flag
	// value can be controlled (optional).
	EnvVar string

	// Description of the flag.
	Description string
}

// Usage returns the usage string of the flag.
func (f FlagInfo) Usage() string {
	s := strings.TrimSpace(f.Description)
	if f.EnvVar != "" {
		s += "\nEnvironment variable: " + f.EnvVar
	}
	return s
}

// Flags shared by every command.
var (
	Config = FlagInfo{
		Name:        "config",
		EnvVar:      "OPTMD_CONFIG",
		Description: `Path to a YAML configuration file.`,
	}

	Verbosity = FlagInfo{
		Name:        "verbosity",
		Shorthand:   "v",
		EnvVar:      "OPTMD_VERBOSITY",
		Description: `Verbosity of the metadata trace written to stderr.`,
	}

	LogFormat = FlagInfo{
		Name:        "log-format",
		EnvVar:      "OPTMD_LOG_FORMAT",
		Description: `Format of log entries: text or json.`,
	}
)

// Flags of the explain command.
var (
	Catalog = FlagInfo{
		Name:        "catalog",
		EnvVar:      "OPTMD_CATALOG",
		Description: `SQLite database providing the tables the plan scans.`,
	}

	Methods = FlagInfo{
		Name:      "methods",
		Shorthand: "m",
		Description: `
Comma-separated list of metadata methods to print for each node. All methods
are printed by default.`,
	}

	Node = FlagInfo{
		Name:        "node",
		Description: `Id of the node to explain instead of the plan root.`,
	}

	Format = FlagInfo{
		Name:        "format",
		Description: `Output format: tree or table.`,
	}

	MaxSubstitutions = FlagInfo{
		Name:        "max-substitutions",
		Description: `Bound on the predicates inferred from each join input predicate.`,
	}

	MemoryLimit = FlagInfo{
		Name: "memory-limit",
		Description: `
Memory budget of an execution phase, such as 64MiB. Nodes whose cumulative
memory estimate exceeds it are flagged and the command fails.`,
	}
)

// TableDisplayFormat selects the rendering of tabular output.
var TableDisplayFormat = FlagInfo{
	Name:        "display-format",
	EnvVar:      "OPTMD_DISPLAY_FORMAT",
	Description: `Rendering of tables: pretty, tsv, csv or records.`,
}

// Analyze makes the tables command refresh the statistics first.
var Analyze = FlagInfo{
	Name:        "analyze",
	Description: `Run ANALYZE before reading the tables, to refresh their statistics.`,
}
