// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"os"

	"github.com/cockroachdb/optmd/pkg/base"
	"github.com/cockroachdb/optmd/pkg/cli/clierror"
	"github.com/cockroachdb/optmd/pkg/cli/cliflags"
	"github.com/cockroachdb/optmd/pkg/cli/exit"
	"github.com/cockroachdb/optmd/pkg/util/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// cliContext holds the settings shared by every command.
type cliContext struct {
	// configPath is the configuration file; empty means the default.
	configPath string
	verbosity  int
	logFormat  string

	tableDisplayFormat tableDisplayFormat

	// cfg is the configuration after flag overrides.
	cfg base.Config
}

var cliCtx cliContext

// isInteractive indicates whether stdout refers to a terminal.
var isInteractive = isatty.IsTerminal(os.Stdout.Fd())

// explainContext holds the settings of the explain command.
type explainContext struct {
	catalog          string
	methods          []string
	node             string
	format           string
	maxSubstitutions int
	memoryLimit      int64
}

var explainCtx explainContext

// tablesContext holds the settings of the tables command.
type tablesContext struct {
	analyze bool
}

var tablesCtx tablesContext

// initCLIDefaults resets the command settings. Tests call it between
// commands.
func initCLIDefaults() {
	cfg := base.DefaultConfig()
	cliCtx = cliContext{
		verbosity: int(cfg.Log.Verbosity),
		logFormat: string(cfg.Log.Format),
		// Pretty tables are for terminals.
		tableDisplayFormat: tableDisplayTSV,
		cfg:                cfg,
	}
	if isInteractive {
		cliCtx.tableDisplayFormat = tableDisplayPretty
	}
	explainCtx = explainContext{
		format:           "tree",
		maxSubstitutions: cfg.Metadata.MaxSubstitutions,
	}
	tablesCtx = tablesContext{}
}

// loadConfig reads the configuration file and applies the flags that were
// set on the command line.
func loadConfig(cmd *cobra.Command) error {
	cfg, err := base.LoadConfig(cliCtx.configPath)
	if err != nil {
		return clierror.NewError(err, exit.CommandLineFlagError())
	}
	f := cmd.Flags()
	if f.Changed(cliflags.Verbosity.Name) {
		cfg.Log.Verbosity = int32(cliCtx.verbosity)
	}
	if f.Changed(cliflags.LogFormat.Name) {
		cfg.Log.Format = log.Format(cliCtx.logFormat)
	}
	if f.Changed(cliflags.MaxSubstitutions.Name) {
		cfg.Metadata.MaxSubstitutions = explainCtx.maxSubstitutions
	}
	if f.Changed(cliflags.MemoryLimit.Name) {
		cfg.Metadata.MemoryLimit = f.Lookup(cliflags.MemoryLimit.Name).Value.String()
	}
	if err := cfg.Validate(); err != nil {
		return clierror.NewError(err, exit.CommandLineFlagError())
	}
	log.SetOutput(cmd.ErrOrStderr(), cfg.Log.Format)
	log.SetVerbosity(cfg.Log.Verbosity)
	cliCtx.cfg = cfg
	return nil
}
