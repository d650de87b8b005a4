// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"os"

	"github.com/cockroachdb/optmd/pkg/cli/cliflags"
	"github.com/cockroachdb/optmd/pkg/util/humanizeutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func setFlagFromEnv(f *pflag.FlagSet, flagInfo cliflags.FlagInfo) {
	if flagInfo.EnvVar == "" {
		return
	}
	if value, set := os.LookupEnv(flagInfo.EnvVar); set {
		if err := f.Set(flagInfo.Name, value); err != nil {
			panic(err)
		}
	}
}

// StringFlag creates a string flag and registers it with the FlagSet.
func StringFlag(f *pflag.FlagSet, valPtr *string, flagInfo cliflags.FlagInfo, defaultVal string) {
	f.StringVarP(valPtr, flagInfo.Name, flagInfo.Shorthand, defaultVal, flagInfo.Usage())

	setFlagFromEnv(f, flagInfo)
}

// StringSliceFlag creates a comma-separated list flag and registers it with
// the FlagSet.
func StringSliceFlag(
	f *pflag.FlagSet, valPtr *[]string, flagInfo cliflags.FlagInfo, defaultVal []string,
) {
	f.StringSliceVarP(valPtr, flagInfo.Name, flagInfo.Shorthand, defaultVal, flagInfo.Usage())

	setFlagFromEnv(f, flagInfo)
}

// IntFlag creates an int flag and registers it with the FlagSet.
func IntFlag(f *pflag.FlagSet, valPtr *int, flagInfo cliflags.FlagInfo, defaultVal int) {
	f.IntVarP(valPtr, flagInfo.Name, flagInfo.Shorthand, defaultVal, flagInfo.Usage())

	setFlagFromEnv(f, flagInfo)
}

// BoolFlag creates a bool flag and registers it with the FlagSet.
func BoolFlag(f *pflag.FlagSet, valPtr *bool, flagInfo cliflags.FlagInfo, defaultVal bool) {
	f.BoolVarP(valPtr, flagInfo.Name, flagInfo.Shorthand, defaultVal, flagInfo.Usage())

	setFlagFromEnv(f, flagInfo)
}

// VarFlag creates a custom-variable flag and registers it with the FlagSet.
func VarFlag(f *pflag.FlagSet, value pflag.Value, flagInfo cliflags.FlagInfo) {
	f.VarP(value, flagInfo.Name, flagInfo.Shorthand, flagInfo.Usage())

	setFlagFromEnv(f, flagInfo)
}

func init() {
	initCLIDefaults()

	optmdCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	}

	{
		pf := optmdCmd.PersistentFlags()
		StringFlag(pf, &cliCtx.configPath, cliflags.Config, cliCtx.configPath)
		IntFlag(pf, &cliCtx.verbosity, cliflags.Verbosity, cliCtx.verbosity)
		StringFlag(pf, &cliCtx.logFormat, cliflags.LogFormat, cliCtx.logFormat)
		VarFlag(pf, &cliCtx.tableDisplayFormat, cliflags.TableDisplayFormat)
	}

	{
		f := explainCmd.Flags()
		StringFlag(f, &explainCtx.catalog, cliflags.Catalog, explainCtx.catalog)
		StringSliceFlag(f, &explainCtx.methods, cliflags.Methods, explainCtx.methods)
		StringFlag(f, &explainCtx.node, cliflags.Node, explainCtx.node)
		StringFlag(f, &explainCtx.format, cliflags.Format, explainCtx.format)
		IntFlag(f, &explainCtx.maxSubstitutions, cliflags.MaxSubstitutions, explainCtx.maxSubstitutions)
		VarFlag(f, humanizeutil.NewBytesValue(&explainCtx.memoryLimit), cliflags.MemoryLimit)
	}

	BoolFlag(tablesCmd.Flags(), &tablesCtx.analyze, cliflags.Analyze, tablesCtx.analyze)
}
