// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"fmt"
	"os"

	"github.com/cockroachdb/optmd/pkg/cli/clierror"
	"github.com/cockroachdb/optmd/pkg/cli/exit"
	"github.com/spf13/cobra"
)

// Main is the entry point for the optmd command-line interface.
func Main() {
	if err := Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		exit.WithCode(clierror.ExitCode(err))
	}
	exit.WithCode(exit.Success())
}

var optmdCmd = &cobra.Command{
	Use:   "optmd [command] (flags)",
	Short: "relational plan metadata explorer",
	Long: `
Answers metadata questions about relational plans: row counts, selectivity,
uniqueness, collations, predicates, lineage, sizes and memory.
`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	cobra.EnableCommandSorting = false

	optmdCmd.AddCommand(
		explainCmd,
		tablesCmd,
		methodsCmd,
	)
}

// Run runs the command line with the given arguments.
func Run(args []string) error {
	optmdCmd.SetArgs(args)
	return optmdCmd.Execute()
}
