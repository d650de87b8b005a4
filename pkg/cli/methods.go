// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"strings"

	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/spf13/cobra"
)

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "list the metadata methods",
	Long: `
Lists every registered metadata method with its kind, argument types and
result type.
`,
	Args: cobra.NoArgs,
	RunE: runMethods,
}

func runMethods(cmd *cobra.Command, _ []string) error {
	methods := md.Methods()
	rows := make([][]string, 0, len(methods))
	for _, m := range methods {
		def := m.Def()
		args := make([]string, len(def.Args))
		for i, a := range def.Args {
			args[i] = a.String()
		}
		rows = append(rows, []string{def.Name, m.Kind().Name(), strings.Join(args, ", "), def.Result.String()})
	}
	return printQueryOutput(cmd.OutOrStdout(),
		[]string{"method", "kind", "arguments", "result"}, rows, cliCtx.tableDisplayFormat)
}
