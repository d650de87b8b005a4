// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/cat/sqlitecat"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var tablesCmd = &cobra.Command{
	Use:   "tables <db> [table...]",
	Short: "show the tables of a SQLite catalog",
	Long: `
Shows the tables of a SQLite database as seen by explain --catalog: their
columns, keys, statistics and collations. All tables are shown by default.
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTables,
}

func runTables(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := sqlitecat.Open(ctx, args[0])
	if err != nil {
		return err
	}
	defer c.Close()

	if tablesCtx.analyze {
		if _, err := c.DB().ExecContext(ctx, `ANALYZE`); err != nil {
			return err
		}
	}
	names := args[1:]
	if len(names) == 0 {
		if names, err = c.TableNames(ctx); err != nil {
			return err
		}
	}
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		t, err := c.Table(ctx, name)
		if err != nil {
			return err
		}
		rows = append(rows, tableRow(t))
	}
	return printQueryOutput(cmd.OutOrStdout(),
		[]string{"table", "columns", "keys", "rows", "distinct", "collations"},
		rows, cliCtx.tableDisplayFormat)
}

func tableRow(t *plan.Table) []string {
	colName := func(i int) string { return t.Cols[i].Name }

	cols := make([]string, len(t.Cols))
	for i, c := range t.Cols {
		cols[i] = c.Name + " " + c.Type.String()
		if !c.Nullable {
			cols[i] += " not null"
		}
	}

	keys := make([]string, len(t.Keys))
	for i, k := range t.Keys {
		keys[i] = "(" + joinCols(k, colName) + ")"
	}

	rowCount := "-"
	if t.Stats.HasRowCount {
		rowCount = humanize.Comma(int64(t.Stats.RowCount))
	}

	distinctCols := make([]int, 0, len(t.Stats.DistinctCounts))
	for c := range t.Stats.DistinctCounts {
		distinctCols = append(distinctCols, c)
	}
	sort.Ints(distinctCols)
	distinct := make([]string, len(distinctCols))
	for i, c := range distinctCols {
		distinct[i] = colName(c) + "=" + strconv.FormatFloat(t.Stats.DistinctCounts[c], 'f', -1, 64)
	}

	collations := make([]string, len(t.Collations))
	for i, o := range t.Collations {
		parts := make([]string, len(o))
		for j, c := range o {
			dir := "+"
			if c.Descending {
				dir = "-"
			}
			parts[j] = dir + colName(c.Ordinal)
		}
		collations[i] = strings.Join(parts, ",")
	}

	return []string{
		t.Name,
		strings.Join(cols, ", "),
		strings.Join(keys, " "),
		rowCount,
		strings.Join(distinct, " "),
		strings.Join(collations, " "),
	}
}

func joinCols(s opt.ColSet, name func(int) string) string {
	var names []string
	s.ForEach(func(i int) { names = append(names, name(i)) })
	return strings.Join(names, ",")
}
