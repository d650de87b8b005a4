// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/optmd/pkg/cli/clierror"
	"github.com/cockroachdb/optmd/pkg/cli/exit"
	"github.com/cockroachdb/optmd/pkg/sql/opt/cat/sqlitecat"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// runWithCapture runs the command line with fresh settings and returns what
// it printed to stdout.
func runWithCapture(t *testing.T, args ...string) (string, error) {
	t.Helper()
	initCLIDefaults()
	resetFlags(optmdCmd)
	var out, errOut bytes.Buffer
	optmdCmd.SetOut(&out)
	optmdCmd.SetErr(&errOut)
	defer func() {
		optmdCmd.SetOut(nil)
		optmdCmd.SetErr(nil)
	}()
	err := Run(args)
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) { f.Changed = false }
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

const planYAML = `
tables:
  - name: t
    columns: [{name: a, type: int}, {name: b, type: int}]
    rows: 100
    keys: [[a]]
root:
  op: filter
  id: f
  condition: $0 > 5
  input: {op: scan, table: t}
`

func writeFile(t *testing.T, name, contents string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestExplain(t *testing.T) {
	path := writeFile(t, "plan.yaml", planYAML)

	out, err := runWithCapture(t, "explain", path, "--methods=row-count,unique-keys")
	require.NoError(t, err)
	require.Equal(t, `filter $0 > 5
│ row-count: 50
│ unique-keys: [(0)]
└── scan t
      row-count: 100
      unique-keys: [(0)]
`, out)

	out, err = runWithCapture(t, "explain", path, "-m", "row-count",
		"--format=table", "--display-format=csv")
	require.NoError(t, err)
	require.Equal(t, "node,row-count\nfilter $0 > 5,50\nscan t,100\n", out)

	// Sizes are printed in bytes.
	out, err = runWithCapture(t, "explain", path, "-m", "average-row-size", "--node=f")
	require.NoError(t, err)
	require.Contains(t, out, "average-row-size: ")
	require.Contains(t, out, " B\n")

	// Every method is printed by default.
	out, err = runWithCapture(t, "explain", path)
	require.NoError(t, err)
	require.NotContains(t, out, "error:")
	require.Contains(t, out, "│ row-count: 50\n")
}

func TestExplainErrors(t *testing.T) {
	path := writeFile(t, "plan.yaml", planYAML)

	_, err := runWithCapture(t, "explain", path, "-m", "bogus")
	require.ErrorContains(t, err, `unknown metadata method "bogus"`)
	require.Equal(t, exit.CommandLineFlagError(), clierror.ExitCode(err))

	_, err = runWithCapture(t, "explain", path, "--node=nope")
	require.Equal(t, exit.CommandLineFlagError(), clierror.ExitCode(err))

	_, err = runWithCapture(t, "explain", path, "--format=dot")
	require.Equal(t, exit.CommandLineFlagError(), clierror.ExitCode(err))

	_, err = runWithCapture(t, "explain", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Equal(t, exit.UnspecifiedError(), clierror.ExitCode(err))

	cfg := writeFile(t, "optmd.yaml", "metadata:\n  max_substitutions: 0\n")
	_, err = runWithCapture(t, "explain", path, "--config", cfg)
	require.ErrorContains(t, err, "max_substitutions must be positive")
	require.Equal(t, exit.CommandLineFlagError(), clierror.ExitCode(err))

	// Flags override the configuration file.
	_, err = runWithCapture(t, "explain", path, "--config", cfg, "--max-substitutions=4",
		"-m", "row-count")
	require.NoError(t, err)
}

func TestExplainMemoryLimit(t *testing.T) {
	path := writeFile(t, "plan.yaml", `
tables:
  - name: t
    columns: [{name: a, type: int}, {name: b, type: int}]
    rows: 100
root: {op: sort, ordering: "+1", input: {op: scan, table: t}}
`)
	_, err := runWithCapture(t, "explain", path, "-m", "memory", "--memory-limit=1GiB")
	require.NoError(t, err)

	out, err := runWithCapture(t, "explain", path, "-m", "memory", "--memory-limit=1KiB")
	require.Equal(t, exit.MemoryLimitExceeded(), clierror.ExitCode(err))
	require.ErrorContains(t, err, "1 node over the memory limit of 1.0 KiB")
	// The plan is still printed.
	require.Contains(t, out, "└── scan t\n")

	cfg := writeFile(t, "optmd.yaml", "metadata:\n  memory_limit: 1KiB\n")
	_, err = runWithCapture(t, "explain", path, "--config", cfg, "-m", "row-count")
	require.Equal(t, exit.MemoryLimitExceeded(), clierror.ExitCode(err))
}

func makeCatalog(t *testing.T) string {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := sqlitecat.Open(ctx, path)
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close()) }()
	_, err = c.DB().ExecContext(ctx, `
CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT UNIQUE);
INSERT INTO t (name) VALUES ('a'), ('b'), ('c');
`)
	require.NoError(t, err)
	return path
}

func TestTables(t *testing.T) {
	db := makeCatalog(t)

	out, err := runWithCapture(t, "tables", db, "--display-format=tsv")
	require.NoError(t, err)
	require.Equal(t,
		"table\tcolumns\tkeys\trows\tdistinct\tcollations\n"+
			"t\tid int not null, name string\t(id) (name)\t-\t\t+id\n", out)

	out, err = runWithCapture(t, "tables", db, "T", "--analyze", "--display-format=records")
	require.NoError(t, err)
	require.Contains(t, out, "-[ RECORD 1 ]\n")
	require.Contains(t, out, "rows       | 3\n")
	require.Contains(t, out, "distinct   | name=3\n")

	_, err = runWithCapture(t, "tables", db, "nope")
	require.ErrorContains(t, err, `unknown table "nope"`)
}

func TestExplainWithCatalog(t *testing.T) {
	db := makeCatalog(t)
	path := writeFile(t, "plan.yaml", "root: {op: scan, table: t}\n")

	_, err := runWithCapture(t, "tables", db, "--analyze")
	require.NoError(t, err)
	out, err := runWithCapture(t, "explain", path, "--catalog", db, "-m", "row-count,unique-keys")
	require.NoError(t, err)
	require.Equal(t, "scan t\n  row-count: 3\n  unique-keys: [(0), (1)]\n", out)
}

func TestMethods(t *testing.T) {
	out, err := runWithCapture(t, "methods", "--display-format=csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t, "method,kind,arguments,result", lines[0])
	require.Greater(t, len(lines), 20)
	require.True(t, strings.HasPrefix(lines[1], "row-count,"), lines[1])
}
