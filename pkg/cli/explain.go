// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/optmd/pkg/cli/clierror"
	"github.com/cockroachdb/optmd/pkg/cli/exit"
	"github.com/cockroachdb/optmd/pkg/sql/opt/cat"
	"github.com/cockroachdb/optmd/pkg/sql/opt/cat/sqlitecat"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/mdprovider"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan/planyaml"
	"github.com/cockroachdb/optmd/pkg/util/humanizeutil"
	"github.com/cockroachdb/optmd/pkg/util/log"
	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain <plan.yaml>",
	Short: "print the metadata of a plan",
	Long: `
Loads a YAML plan and prints the answers of the metadata methods for each of
its nodes. Tables the plan does not define are read from --catalog.
`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

// byteMethods are printed as sizes.
var byteMethods = map[md.Method]func(q *md.Query, n plan.Node) (float64, bool, error){
	md.AverageRowSize:                   (*md.Query).AverageRowSize,
	md.Memory:                           (*md.Query).Memory,
	md.CumulativeMemoryWithinPhase:      (*md.Query).CumulativeMemoryWithinPhase,
	md.CumulativeMemoryWithinPhaseSplit: (*md.Query).CumulativeMemoryWithinPhaseSplit,
}

// staticPlanner stamps every node with the same timestamp: plans loaded from
// a file never change.
type staticPlanner struct{}

func (staticPlanner) Timestamp(plan.Node) uint64 { return 0 }

func runExplain(cmd *cobra.Command, args []string) error {
	start := time.Now()
	path := args[0]
	ctx := logtags.AddTag(cmd.Context(), "plan", filepath.Base(path))
	span, ctx := opentracing.StartSpanFromContext(ctx, "explain")
	span.SetTag("plan", path)
	defer span.Finish()

	methods, err := explainMethods()
	if err != nil {
		return clierror.NewError(err, exit.CommandLineFlagError())
	}
	switch explainCtx.format {
	case "tree", "table":
	default:
		return clierror.NewErrorf(exit.CommandLineFlagError(),
			"invalid --format %q: expected tree or table", explainCtx.format)
	}

	var opts []planyaml.Option
	if explainCtx.catalog != "" {
		tables, err := loadCatalog(ctx, explainCtx.catalog)
		if err != nil {
			return err
		}
		opts = append(opts, planyaml.WithTables(tables))
	}
	p, err := planyaml.ReadFile(path, opts...)
	if err != nil {
		return err
	}
	root := p.Root
	if explainCtx.node != "" {
		n, ok := p.Nodes[explainCtx.node]
		if !ok {
			return clierror.NewErrorf(exit.CommandLineFlagError(), "unknown node %q", explainCtx.node)
		}
		root = n
	}
	if root == nil {
		return errors.Newf("%s: plan has no root", path)
	}

	cfg := cliCtx.cfg.Metadata
	metrics := md.NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return err
	}
	qopts := []md.Option{md.WithMaxSubstitutions(cfg.MaxSubstitutions), md.WithMetrics(metrics)}
	if cfg.LazyCache {
		qopts = append(qopts, md.WithLazyCache(staticPlanner{}, md.NewLazyCache(cfg.LazyCacheEntries)))
	}
	q := md.NewQuery(ctx, mdprovider.Default(), qopts...)

	w := cmd.OutOrStdout()
	if explainCtx.format == "tree" {
		fmt.Fprint(w, plan.FormatWith(root, func(n plan.Node) []string {
			values := describeAll(q, n, methods)
			lines := make([]string, len(methods))
			for i, m := range methods {
				lines[i] = m.Name() + ": " + values[i]
			}
			return lines
		}))
	} else {
		cols := []string{"node"}
		for _, m := range methods {
			cols = append(cols, m.Name())
		}
		var rows [][]string
		for _, n := range walk(root) {
			rows = append(rows, append([]string{n.String()}, describeAll(q, n, methods)...))
		}
		if err := printQueryOutput(w, cols, rows, cliCtx.tableDisplayFormat); err != nil {
			return err
		}
	}

	logMetrics(ctx, reg)
	log.VEventf(ctx, 1, "explained %s in %s", path, humanizeutil.Duration(time.Since(start)))
	return checkMemoryLimit(ctx, q, root)
}

// explainMethods resolves --methods.
func explainMethods() ([]md.Method, error) {
	if len(explainCtx.methods) == 0 {
		return md.Methods(), nil
	}
	methods := make([]md.Method, 0, len(explainCtx.methods))
	for _, name := range explainCtx.methods {
		m, ok := md.LookupMethod(strings.TrimSpace(name))
		if !ok {
			return nil, errors.Newf("unknown metadata method %q", name)
		}
		methods = append(methods, m)
	}
	return methods, nil
}

func loadCatalog(ctx context.Context, path string) (map[string]*plan.Table, error) {
	c, err := sqlitecat.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return cat.LoadTables(ctx, c)
}

// describeAll answers methods for n. Errors are shown in place of the
// answer.
func describeAll(q *md.Query, n plan.Node, methods []md.Method) []string {
	res := make([]string, len(methods))
	for i, m := range methods {
		var err error
		if fn, ok := byteMethods[m]; ok {
			var v float64
			var known bool
			if v, known, err = fn(q, n); err == nil {
				res[i] = "unknown"
				if known {
					res[i] = humanizeutil.Bytes(v)
				}
			}
		} else {
			res[i], err = md.Describe(q, n, m)
		}
		if err != nil {
			res[i] = "error: " + err.Error()
		}
	}
	return res
}

// walk lists the nodes of a plan in the order they are printed. Each subset
// is listed once.
func walk(root plan.Node) []plan.Node {
	var res []plan.Node
	seen := make(map[*plan.Subset]bool)
	var visit func(n plan.Node)
	visit = func(n plan.Node) {
		if n == nil {
			return
		}
		res = append(res, n)
		switch t := n.(type) {
		case *plan.Subset:
			if seen[t] {
				return
			}
			seen[t] = true
			for _, m := range t.Members {
				visit(m)
			}
		case *plan.Vertex:
			visit(t.Current)
		default:
			for _, in := range n.Inputs() {
				visit(in)
			}
		}
	}
	visit(root)
	return res
}

func logMetrics(ctx context.Context, reg *prometheus.Registry) {
	if !log.V(1) {
		return
	}
	families, err := reg.Gather()
	if err != nil {
		log.Warningf(ctx, "gathering metrics: %v", err)
		return
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	for _, f := range families {
		for _, m := range f.GetMetric() {
			log.Infof(ctx, "%s %g", f.GetName(), m.GetCounter().GetValue())
		}
	}
}

// checkMemoryLimit fails if a node's cumulative memory estimate exceeds the
// configured budget.
func checkMemoryLimit(ctx context.Context, q *md.Query, root plan.Node) error {
	limit, err := cliCtx.cfg.Metadata.MemoryLimitBytes()
	if err != nil || limit <= 0 {
		return err
	}
	var over []string
	for _, n := range walk(root) {
		mem, ok, err := q.CumulativeMemoryWithinPhase(n)
		if err != nil || !ok || mem <= float64(limit) {
			continue
		}
		log.Warningf(ctx, "%s needs %s, over the limit of %s",
			n, humanizeutil.Bytes(mem), humanizeutil.IBytes(limit))
		over = append(over, n.String())
	}
	if len(over) == 0 {
		return nil
	}
	return clierror.NewErrorf(exit.MemoryLimitExceeded(),
		"%d node%s over the memory limit of %s: %s",
		len(over), pluralize(len(over)), humanizeutil.IBytes(limit), strings.Join(over, "; "))
}
