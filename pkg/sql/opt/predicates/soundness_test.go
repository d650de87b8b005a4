// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package predicates_test

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/cockroachdb/optmd/pkg/sql/opt/norm"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optmd/pkg/sql/types"
	"github.com/stretchr/testify/require"
)

// TestPredicateSoundness builds random plans over small literal inputs,
// runs them, and checks that every pulled up predicate is TRUE on every
// output row, that no plan returns more rows than its bound, and that pushing the inferred predicates into the join inputs
// does not change the join result.
func TestPredicateSoundness(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	joinTypes := []plan.JoinType{
		plan.InnerJoin, plan.LeftJoin, plan.RightJoin, plan.FullJoin, plan.SemiJoin, plan.AntiJoin,
	}
	conditions := []string{
		"$0 = $2",
		"$0 = $2 AND $1 = $3",
		"$0 = $3 AND $1 > $2",
		"$0 = $2 AND $2 = $1",
	}

	for iter := 0; iter < 300; iter++ {
		q := newQuery()
		left := &plan.Filter{Input: randomValues(rng), Condition: randomPredicate(rng)}
		right := &plan.Filter{Input: randomValues(rng), Condition: randomPredicate(rng)}
		j := &plan.Join{
			Type:      joinTypes[rng.Intn(len(joinTypes))],
			Left:      left,
			Right:     right,
			Condition: scalar.MustParse(conditions[rng.Intn(len(conditions))]),
		}

		nodes := []plan.Node{
			j,
			&plan.SetOp{Type: plan.UnionOp, All: true, Children: []plan.Node{left, right}},
			&plan.SetOp{Type: plan.IntersectOp, Children: []plan.Node{left, right}},
			plan.NewProject(left, scalar.Col(1), scalar.MustParse("$0 + 1")),
		}
		if j.Type.ProjectsRight() {
			nodes = append(nodes, plan.NewProject(j, scalar.Col(3), scalar.Col(0)))
		}
		for _, n := range nodes {
			preds := pulledUp(t, q, n)
			rows := run(t, n)
			maxRows, ok, err := q.MaxRowCount(n)
			require.NoError(t, err)
			if ok {
				require.GreaterOrEqual(t, maxRows, float64(len(rows)), "iteration %d: %s", iter, n)
			}
			for _, row := range rows {
				for _, p := range preds.PulledUp {
					d, ok := norm.Eval(p, row)
					require.True(t, ok, "%s", p)
					require.Equal(t, true, d, "iteration %d: %s\n%s does not hold on %v", iter, n, p, row)
				}
			}
		}

		preds := pulledUp(t, q, j)
		want := formatRows(run(t, j))
		pushed := *j
		if len(preds.LeftInferred) > 0 {
			pushed.Left = &plan.Filter{Input: j.Left, Condition: scalar.And(preds.LeftInferred...)}
		}
		if len(preds.RightInferred) > 0 {
			pushed.Right = &plan.Filter{Input: j.Right, Condition: scalar.And(preds.RightInferred...)}
		}
		require.Equal(t, want, formatRows(run(t, &pushed)), "iteration %d: %s %s", iter, j.Type, preds)
	}
}

func randomValues(rng *rand.Rand) *plan.Values {
	v := &plan.Values{Cols: []plan.Column{
		{Name: "x", Type: types.Int, Nullable: true},
		{Name: "y", Type: types.Int, Nullable: true},
	}}
	for i, n := 0, rng.Intn(6); i < n; i++ {
		row := make([]scalar.Datum, 2)
		for c := range row {
			if rng.Intn(5) > 0 {
				row[c] = int64(rng.Intn(5))
			}
		}
		v.Tuples = append(v.Tuples, row)
	}
	return v
}

func randomPredicate(rng *rand.Rand) scalar.Expr {
	atom := func() scalar.Expr {
		col, c := scalar.Col(rng.Intn(2)), scalar.Int(int64(rng.Intn(5)))
		switch rng.Intn(5) {
		case 0:
			return scalar.Gt(col, c)
		case 1:
			return scalar.Lt(col, c)
		case 2:
			return scalar.Eq(col, c)
		case 3:
			return scalar.Ge(col, scalar.Col(rng.Intn(2)))
		}
		return scalar.IsNotNull(col)
	}
	switch rng.Intn(3) {
	case 0:
		return atom()
	case 1:
		return scalar.And(atom(), atom())
	}
	return scalar.Or(atom(), atom())
}

// run executes a plan made of values, filters, projections, joins and set
// operations.
func run(t *testing.T, n plan.Node) [][]scalar.Datum {
	t.Helper()
	switch n := n.(type) {
	case *plan.Values:
		return n.Tuples
	case *plan.Filter:
		var res [][]scalar.Datum
		for _, row := range run(t, n.Input) {
			if holds(t, n.Condition, row) {
				res = append(res, row)
			}
		}
		return res
	case *plan.Project:
		var res [][]scalar.Datum
		for _, row := range run(t, n.Input) {
			out := make([]scalar.Datum, len(n.Exprs))
			for i, e := range n.Exprs {
				d, ok := norm.Eval(e, row)
				require.True(t, ok)
				out[i] = d
			}
			res = append(res, out)
		}
		return res
	case *plan.Join:
		return runJoin(t, n)
	case *plan.SetOp:
		left, right := run(t, n.Children[0]), run(t, n.Children[1])
		switch n.Type {
		case plan.UnionOp:
			return append(append([][]scalar.Datum(nil), left...), right...)
		case plan.IntersectOp:
			keys := make(map[string]bool)
			for _, r := range right {
				keys[fmt.Sprint(r)] = true
			}
			var res [][]scalar.Datum
			for _, r := range left {
				if keys[fmt.Sprint(r)] {
					res = append(res, r)
				}
			}
			return res
		}
	}
	t.Fatalf("cannot run %s", n)
	return nil
}

func runJoin(t *testing.T, j *plan.Join) [][]scalar.Datum {
	left, right := run(t, j.Left), run(t, j.Right)
	leftNulls := make([]scalar.Datum, j.LeftWidth())
	rightNulls := make([]scalar.Datum, j.RightWidth())
	rightMatched := make([]bool, len(right))
	var res [][]scalar.Datum
	for _, l := range left {
		matched := false
		for k, r := range right {
			row := append(append([]scalar.Datum(nil), l...), r...)
			if !holds(t, j.Condition, row) {
				continue
			}
			matched, rightMatched[k] = true, true
			switch j.Type {
			case plan.SemiJoin, plan.AntiJoin:
			default:
				res = append(res, row)
			}
		}
		switch {
		case j.Type == plan.SemiJoin && matched:
			res = append(res, l)
		case j.Type == plan.AntiJoin && !matched:
			res = append(res, l)
		case (j.Type == plan.LeftJoin || j.Type == plan.FullJoin) && !matched:
			res = append(res, append(append([]scalar.Datum(nil), l...), rightNulls...))
		}
	}
	if j.Type == plan.RightJoin || j.Type == plan.FullJoin {
		for k, r := range right {
			if !rightMatched[k] {
				res = append(res, append(append([]scalar.Datum(nil), leftNulls...), r...))
			}
		}
	}
	return res
}

func holds(t *testing.T, e scalar.Expr, row []scalar.Datum) bool {
	d, ok := norm.Eval(e, row)
	require.True(t, ok, "%s", e)
	return d == true
}

func formatRows(rows [][]scalar.Datum) []string {
	res := []string{}
	for _, r := range rows {
		res = append(res, fmt.Sprint(r))
	}
	sort.Strings(res)
	return res
}
