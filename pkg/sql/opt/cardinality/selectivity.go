// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cardinality

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/norm"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
)

func registerSelectivity(t *md.Table) {
	t.Register(md.Selectivity, plan.RelKind, md.Func1(guessSelectivity)).
		Register(md.Selectivity, plan.ScanKind, md.Func1(scanSelectivity)).
		Register(md.Selectivity, plan.ValuesKind, md.Func1(valuesSelectivity)).
		Register(md.Selectivity, plan.FilterKind, md.Func1(filterSelectivity)).
		Register(md.Selectivity, plan.ProjectKind, md.Func1(projectSelectivity)).
		Register(md.Selectivity, plan.AggregateKind, md.Func1(aggregateSelectivity)).
		Register(md.Selectivity, plan.SortKind, md.Func1(inputSelectivity)).
		Register(md.Selectivity, plan.ConverterTrait, md.Func1(inputSelectivity)).
		Register(md.Selectivity, plan.UnionKind, md.Func1(unionSelectivity)).
		Register(md.Selectivity, plan.SubsetKind, md.Func1(subsetSelectivity))
}

func guessSelectivity(_ *md.Query, _ plan.Node, pred scalar.Expr) (float64, bool, error) {
	return GuessSelectivity(pred), true, nil
}

// scanSelectivity uses the distinct count of a column, when known, for
// equalities between the column and a constant.
func scanSelectivity(_ *md.Query, s *plan.Scan, pred scalar.Expr) (float64, bool, error) {
	sel := 1.0
	for _, c := range scalar.Conjuncts(pred) {
		if col, ok := constEquality(c); ok {
			if d, ok := s.Table.Stats.DistinctCounts[col]; ok && d >= 1 {
				sel *= 1 / d
				continue
			}
		}
		sel *= GuessSelectivity(c)
	}
	return sel, true, nil
}

// constEquality returns the column of an equality between a column and a
// constant.
func constEquality(e scalar.Expr) (int, bool) {
	c, ok := e.(*scalar.Call)
	if !ok || c.Operator != scalar.EqOp {
		return 0, false
	}
	if ref, ok := c.Args[0].(*scalar.ColumnRef); ok && scalar.IsConstant(c.Args[1]) {
		return ref.Index, true
	}
	if ref, ok := c.Args[1].(*scalar.ColumnRef); ok && scalar.IsConstant(c.Args[0]) {
		return ref.Index, true
	}
	return 0, false
}

// valuesSelectivity evaluates the predicate on the tuples.
func valuesSelectivity(_ *md.Query, v *plan.Values, pred scalar.Expr) (float64, bool, error) {
	if pred == nil || len(v.Tuples) == 0 {
		return GuessSelectivity(pred), true, nil
	}
	var selected int
	for _, row := range v.Tuples {
		d, ok := norm.Eval(pred, row)
		if !ok {
			return GuessSelectivity(pred), true, nil
		}
		if d == true {
			selected++
		}
	}
	return float64(selected) / float64(len(v.Tuples)), true, nil
}

// filterSelectivity does not count the filter's own condition twice.
func filterSelectivity(q *md.Query, f *plan.Filter, pred scalar.Expr) (float64, bool, error) {
	return q.Selectivity(f.Input, MinusPreds(pred, f.Condition))
}

func inputSelectivity(q *md.Query, n plan.Node, pred scalar.Expr) (float64, bool, error) {
	return q.Selectivity(n.Inputs()[0], pred)
}

// projectSelectivity pushes the conjuncts over passed-through columns down
// and guesses the others.
func projectSelectivity(q *md.Query, p *plan.Project, pred scalar.Expr) (float64, bool, error) {
	pushed, rest := splitPushable(pred, p.Source)
	sel, ok, err := q.Selectivity(p.Input, pushed)
	if !ok || err != nil {
		return 0, false, err
	}
	return sel * GuessSelectivity(rest), true, nil
}

// aggregateSelectivity pushes the conjuncts over group key columns down.
func aggregateSelectivity(q *md.Query, a *plan.Aggregate, pred scalar.Expr) (float64, bool, error) {
	pushed, rest := splitPushable(pred, groupKeySource(a))
	sel, ok, err := q.Selectivity(a.Input, pushed)
	if !ok || err != nil {
		return 0, false, err
	}
	return sel * GuessSelectivity(rest), true, nil
}

// groupKeySource maps the group key output columns of an aggregate to the
// input columns they come from.
func groupKeySource(a *plan.Aggregate) func(int) (int, bool) {
	keys := a.GroupKey.Ordered()
	return func(i int) (int, bool) {
		if i < len(keys) {
			return keys[i], true
		}
		return 0, false
	}
}

// unionSelectivity averages the selectivity of the inputs, weighted by their
// row counts.
func unionSelectivity(q *md.Query, s *plan.SetOp, pred scalar.Expr) (float64, bool, error) {
	var rows, selected float64
	for _, c := range s.Children {
		r, ok, err := q.RowCount(c)
		if !ok || err != nil {
			return GuessSelectivity(pred), err == nil, err
		}
		sel, ok, err := q.Selectivity(c, pred)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			sel = GuessSelectivity(pred)
		}
		rows += r
		selected += r * sel
	}
	if rows == 0 {
		return GuessSelectivity(pred), true, nil
	}
	return selected / rows, true, nil
}

func subsetSelectivity(q *md.Query, s *plan.Subset, pred scalar.Expr) (float64, bool, error) {
	rep := s.Representative()
	if rep == nil {
		return GuessSelectivity(pred), true, nil
	}
	sel, ok, err := q.Selectivity(rep, pred)
	if errors.Is(err, md.ErrCyclicMetadata) || (err == nil && !ok) {
		return GuessSelectivity(pred), true, nil
	}
	return sel, ok, err
}
