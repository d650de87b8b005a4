// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cardinality

import (
	"math"

	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
)

// distinctHandler answers 1 for an empty group key, which every non-empty
// input has exactly one value of.
func distinctHandler[N plan.Node](
	fn func(q *md.Query, n N, groupKey opt.ColSet, pred scalar.Expr) (float64, bool, error),
) md.Handler {
	return md.Func2(func(q *md.Query, n N, groupKey opt.ColSet, pred scalar.Expr) (float64, bool, error) {
		if groupKey.Empty() {
			return 1, true, nil
		}
		return fn(q, n, groupKey, pred)
	})
}

func registerDistinctRowCount(t *md.Table) {
	t.Register(md.DistinctRowCount, plan.RelKind, distinctHandler(uniqueDistinctRowCount)).
		Register(md.DistinctRowCount, plan.ScanKind, distinctHandler(scanDistinctRowCount)).
		Register(md.DistinctRowCount, plan.ValuesKind, distinctHandler(valuesDistinctRowCount)).
		Register(md.DistinctRowCount, plan.FilterKind, distinctHandler(filterDistinctRowCount)).
		Register(md.DistinctRowCount, plan.ProjectKind, distinctHandler(projectDistinctRowCount)).
		Register(md.DistinctRowCount, plan.AggregateKind, distinctHandler(aggregateDistinctRowCount)).
		Register(md.DistinctRowCount, plan.SortKind, distinctHandler(inputDistinctRowCount)).
		Register(md.DistinctRowCount, plan.ConverterTrait, distinctHandler(inputDistinctRowCount)).
		Register(md.DistinctRowCount, plan.JoinKind, distinctHandler(joinDistinctRowCount)).
		Register(md.DistinctRowCount, plan.UnionKind, distinctHandler(unionDistinctRowCount)).
		Register(md.DistinctRowCount, plan.SubsetKind, distinctHandler(subsetDistinctRowCount))
}

// uniqueDistinctRowCount is the catch-all: if the group key is unique, every
// selected row has its own value.
func uniqueDistinctRowCount(
	q *md.Query, n plan.Node, groupKey opt.ColSet, pred scalar.Expr,
) (float64, bool, error) {
	unique, ok, err := q.ColumnUniqueness(n, groupKey, false)
	if !ok || !unique || err != nil {
		return 0, false, err
	}
	return selectedRows(q, n, pred)
}

// selectedRows returns the estimated number of rows of n that satisfy pred.
func selectedRows(q *md.Query, n plan.Node, pred scalar.Expr) (float64, bool, error) {
	rows, ok, err := q.RowCount(n)
	if !ok || err != nil {
		return 0, false, err
	}
	sel, ok, err := q.Selectivity(n, pred)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		sel = GuessSelectivity(pred)
	}
	return rows * sel, true, nil
}

// scanDistinctRowCount uses the table keys and per-column distinct counts.
func scanDistinctRowCount(
	q *md.Query, s *plan.Scan, groupKey opt.ColSet, pred scalar.Expr,
) (float64, bool, error) {
	selected, ok, err := selectedRows(q, s, pred)
	if !ok || err != nil {
		return 0, false, err
	}
	if s.Table.IsKey(groupKey) {
		return selected, true, nil
	}
	domain, ok := tableDomain(s.Table, groupKey)
	if !ok {
		return uniqueDistinctRowCount(q, s, groupKey, pred)
	}
	return NumDistinctVals(domain, selected), true, nil
}

// tableDomain returns the number of possible values of the columns: the
// product of their distinct counts, capped at the row count.
func tableDomain(t *plan.Table, cols opt.ColSet) (float64, bool) {
	domain, known := 1.0, true
	cols.ForEach(func(c int) {
		d, ok := t.Stats.DistinctCounts[c]
		if !ok {
			known = false
			return
		}
		domain *= d
	})
	if !known {
		return 0, false
	}
	if t.Stats.HasRowCount {
		domain = math.Min(domain, t.Stats.RowCount)
	}
	return domain, true
}

// valuesDistinctRowCount does not look at the literals: half of the rows are
// assumed to be duplicates and the predicate is guessed. The exact count is
// the population size.
func valuesDistinctRowCount(
	_ *md.Query, v *plan.Values, _ opt.ColSet, pred scalar.Expr,
) (float64, bool, error) {
	rows := float64(len(v.Tuples)) / 2
	return NumDistinctVals(rows, rows*GuessSelectivity(pred)), true, nil
}

func filterDistinctRowCount(
	q *md.Query, f *plan.Filter, groupKey opt.ColSet, pred scalar.Expr,
) (float64, bool, error) {
	return q.DistinctRowCount(f.Input, groupKey, UnionPreds(pred, f.Condition))
}

func inputDistinctRowCount(
	q *md.Query, n plan.Node, groupKey opt.ColSet, pred scalar.Expr,
) (float64, bool, error) {
	return q.DistinctRowCount(n.Inputs()[0], groupKey, pred)
}

// projectDistinctRowCount splits the group key into passed-through columns,
// which are counted on the input, and computed columns, whose cardinalities
// multiply the result.
func projectDistinctRowCount(
	q *md.Query, p *plan.Project, groupKey opt.ColSet, pred scalar.Expr,
) (float64, bool, error) {
	baseCols, projCols := splitProjectCols(p, groupKey)
	pushed, rest := splitPushable(pred, p.Source)
	distinct, ok, err := q.DistinctRowCount(p.Input, baseCols, pushed)
	if !ok || err != nil {
		return 0, false, err
	}
	if rest != nil {
		distinct *= GuessSelectivity(rest)
	}
	if projCols.Empty() {
		return distinct, true, nil
	}
	return projectCardinality(q, p, projCols, distinct)
}

// projectCardinality multiplies base by the cardinality of each computed
// column and caps the result by the number of rows of the projection.
func projectCardinality(
	q *md.Query, p *plan.Project, projCols opt.ColSet, base float64,
) (float64, bool, error) {
	for c, ok := projCols.Next(0); ok; c, ok = projCols.Next(c + 1) {
		card, ok, err := exprCardinality(q, p.Input, p.Exprs[c])
		if !ok || err != nil {
			return 0, false, err
		}
		base *= card
	}
	rows, ok, err := q.RowCount(p)
	if !ok || err != nil {
		return 0, false, err
	}
	return NumDistinctVals(base, rows), true, nil
}

func splitProjectCols(p *plan.Project, groupKey opt.ColSet) (baseCols, projCols opt.ColSet) {
	groupKey.ForEach(func(i int) {
		if src, ok := p.Source(i); ok {
			baseCols.Add(src)
		} else {
			projCols.Add(i)
		}
	})
	return baseCols, projCols
}

// exprCardinality estimates the number of distinct values of a projected
// expression: constants have one, a column has its distinct count, and an
// expression has at most the product of its operands'.
func exprCardinality(q *md.Query, input plan.Node, e scalar.Expr) (float64, bool, error) {
	switch t := e.(type) {
	case *scalar.Const, *scalar.Placeholder:
		return 1, true, nil
	case *scalar.ColumnRef:
		return q.DistinctRowCount(input, opt.MakeColSet(t.Index), nil)
	}
	card := 1.0
	for i, n := 0, e.ChildCount(); i < n; i++ {
		c, ok, err := exprCardinality(q, input, e.Child(i))
		if !ok || err != nil {
			return 0, false, err
		}
		card *= c
	}
	return card, true, nil
}

// aggregateDistinctRowCount maps group key columns to their input columns and
// aggregate columns to their arguments.
func aggregateDistinctRowCount(
	q *md.Query, a *plan.Aggregate, groupKey opt.ColSet, pred scalar.Expr,
) (float64, bool, error) {
	childKey := aggregateChildKey(a, groupKey)
	pushed, rest := splitPushable(pred, groupKeySource(a))
	distinct, ok, err := q.DistinctRowCount(a.Input, childKey, pushed)
	if !ok || err != nil {
		return 0, false, err
	}
	return distinct * GuessSelectivity(rest), true, nil
}

func aggregateChildKey(a *plan.Aggregate, groupKey opt.ColSet) opt.ColSet {
	keys := a.GroupKey.Ordered()
	var childKey opt.ColSet
	groupKey.ForEach(func(i int) {
		if i < len(keys) {
			childKey.Add(keys[i])
			return
		}
		if j := i - len(keys); j < len(a.Aggs) {
			for _, arg := range a.Aggs[j].Args {
				childKey.Add(arg)
			}
		}
	})
	return childKey
}

// joinDistinctRowCount multiplies the distinct counts of the key columns of
// each side. Predicate conjuncts that only reference one side are pushed to
// it unless that side is null-extended.
func joinDistinctRowCount(
	q *md.Query, j *plan.Join, groupKey opt.ColSet, pred scalar.Expr,
) (float64, bool, error) {
	if !j.Type.ProjectsRight() {
		return q.DistinctRowCount(j.Left, groupKey, pred)
	}
	leftKey, rightKey := splitJoinCols(j, groupKey)
	leftPred, rightPred := splitJoinPred(j, pred)
	left, ok, err := q.DistinctRowCount(j.Left, leftKey, leftPred)
	if !ok || err != nil {
		return 0, false, err
	}
	right, ok, err := q.DistinctRowCount(j.Right, rightKey, rightPred)
	if !ok || err != nil {
		return 0, false, err
	}
	rows, ok, err := q.RowCount(j)
	if !ok || err != nil {
		return 0, false, err
	}
	return NumDistinctVals(left*right, rows), true, nil
}

// splitJoinCols splits join output columns into left columns and right
// columns, the latter numbered as right input columns.
func splitJoinCols(j *plan.Join, cols opt.ColSet) (left, right opt.ColSet) {
	n := j.LeftWidth()
	cols.ForEach(func(c int) {
		if c < n {
			left.Add(c)
		} else {
			right.Add(c - n)
		}
	})
	return left, right
}

func splitJoinPred(j *plan.Join, pred scalar.Expr) (left, right scalar.Expr) {
	n := j.LeftWidth()
	leftCols := opt.MakeColSetRange(0, n)
	var leftList, rightList []scalar.Expr
	for _, c := range scalar.Conjuncts(pred) {
		refs := scalar.InputRefs(c)
		switch {
		case refs.SubsetOf(leftCols) && !j.Type.GeneratesNullsOnLeft():
			leftList = append(leftList, c)
		case !refs.Intersects(leftCols) && !j.Type.GeneratesNullsOnRight():
			rightList = append(rightList, scalar.Shift(c, -n))
		}
	}
	return conjunction(leftList), conjunction(rightList)
}

func unionDistinctRowCount(
	q *md.Query, s *plan.SetOp, groupKey opt.ColSet, pred scalar.Expr,
) (float64, bool, error) {
	var sum float64
	for _, c := range s.Children {
		d, ok, err := q.DistinctRowCount(c, groupKey, pred)
		if !ok || err != nil {
			return 0, false, err
		}
		sum += d
	}
	return sum, true, nil
}

func subsetDistinctRowCount(
	q *md.Query, s *plan.Subset, groupKey opt.ColSet, pred scalar.Expr,
) (float64, bool, error) {
	return memberLoop(s, func(m plan.Node) (float64, bool, error) {
		return q.DistinctRowCount(m, groupKey, pred)
	}, math.Min)
}

func registerPopulationSize(t *md.Table) {
	t.Register(md.PopulationSize, plan.RelKind, populationHandler(uniquePopulationSize)).
		Register(md.PopulationSize, plan.ScanKind, populationHandler(scanPopulationSize)).
		Register(md.PopulationSize, plan.ValuesKind, populationHandler(valuesPopulationSize)).
		Register(md.PopulationSize, plan.FilterKind, populationHandler(inputPopulationSize)).
		Register(md.PopulationSize, plan.SortKind, populationHandler(inputPopulationSize)).
		Register(md.PopulationSize, plan.ConverterTrait, populationHandler(inputPopulationSize)).
		Register(md.PopulationSize, plan.ProjectKind, populationHandler(projectPopulationSize)).
		Register(md.PopulationSize, plan.AggregateKind, populationHandler(aggregatePopulationSize)).
		Register(md.PopulationSize, plan.JoinKind, populationHandler(joinPopulationSize)).
		Register(md.PopulationSize, plan.UnionKind, populationHandler(unionPopulationSize)).
		Register(md.PopulationSize, plan.SubsetKind, populationHandler(subsetPopulationSize))
}

func populationHandler[N plan.Node](
	fn func(q *md.Query, n N, groupKey opt.ColSet) (float64, bool, error),
) md.Handler {
	return md.Func1(func(q *md.Query, n N, groupKey opt.ColSet) (float64, bool, error) {
		if groupKey.Empty() {
			return 1, true, nil
		}
		return fn(q, n, groupKey)
	})
}

func uniquePopulationSize(q *md.Query, n plan.Node, groupKey opt.ColSet) (float64, bool, error) {
	unique, ok, err := q.ColumnUniqueness(n, groupKey, false)
	if !ok || !unique || err != nil {
		return 0, false, err
	}
	return q.RowCount(n)
}

func scanPopulationSize(q *md.Query, s *plan.Scan, groupKey opt.ColSet) (float64, bool, error) {
	return q.DistinctRowCount(s, groupKey, nil)
}

func valuesPopulationSize(_ *md.Query, v *plan.Values, groupKey opt.ColSet) (float64, bool, error) {
	n, err := v.CountDistinct(groupKey, nil)
	if err != nil {
		return 0, false, err
	}
	return float64(n), true, nil
}

func inputPopulationSize(q *md.Query, n plan.Node, groupKey opt.ColSet) (float64, bool, error) {
	return q.PopulationSize(n.Inputs()[0], groupKey)
}

func projectPopulationSize(q *md.Query, p *plan.Project, groupKey opt.ColSet) (float64, bool, error) {
	baseCols, projCols := splitProjectCols(p, groupKey)
	pop, ok, err := q.PopulationSize(p.Input, baseCols)
	if !ok || err != nil {
		return 0, false, err
	}
	if projCols.Empty() {
		return pop, true, nil
	}
	return projectCardinality(q, p, projCols, pop)
}

func aggregatePopulationSize(
	q *md.Query, a *plan.Aggregate, groupKey opt.ColSet,
) (float64, bool, error) {
	return q.PopulationSize(a.Input, aggregateChildKey(a, groupKey))
}

func joinPopulationSize(q *md.Query, j *plan.Join, groupKey opt.ColSet) (float64, bool, error) {
	if !j.Type.ProjectsRight() {
		return q.PopulationSize(j.Left, groupKey)
	}
	leftKey, rightKey := splitJoinCols(j, groupKey)
	left, ok, err := q.PopulationSize(j.Left, leftKey)
	if !ok || err != nil {
		return 0, false, err
	}
	right, ok, err := q.PopulationSize(j.Right, rightKey)
	if !ok || err != nil {
		return 0, false, err
	}
	rows, ok, err := q.RowCount(j)
	if !ok || err != nil {
		return 0, false, err
	}
	return NumDistinctVals(left*right, rows), true, nil
}

func unionPopulationSize(q *md.Query, s *plan.SetOp, groupKey opt.ColSet) (float64, bool, error) {
	var sum float64
	for _, c := range s.Children {
		p, ok, err := q.PopulationSize(c, groupKey)
		if !ok || err != nil {
			return 0, false, err
		}
		sum += p
	}
	return sum, true, nil
}

func subsetPopulationSize(q *md.Query, s *plan.Subset, groupKey opt.ColSet) (float64, bool, error) {
	return memberLoop(s, func(m plan.Node) (float64, bool, error) {
		return q.PopulationSize(m, groupKey)
	}, math.Min)
}
