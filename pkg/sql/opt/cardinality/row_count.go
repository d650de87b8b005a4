// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cardinality

import (
	"math"

	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
)

func registerRowCount(t *md.Table) {
	t.Register(md.RowCount, plan.RelKind, md.Func0(selfRowCount)).
		Register(md.RowCount, plan.FilterKind, md.Func0(filterRowCount)).
		Register(md.RowCount, plan.ProjectKind, md.Func0(inputRowCount)).
		Register(md.RowCount, plan.ConverterTrait, md.Func0(inputRowCount)).
		Register(md.RowCount, plan.SortKind, md.Func0(sortRowCount)).
		Register(md.RowCount, plan.AggregateKind, md.Func0(aggregateRowCount)).
		Register(md.RowCount, plan.JoinKind, md.Func0(joinRowCount)).
		Register(md.RowCount, plan.UnionKind, md.Func0(unionRowCount)).
		Register(md.RowCount, plan.IntersectKind, md.Func0(intersectRowCount)).
		Register(md.RowCount, plan.MinusKind, md.Func0(minusRowCount)).
		Register(md.RowCount, plan.SubsetKind, md.Func0(subsetRowCount))
}

// selfRowCount is the catch-all: the node's own estimate, if it has one.
func selfRowCount(_ *md.Query, n plan.Node) (float64, bool, error) {
	if e, ok := n.(plan.SelfEstimator); ok {
		rows, ok := e.EstimateRowCount()
		return rows, ok, nil
	}
	return 0, false, nil
}

func inputRowCount(q *md.Query, n plan.Node) (float64, bool, error) {
	return q.RowCount(n.Inputs()[0])
}

func filterRowCount(q *md.Query, f *plan.Filter) (float64, bool, error) {
	rows, ok, err := q.RowCount(f.Input)
	if !ok || err != nil {
		return 0, false, err
	}
	sel, ok, err := q.Selectivity(f.Input, f.Condition)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		sel = GuessSelectivity(f.Condition)
	}
	return rows * sel, true, nil
}

// sortRowCount applies a constant offset and fetch. With a dynamic offset or
// fetch the number of rows skipped or kept is not known, so the count before
// the limit is returned.
func sortRowCount(q *md.Query, s *plan.Sort) (float64, bool, error) {
	rows, ok, err := q.RowCount(s.Input)
	if !ok || err != nil {
		return 0, false, err
	}
	offset, offsetOK := literalLimit(s.Offset)
	fetch, fetchOK := literalLimit(s.Fetch)
	if !offsetOK || !fetchOK {
		return rows, true, nil
	}
	rows = math.Max(rows-offset, 0)
	if s.Fetch != nil {
		rows = math.Min(rows, fetch)
	}
	return rows, true, nil
}

// aggregateRowCount returns 1 for a scalar aggregation, which produces a row
// even for an empty input. Otherwise it is the number of distinct group key
// values, for each grouping set.
func aggregateRowCount(q *md.Query, a *plan.Aggregate) (float64, bool, error) {
	if a.GroupKey.Empty() {
		return 1, true, nil
	}
	groups, ok, err := q.DistinctRowCount(a.Input, a.GroupKey, nil)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		rows, ok, err := q.RowCount(a.Input)
		if !ok || err != nil {
			return 0, false, err
		}
		groups = rows * unknownDistinctRatio
	}
	return groups * float64(a.NumGroupingSets()), true, nil
}

func joinRowCount(q *md.Query, j *plan.Join) (float64, bool, error) {
	left, ok, err := q.RowCount(j.Left)
	if !ok || err != nil {
		return 0, false, err
	}
	if !j.Type.ProjectsRight() {
		return left * GuessSelectivity(j.Condition), true, nil
	}
	right, ok, err := q.RowCount(j.Right)
	if !ok || err != nil {
		return 0, false, err
	}
	// Estimates below 1 are rounded up, which would make the product
	// overestimate joins with an empty or single-row input. Use the bound
	// when it is that small.
	if left <= 1 || right <= 1 {
		maxRows, ok, err := q.MaxRowCount(j)
		if err != nil {
			return 0, false, err
		}
		if ok && maxRows <= 1 {
			return maxRows, true, nil
		}
	}
	sel, ok, err := q.Selectivity(j, j.Condition)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		sel = GuessSelectivity(j.Condition)
	}
	rows := left * right * sel
	// Outer joins return every row of their preserved sides.
	switch j.Type {
	case plan.LeftJoin:
		rows = math.Max(rows, left)
	case plan.RightJoin:
		rows = math.Max(rows, right)
	case plan.FullJoin:
		rows = math.Max(rows, math.Max(left, right))
	}
	return rows, true, nil
}

func unionRowCount(q *md.Query, s *plan.SetOp) (float64, bool, error) {
	var sum float64
	for _, c := range s.Children {
		rows, ok, err := q.RowCount(c)
		if !ok || err != nil {
			return 0, false, err
		}
		sum += rows
	}
	return sum, true, nil
}

func intersectRowCount(q *md.Query, s *plan.SetOp) (float64, bool, error) {
	res := math.Inf(1)
	for _, c := range s.Children {
		rows, ok, err := q.RowCount(c)
		if !ok || err != nil {
			return 0, false, err
		}
		res = math.Min(res, rows)
	}
	return res, true, nil
}

// minusRowCount assumes that each subtracted input removes a fixed fraction
// of its rows from the first input.
func minusRowCount(q *md.Query, s *plan.SetOp) (float64, bool, error) {
	rows, ok, err := q.RowCount(s.Children[0])
	if !ok || err != nil {
		return 0, false, err
	}
	for _, c := range s.Children[1:] {
		other, ok, err := q.RowCount(c)
		if !ok || err != nil {
			return 0, false, err
		}
		rows -= minusFraction * other
	}
	return math.Max(rows, 0), true, nil
}

// subsetRowCount returns the smallest estimate of the members. Members that
// depend on the subset itself are skipped.
func subsetRowCount(q *md.Query, s *plan.Subset) (float64, bool, error) {
	rows, ok, err := memberLoop(s, q.RowCount, math.Min)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return unknownSubsetRowCount, true, nil
	}
	return rows, true, nil
}
