// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cardinality

import (
	"math"

	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
)

func registerBounds(t *md.Table) {
	t.Register(md.MaxRowCount, plan.RelKind, md.Func0(unknownBound)).
		Register(md.MaxRowCount, plan.ScanKind, md.Func0(scanMaxRowCount)).
		Register(md.MaxRowCount, plan.ValuesKind, md.Func0(valuesRowCount)).
		Register(md.MaxRowCount, plan.FilterKind, md.Func0(filterMaxRowCount)).
		Register(md.MaxRowCount, plan.ProjectKind, md.Func0(inputMaxRowCount)).
		Register(md.MaxRowCount, plan.ConverterTrait, md.Func0(inputMaxRowCount)).
		Register(md.MaxRowCount, plan.SortKind, md.Func0(sortMaxRowCount)).
		Register(md.MaxRowCount, plan.AggregateKind, md.Func0(aggregateMaxRowCount)).
		Register(md.MaxRowCount, plan.JoinKind, md.Func0(joinMaxRowCount)).
		Register(md.MaxRowCount, plan.UnionKind, md.Func0(unionMaxRowCount)).
		Register(md.MaxRowCount, plan.IntersectKind, md.Func0(intersectMaxRowCount)).
		Register(md.MaxRowCount, plan.MinusKind, md.Func0(minusMaxRowCount)).
		Register(md.MaxRowCount, plan.SubsetKind, md.Func0(subsetMaxRowCount))

	t.Register(md.MinRowCount, plan.RelKind, md.Func0(unknownBound)).
		Register(md.MinRowCount, plan.ScanKind, md.Func0(zeroRowCount)).
		Register(md.MinRowCount, plan.ValuesKind, md.Func0(valuesRowCount)).
		Register(md.MinRowCount, plan.FilterKind, md.Func0(filterMinRowCount)).
		Register(md.MinRowCount, plan.ProjectKind, md.Func0(inputMinRowCount)).
		Register(md.MinRowCount, plan.ConverterTrait, md.Func0(inputMinRowCount)).
		Register(md.MinRowCount, plan.SortKind, md.Func0(sortMinRowCount)).
		Register(md.MinRowCount, plan.AggregateKind, md.Func0(aggregateMinRowCount)).
		Register(md.MinRowCount, plan.JoinKind, md.Func0(joinMinRowCount)).
		Register(md.MinRowCount, plan.UnionKind, md.Func0(unionMinRowCount)).
		Register(md.MinRowCount, plan.IntersectKind, md.Func0(zeroRowCount)).
		Register(md.MinRowCount, plan.MinusKind, md.Func0(zeroRowCount)).
		Register(md.MinRowCount, plan.SubsetKind, md.Func0(subsetMinRowCount))
}

func unknownBound(*md.Query, plan.Node) (float64, bool, error) { return 0, false, nil }

func zeroRowCount(*md.Query, plan.Node) (float64, bool, error) { return 0, true, nil }

// scanMaxRowCount reports that a table scan is unbounded.
func scanMaxRowCount(*md.Query, *plan.Scan) (float64, bool, error) {
	return math.Inf(1), true, nil
}

func valuesRowCount(_ *md.Query, v *plan.Values) (float64, bool, error) {
	return float64(len(v.Tuples)), true, nil
}

func inputMaxRowCount(q *md.Query, n plan.Node) (float64, bool, error) {
	return q.MaxRowCount(n.Inputs()[0])
}

func filterMaxRowCount(q *md.Query, f *plan.Filter) (float64, bool, error) {
	if scalar.IsAlwaysFalse(f.Condition) {
		return 0, true, nil
	}
	return q.MaxRowCount(f.Input)
}

// sortMaxRowCount bounds the input by a constant fetch, even when nothing is
// known about the input.
func sortMaxRowCount(q *md.Query, s *plan.Sort) (float64, bool, error) {
	rows, known, err := q.MaxRowCount(s.Input)
	if err != nil {
		return 0, false, err
	}
	if !known {
		rows = math.Inf(1)
	}
	if offset, ok := literalLimit(s.Offset); ok {
		rows = math.Max(rows-offset, 0)
	}
	if fetch, ok := literalLimit(s.Fetch); ok && s.Fetch != nil {
		rows = math.Min(rows, fetch)
	}
	if math.IsInf(rows, 1) && !known {
		return 0, false, nil
	}
	return rows, true, nil
}

func aggregateMaxRowCount(q *md.Query, a *plan.Aggregate) (float64, bool, error) {
	if a.GroupKey.Empty() {
		return 1, true, nil
	}
	rows, ok, err := q.MaxRowCount(a.Input)
	if !ok || err != nil {
		return 0, false, err
	}
	return rows * float64(a.NumGroupingSets()), true, nil
}

// joinMaxRowCount is the product of the input bounds. An outer join returns
// at least one row for each preserved row even if the other side is empty.
func joinMaxRowCount(q *md.Query, j *plan.Join) (float64, bool, error) {
	left, ok, err := q.MaxRowCount(j.Left)
	if !ok || err != nil {
		return 0, false, err
	}
	if !j.Type.ProjectsRight() {
		return left, true, nil
	}
	right, ok, err := q.MaxRowCount(j.Right)
	if !ok || err != nil {
		return 0, false, err
	}
	if j.Type == plan.FullJoin {
		// Unmatched rows of both sides are returned.
		if left == 0 || right == 0 {
			return left + right, true, nil
		}
		return math.Max(left*right, left+right), true, nil
	}
	// A row of the preserved side survives an empty input on the other side.
	if left < 1 && j.Type.GeneratesNullsOnLeft() {
		left = 1
	}
	if right < 1 && j.Type.GeneratesNullsOnRight() {
		right = 1
	}
	if left == 0 || right == 0 {
		// Avoid 0 * Inf.
		return 0, true, nil
	}
	return left * right, true, nil
}

func unionMaxRowCount(q *md.Query, s *plan.SetOp) (float64, bool, error) {
	var sum float64
	for _, c := range s.Children {
		rows, ok, err := q.MaxRowCount(c)
		if !ok || err != nil {
			return 0, false, err
		}
		sum += rows
	}
	return sum, true, nil
}

// intersectMaxRowCount is bounded by any input, so unknown inputs are
// ignored.
func intersectMaxRowCount(q *md.Query, s *plan.SetOp) (float64, bool, error) {
	res, found := math.Inf(1), false
	for _, c := range s.Children {
		rows, ok, err := q.MaxRowCount(c)
		if err != nil {
			return 0, false, err
		}
		if ok {
			res, found = math.Min(res, rows), true
		}
	}
	return res, found, nil
}

func minusMaxRowCount(q *md.Query, s *plan.SetOp) (float64, bool, error) {
	return q.MaxRowCount(s.Children[0])
}

func subsetMaxRowCount(q *md.Query, s *plan.Subset) (float64, bool, error) {
	return memberLoop(s, q.MaxRowCount, math.Min)
}

func inputMinRowCount(q *md.Query, n plan.Node) (float64, bool, error) {
	return q.MinRowCount(n.Inputs()[0])
}

func filterMinRowCount(q *md.Query, f *plan.Filter) (float64, bool, error) {
	if scalar.IsAlwaysTrue(f.Condition) {
		return q.MinRowCount(f.Input)
	}
	return 0, true, nil
}

func sortMinRowCount(q *md.Query, s *plan.Sort) (float64, bool, error) {
	rows, ok, err := q.MinRowCount(s.Input)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, true, nil
	}
	offset, offsetOK := literalLimit(s.Offset)
	fetch, fetchOK := literalLimit(s.Fetch)
	if !offsetOK || !fetchOK {
		// A dynamic offset may skip every row and a dynamic fetch may be 0.
		return 0, true, nil
	}
	rows = math.Max(rows-offset, 0)
	if s.Fetch != nil {
		rows = math.Min(rows, fetch)
	}
	return rows, true, nil
}

func aggregateMinRowCount(q *md.Query, a *plan.Aggregate) (float64, bool, error) {
	if a.GroupKey.Empty() {
		return 1, true, nil
	}
	rows, ok, err := q.MinRowCount(a.Input)
	if err != nil {
		return 0, false, err
	}
	if ok && rows >= 1 {
		return float64(a.NumGroupingSets()), true, nil
	}
	return 0, true, nil
}

// joinMinRowCount keeps the rows of the preserved sides of outer joins.
func joinMinRowCount(q *md.Query, j *plan.Join) (float64, bool, error) {
	side := func(n plan.Node) (float64, error) {
		rows, ok, err := q.MinRowCount(n)
		if !ok || err != nil {
			return 0, err
		}
		return rows, nil
	}
	var left, right float64
	var err error
	if j.Type.GeneratesNullsOnRight() {
		if left, err = side(j.Left); err != nil {
			return 0, false, err
		}
	}
	if j.Type.GeneratesNullsOnLeft() {
		if right, err = side(j.Right); err != nil {
			return 0, false, err
		}
	}
	return math.Max(left, right), true, nil
}

func unionMinRowCount(q *md.Query, s *plan.SetOp) (float64, bool, error) {
	var sum, most float64
	for _, c := range s.Children {
		rows, ok, err := q.MinRowCount(c)
		if err != nil {
			return 0, false, err
		}
		if ok {
			sum += rows
			most = math.Max(most, rows)
		}
	}
	if s.All {
		return sum, true, nil
	}
	// Without ALL, the rows of one input may all be the same.
	return math.Min(most, 1), true, nil
}

func subsetMinRowCount(q *md.Query, s *plan.Subset) (float64, bool, error) {
	return memberLoop(s, q.MinRowCount, math.Max)
}
