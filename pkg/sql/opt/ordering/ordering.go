// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package ordering derives the collations of a node: the orderings its
// output rows are known to satisfy.
package ordering

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/util/buildutil"
)

// Provider answers Collations.
var Provider = md.NewTable("ordering")

func init() {
	Provider.
		Register(md.Collations, plan.RelKind, md.Func0(noCollations)).
		Register(md.Collations, plan.ScanKind, md.Func0(scanCollations)).
		Register(md.Collations, plan.ValuesKind, md.Func0(valuesCollations)).
		Register(md.Collations, plan.FilterKind, md.Func0(inputCollations)).
		Register(md.Collations, plan.ConvertKind, md.Func0(inputCollations)).
		Register(md.Collations, plan.ProjectKind, md.Func0(projectCollations)).
		Register(md.Collations, plan.SortKind, md.Func0(sortCollations)).
		Register(md.Collations, plan.ExchangeKind, md.Func0(noCollations)).
		Register(md.Collations, plan.SortExchangeKind, md.Func0(sortExchangeCollations)).
		Register(md.Collations, plan.MergeJoinKind, md.Func0(mergeJoinCollations)).
		Register(md.Collations, plan.HashJoinKind, md.Func0(leftJoinCollations)).
		Register(md.Collations, plan.NestedLoopJoinKind, md.Func0(leftJoinCollations)).
		Register(md.Collations, plan.SubsetKind, md.Func0(subsetCollations))
}

// noCollations is the answer for operators that do not in general return
// sorted results, such as set operations and aggregations.
func noCollations(*md.Query, plan.Node) ([]opt.Ordering, bool, error) {
	return []opt.Ordering{}, true, nil
}

func scanCollations(_ *md.Query, s *plan.Scan) ([]opt.Ordering, bool, error) {
	return append([]opt.Ordering{}, s.Table.Collations...), true, nil
}

func inputCollations(q *md.Query, n plan.Node) ([]opt.Ordering, bool, error) {
	return q.Collations(n.Inputs()[0])
}

// projectCollations maps the input collations to the output columns that
// pass the input columns through. A collation is cut at its first column
// that is not projected.
func projectCollations(q *md.Query, p *plan.Project) ([]opt.Ordering, bool, error) {
	in, ok, err := q.Collations(p.Input)
	if !ok || err != nil {
		return nil, false, err
	}
	toOutput := p.InputToOutput()
	res := []opt.Ordering{}
	for _, o := range in {
		if mapped := o.Remap(toOutput); !mapped.Empty() {
			res = appendOrdering(res, mapped)
		}
	}
	return res, true, nil
}

// sortCollations: a limit without an ordering keeps the input order.
func sortCollations(q *md.Query, s *plan.Sort) ([]opt.Ordering, bool, error) {
	if s.Ordering.Empty() {
		return q.Collations(s.Input)
	}
	return []opt.Ordering{s.Ordering}, true, nil
}

func sortExchangeCollations(_ *md.Query, e *plan.Exchange) ([]opt.Ordering, bool, error) {
	if e.Ordering.Empty() {
		return []opt.Ordering{}, true, nil
	}
	return []opt.Ordering{e.Ordering}, true, nil
}

// mergeJoinCollations: a merge join preserves the order of both inputs,
// with the right collations shifted past the left columns. The order of a
// side that can be NULL-extended is lost.
func mergeJoinCollations(q *md.Query, j *plan.Join) ([]opt.Ordering, bool, error) {
	left, ok, err := q.Collations(j.Left)
	if !ok || err != nil {
		return nil, false, err
	}
	if !j.Type.ProjectsRight() {
		return left, true, nil
	}
	right, ok, err := q.Collations(j.Right)
	if !ok || err != nil {
		return nil, false, err
	}
	if buildutil.Invariants {
		leftKeys, rightKeys, _ := j.EquiCondition()
		if !sortedOn(left, leftKeys) || !sortedOn(right, rightKeys) {
			return nil, false, errors.AssertionFailedf("merge join inputs are not sorted on the join keys")
		}
	}
	res := []opt.Ordering{}
	if !j.Type.GeneratesNullsOnLeft() {
		for _, o := range left {
			res = appendOrdering(res, o)
		}
	}
	if !j.Type.GeneratesNullsOnRight() {
		n := j.LeftWidth()
		for _, o := range right {
			res = appendOrdering(res, o.Shift(n))
		}
	}
	return res, true, nil
}

// sortedOn returns true if one of the collations starts with the keys, in
// any order and direction. An empty key list is trivially sorted.
func sortedOn(collations []opt.Ordering, keys []int) bool {
	if len(keys) == 0 {
		return true
	}
	want := opt.MakeColSet(keys...)
	for _, o := range collations {
		if len(o) >= len(keys) && o[:len(keys)].ColSet().Equals(want) {
			return true
		}
	}
	return false
}

// leftJoinCollations: hash and nested loop joins stream the left input, so
// they keep its order unless the left rows can be NULL-extended.
func leftJoinCollations(q *md.Query, j *plan.Join) ([]opt.Ordering, bool, error) {
	if j.Type.GeneratesNullsOnLeft() {
		return []opt.Ordering{}, true, nil
	}
	return q.Collations(j.Left)
}

func subsetCollations(_ *md.Query, s *plan.Subset) ([]opt.Ordering, bool, error) {
	return append([]opt.Ordering{}, s.Collations...), true, nil
}

func appendOrdering(list []opt.Ordering, o opt.Ordering) []opt.Ordering {
	for _, existing := range list {
		if existing.Equals(o) {
			return list
		}
	}
	return append(list, o)
}
