// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package predicates

import (
	"github.com/cockroachdb/optmd/pkg/sql/opt/lineage"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/props"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
)

// AllPredicates lists the predicates applied below a node over base table
// columns (scalar.TableColumnRef). Joins and filters contribute the lineage
// of their conditions. Only inner joins are understood: the predicates of an
// outer join hold for some rows only.

func unknownAll(*md.Query, plan.Node) (*props.PredicateList, bool, error) {
	return nil, false, nil
}

func scanAll(*md.Query, *plan.Scan) (*props.PredicateList, bool, error) {
	return props.EmptyPredicateList, true, nil
}

// inputAll covers the nodes that do not filter: projections, aggregations,
// sorts, exchanges and conversions.
func inputAll(q *md.Query, n plan.Node) (*props.PredicateList, bool, error) {
	return q.AllPredicates(n.Inputs()[0])
}

func filterAll(q *md.Query, f *plan.Filter) (*props.PredicateList, bool, error) {
	in, ok, err := q.AllPredicates(f.Input)
	if !ok || err != nil {
		return nil, false, err
	}
	cond, ok, err := q.ExpressionLineage(f.Input, f.Condition)
	if !ok || err != nil {
		return nil, false, err
	}
	return props.OfPulledUp(append(append([]scalar.Expr(nil), in.PulledUp...), cond...)), true, nil
}

func joinAll(q *md.Query, j *plan.Join) (*props.PredicateList, bool, error) {
	if j.Type != plan.InnerJoin {
		return nil, false, nil
	}
	left, ok, err := q.AllPredicates(j.Left)
	if !ok || err != nil {
		return nil, false, err
	}
	right, ok, err := q.AllPredicates(j.Right)
	if !ok || err != nil {
		return nil, false, err
	}
	leftRefs, ok, err := q.TableReferences(j.Left)
	if !ok || err != nil {
		return nil, false, err
	}
	rightRefs, ok, err := q.TableReferences(j.Right)
	if !ok || err != nil {
		return nil, false, err
	}
	swap := lineage.Renumber(leftRefs, rightRefs)

	res := append([]scalar.Expr(nil), left.PulledUp...)
	for _, e := range right.PulledUp {
		res = append(res, scalar.SwapTableRefs(e, swap))
	}
	cond, ok, err := q.ExpressionLineage(j, j.Condition)
	if !ok || err != nil {
		return nil, false, err
	}
	res = append(res, cond...)
	return props.OfPulledUp(res), true, nil
}

func setOpAll(q *md.Query, s *plan.SetOp) (*props.PredicateList, bool, error) {
	var res []scalar.Expr
	var seen props.TableRefs
	for _, c := range s.Children {
		in, ok, err := q.AllPredicates(c)
		if !ok || err != nil {
			return nil, false, err
		}
		refs, ok, err := q.TableReferences(c)
		if !ok || err != nil {
			return nil, false, err
		}
		swap := lineage.Renumber(seen, refs)
		for _, e := range in.PulledUp {
			res = append(res, scalar.SwapTableRefs(e, swap))
		}
		for _, r := range refs {
			seen = append(seen, swap[r])
		}
	}
	return props.OfPulledUp(res), true, nil
}

func subsetAll(q *md.Query, s *plan.Subset) (*props.PredicateList, bool, error) {
	rep := s.Representative()
	if rep == nil {
		return nil, false, nil
	}
	return q.AllPredicates(rep)
}
