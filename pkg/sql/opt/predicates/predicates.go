// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package predicates derives the predicates known to hold for every row of a
// node (PulledUpPredicates) and the predicates applied anywhere below it,
// expressed over base tables (AllPredicates).
//
// Every derived predicate must be sound: it is TRUE for every row the node
// can produce. A predicate list is never claimed complete, so dropping a
// predicate is always safe while inventing one never is.
package predicates

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/norm"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/props"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
)

// Provider answers PulledUpPredicates and AllPredicates.
var Provider = md.NewTable("predicates")

func init() {
	Provider.
		Register(md.PulledUpPredicates, plan.RelKind, md.Func0(empty)).
		Register(md.PulledUpPredicates, plan.ValuesKind, md.Func0(valuesPredicates)).
		Register(md.PulledUpPredicates, plan.SingleInputKind, md.Func0(inputPredicates)).
		Register(md.PulledUpPredicates, plan.FilterKind, md.Func0(filterPredicates)).
		Register(md.PulledUpPredicates, plan.ProjectKind, md.Func0(projectPredicates)).
		Register(md.PulledUpPredicates, plan.AggregateKind, md.Func0(aggregatePredicates)).
		Register(md.PulledUpPredicates, plan.JoinKind, md.Func0(joinPredicates)).
		Register(md.PulledUpPredicates, plan.UnionKind, md.Func0(unionPredicates)).
		Register(md.PulledUpPredicates, plan.IntersectKind, md.Func0(intersectPredicates)).
		Register(md.PulledUpPredicates, plan.MinusKind, md.Func0(minusPredicates)).
		Register(md.PulledUpPredicates, plan.SubsetKind, md.Func0(subsetPredicates))

	Provider.
		Register(md.AllPredicates, plan.RelKind, md.Func0(unknownAll)).
		Register(md.AllPredicates, plan.ScanKind, md.Func0(scanAll)).
		Register(md.AllPredicates, plan.SingleInputKind, md.Func0(inputAll)).
		Register(md.AllPredicates, plan.FilterKind, md.Func0(filterAll)).
		Register(md.AllPredicates, plan.JoinKind, md.Func0(joinAll)).
		Register(md.AllPredicates, plan.SetOpKind, md.Func0(setOpAll)).
		Register(md.AllPredicates, plan.SubsetKind, md.Func0(subsetAll))
}

// empty is the answer for scans and anything without a better rule.
func empty(*md.Query, plan.Node) (*props.PredicateList, bool, error) {
	return props.EmptyPredicateList, true, nil
}

// valuesPredicates describes the columns of the literals: a column holding
// the same value in every row is fixed to it, and a column without NULLs is
// not NULL.
func valuesPredicates(_ *md.Query, v *plan.Values) (*props.PredicateList, bool, error) {
	if len(v.Tuples) == 0 {
		return props.EmptyPredicateList, true, nil
	}
	var res []scalar.Expr
	for i := range v.Cols {
		first := v.Tuples[0][i]
		same, hasNull := true, false
		for _, t := range v.Tuples {
			if t[i] == nil {
				hasNull = true
			}
			if scalar.FormatDatum(t[i]) != scalar.FormatDatum(first) {
				same = false
			}
		}
		switch {
		case same && first == nil:
			res = append(res, scalar.IsNull(scalar.Col(i)))
		case same:
			res = append(res, scalar.Eq(scalar.Col(i), scalar.Literal(first)))
		case !hasNull:
			res = append(res, scalar.IsNotNull(scalar.Col(i)))
		}
	}
	return props.OfPulledUp(res), true, nil
}

// inputPredicates passes the input's rows through unchanged: sorts,
// exchanges and conversions.
func inputPredicates(q *md.Query, n plan.Node) (*props.PredicateList, bool, error) {
	in, ok, err := q.PulledUpPredicates(n.Inputs()[0])
	if !ok || err != nil {
		return nil, false, err
	}
	return props.OfPulledUp(in.PulledUp), true, nil
}

func filterPredicates(q *md.Query, f *plan.Filter) (*props.PredicateList, bool, error) {
	in, ok, err := q.PulledUpPredicates(f.Input)
	if !ok || err != nil {
		return nil, false, err
	}
	res := append([]scalar.Expr(nil), in.PulledUp...)
	res = append(res, scalar.RetainDeterministic(scalar.Conjuncts(f.Condition))...)
	return props.OfPulledUp(res), true, nil
}

// projectPredicates maps the input predicates to the output. A predicate
// whose columns are all projected is renumbered. A predicate only partly
// projected still proves that each projected, nullable column it rejects
// NULLs for is not NULL. Constant projections are fixed to their value.
func projectPredicates(q *md.Query, p *plan.Project) (*props.PredicateList, bool, error) {
	in, ok, err := q.PulledUpPredicates(p.Input)
	if !ok || err != nil {
		return nil, false, err
	}
	toOutput := p.InputToOutput()
	mapping := func(i int) (int, bool) {
		j := toOutput(i)
		return j, j >= 0
	}
	inCols := p.Input.Columns()

	var res []scalar.Expr
	for _, r := range in.PulledUp {
		if mapped, ok := scalar.Remap(r, mapping); ok {
			res = append(res, mapped)
			continue
		}
		scalar.InputRefs(r).ForEach(func(c int) {
			j := toOutput(c)
			if j < 0 || !inCols[c].Nullable || !scalar.NullRejecting(r, c) {
				return
			}
			res = append(res, scalar.IsNotNull(scalar.Col(j)))
		})
	}

	for i, e := range p.Exprs {
		if !scalar.IsConstant(e) || !scalar.IsDeterministic(e) {
			continue
		}
		d, ok := norm.Eval(e, nil)
		switch {
		case !ok:
			res = append(res, scalar.IsNotDistinctFrom(scalar.Col(i), e))
		case d == nil:
			res = append(res, scalar.IsNull(scalar.Col(i)))
		default:
			res = append(res, scalar.Eq(scalar.Col(i), scalar.Literal(d)))
		}
	}
	return props.OfPulledUp(res), true, nil
}

// aggregatePredicates keeps the input predicates over grouping columns that
// appear in every grouping set; the other group columns are NULL in the rows
// of the sets that omit them.
func aggregatePredicates(q *md.Query, a *plan.Aggregate) (*props.PredicateList, bool, error) {
	if a.GroupKey.Empty() {
		return props.EmptyPredicateList, true, nil
	}
	in, ok, err := q.PulledUpPredicates(a.Input)
	if !ok || err != nil {
		return nil, false, err
	}
	always := a.GroupKey.Copy()
	for _, s := range a.GroupingSets {
		always = always.Intersection(s)
	}
	toOutput := a.InputToOutput()
	var res []scalar.Expr
	for _, r := range in.PulledUp {
		if !scalar.InputRefs(r).SubsetOf(always) {
			continue
		}
		if mapped, ok := scalar.Remap(r, func(i int) (int, bool) {
			j := toOutput(i)
			return j, j >= 0
		}); ok {
			res = append(res, mapped)
		}
	}
	return props.OfPulledUp(res), true, nil
}

// intersectPredicates: every output row is a row of each input.
func intersectPredicates(q *md.Query, s *plan.SetOp) (*props.PredicateList, bool, error) {
	var res []scalar.Expr
	for _, c := range s.Children {
		in, ok, err := q.PulledUpPredicates(c)
		if !ok || err != nil {
			return nil, false, err
		}
		res = append(res, in.PulledUp...)
	}
	return props.OfPulledUp(res), true, nil
}

// minusPredicates: every output row is a row of the first input.
func minusPredicates(q *md.Query, s *plan.SetOp) (*props.PredicateList, bool, error) {
	in, ok, err := q.PulledUpPredicates(s.Children[0])
	if !ok || err != nil {
		return nil, false, err
	}
	return props.OfPulledUp(in.PulledUp), true, nil
}

// subsetPredicates collects the predicates of every member; they are all
// equivalent. Members still being computed are skipped.
func subsetPredicates(q *md.Query, s *plan.Subset) (*props.PredicateList, bool, error) {
	var res []scalar.Expr
	var known bool
	for _, m := range s.Members {
		in, ok, err := q.PulledUpPredicates(m)
		if errors.Is(err, md.ErrCyclicMetadata) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if ok {
			known = true
			res = append(res, in.PulledUp...)
		}
	}
	if !known {
		return nil, false, nil
	}
	return props.OfPulledUp(res), true, nil
}

// columnRange returns the ordinals [from, to).
func columnRange(from, to int) opt.ColSet {
	if from >= to {
		return opt.ColSet{}
	}
	return opt.MakeColSetRange(from, to)
}
