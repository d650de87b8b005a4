// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package predicates

import (
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/props"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optmd/pkg/util/log"
)

// joinPredicates derives the predicates of a join from those of its inputs
// and infers new ones through the column equalities of the join condition.
//
// For example, if the left input proves $0 > 5 and the condition is
// $0 = $3, then $3 > 5 holds for every row of an inner join, and $0 > 5 may
// be pushed into the right input as a filter on its column 0.
//
// Columns are numbered as in the join output: the left input first, then the
// right input. Right input predicates are shifted accordingly; those
// inferred for the right input are shifted back.
func joinPredicates(q *md.Query, j *plan.Join) (*props.PredicateList, bool, error) {
	left, ok, err := q.PulledUpPredicates(j.Left)
	if !ok || err != nil {
		return nil, false, err
	}
	right, ok, err := q.PulledUpPredicates(j.Right)
	if !ok || err != nil {
		return nil, false, err
	}
	n, m := j.LeftWidth(), j.RightWidth()
	inf := makeInference(q, j.Condition, n, m, left.PulledUp, scalar.ShiftList(right.PulledUp, n))

	switch j.Type {
	case plan.InnerJoin:
		inf.infer(inf.leftPreds, inf.allFields)
		inf.infer(inf.rightPreds, inf.allFields)
		pulledUp := append([]scalar.Expr(nil), inf.leftPreds...)
		pulledUp = append(pulledUp, inf.rightPreds...)
		pulledUp = append(pulledUp, scalar.RetainDeterministic(scalar.Conjuncts(j.Condition))...)
		pulledUp = append(pulledUp, inf.inferred...)
		l, r := inf.split()
		return props.MakePredicateList(pulledUp, l, r), true, nil

	case plan.SemiJoin:
		inf.infer(inf.leftPreds, inf.allFields)
		inf.infer(inf.rightPreds, inf.allFields)
		l, r := inf.split()
		pulledUp := append(append([]scalar.Expr(nil), inf.leftPreds...), l...)
		return props.MakePredicateList(pulledUp, l, r), true, nil

	case plan.LeftJoin:
		inf.infer(inf.leftPreds, inf.rightFields)
		l, r := inf.split()
		return props.MakePredicateList(inf.leftPreds, l, r), true, nil

	case plan.RightJoin:
		inf.infer(inf.rightPreds, inf.leftFields)
		l, r := inf.split()
		return props.MakePredicateList(inf.rightPreds, l, r), true, nil

	case plan.AntiJoin:
		return props.OfPulledUp(inf.leftPreds), true, nil
	}
	return props.EmptyPredicateList, true, nil
}

// inference holds the state of predicate inference over one join.
type inference struct {
	q          *md.Query
	n, m       int
	leftPreds  []scalar.Expr
	rightPreds []scalar.Expr

	allFields   opt.ColSet
	leftFields  opt.ColSet
	rightFields opt.ColSet

	// equivalence maps each column to the set of columns it is equal to,
	// itself included.
	equivalence []opt.ColSet
	// equalities are the column equalities of the join condition; they are
	// not used as inference sources.
	equalities map[string]struct{}
	// known holds every predicate already available, to skip rediscovering
	// one.
	known    map[string]struct{}
	inferred []scalar.Expr
}

func makeInference(
	q *md.Query, condition scalar.Expr, n, m int, leftPreds, rightPreds []scalar.Expr,
) *inference {
	inf := &inference{
		q:           q,
		n:           n,
		m:           m,
		leftPreds:   leftPreds,
		rightPreds:  rightPreds,
		allFields:   columnRange(0, n+m),
		leftFields:  columnRange(0, n),
		rightFields: columnRange(n, n+m),
		equalities:  make(map[string]struct{}),
		known:       make(map[string]struct{}),
	}
	for _, list := range [][]scalar.Expr{leftPreds, rightPreds} {
		for _, e := range list {
			inf.known[e.String()] = struct{}{}
		}
	}
	inf.buildEquivalence(condition)
	return inf
}

// buildEquivalence computes the transitive closure of the $i = $j conjuncts
// of the condition.
func (inf *inference) buildEquivalence(condition scalar.Expr) {
	width := inf.n + inf.m
	parent := make([]int, width)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for _, c := range scalar.Conjuncts(condition) {
		l, r, ok := scalar.ColumnEquality(c)
		if !ok || l < 0 || r < 0 || l >= width || r >= width {
			continue
		}
		inf.equalities[c.String()] = struct{}{}
		if a, b := find(l), find(r); a != b {
			parent[a] = b
		}
	}
	classes := make(map[int]opt.ColSet)
	for i := 0; i < width; i++ {
		root := find(i)
		s := classes[root]
		s.Add(i)
		classes[root] = s
	}
	inf.equivalence = make([]opt.ColSet, width)
	for i := 0; i < width; i++ {
		inf.equivalence[i] = classes[find(i)]
	}
}

// infer rewrites each predicate with every combination of equivalent
// columns and keeps the rewrites that only reference inferringFields, are
// new, and are not trivially true.
func (inf *inference) infer(preds []scalar.Expr, inferringFields opt.ColSet) {
	limit := inf.q.MaxSubstitutions()
	simplifier := inf.q.Simplifier()
	for _, r := range preds {
		if _, ok := inf.equalities[r.String()]; ok {
			continue
		}
		fields := scalar.InputRefs(r).Ordered()
		if len(fields) == 0 {
			continue
		}
		choices := make([][]int, len(fields))
		pos := make(map[int]int, len(fields))
		for k, f := range fields {
			if f >= len(inf.equivalence) {
				choices = nil
				break
			}
			choices[k] = inf.equivalence[f].Ordered()
			pos[f] = k
		}
		if choices == nil {
			continue
		}

		choice := make([]int, len(fields))
		for count := 0; ; count++ {
			if count == limit {
				log.VEventf(inf.q.Context(), 2, "predicate inference for %s stopped after %d substitutions", r, count)
				break
			}
			tr, _ := scalar.Remap(r, func(i int) (int, bool) {
				return choices[pos[i]][choice[pos[i]]], true
			})
			simplified := simplifier.SimplifyAnds(scalar.Conjuncts(tr))
			if inf.accept(tr, inferringFields) && inf.accept(simplified, inferringFields) {
				inf.inferred = append(inf.inferred, simplified)
				inf.known[simplified.String()] = struct{}{}
			}

			k := len(fields) - 1
			for ; k >= 0; k-- {
				choice[k]++
				if choice[k] < len(choices[k]) {
					break
				}
				choice[k] = 0
			}
			if k < 0 {
				break
			}
		}
	}
}

func (inf *inference) accept(e scalar.Expr, inferringFields opt.ColSet) bool {
	if scalar.IsAlwaysTrue(e) || isTrivialEquality(e) {
		return false
	}
	if _, ok := inf.known[e.String()]; ok {
		return false
	}
	return scalar.InputRefs(e).SubsetOf(inferringFields)
}

// isTrivialEquality matches $i = $i.
func isTrivialEquality(e scalar.Expr) bool {
	l, r, ok := scalar.ColumnEquality(e)
	return ok && l == r
}

// split returns the inferred predicates over the left input, and those over
// the right input in right input numbering.
func (inf *inference) split() (left, right []scalar.Expr) {
	for _, e := range inf.inferred {
		refs := scalar.InputRefs(e)
		switch {
		case refs.SubsetOf(inf.leftFields):
			left = append(left, e)
		case refs.SubsetOf(inf.rightFields):
			right = append(right, scalar.Shift(e, -inf.n))
		}
	}
	return left, right
}
