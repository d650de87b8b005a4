// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package lineage derives where the output of a node comes from: the base
// table occurrences it reads (TableReferences) and the base table
// expressions an output expression can originate from (ExpressionLineage).
//
// Lineage is expressed with scalar.TableColumnRef. A table read more than
// once, as in a self-join, gets one entity number per occurrence: the
// occurrences of the right input of a join (or of later set operation
// inputs) are renumbered after those of the inputs before them.
package lineage

import (
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/props"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optmd/pkg/util/log"
)

// Provider answers TableReferences and ExpressionLineage.
var Provider = md.NewTable("lineage")

func init() {
	Provider.
		Register(md.TableReferences, plan.RelKind, md.Func0(unknownRefs)).
		Register(md.TableReferences, plan.ScanKind, md.Func0(scanRefs)).
		Register(md.TableReferences, plan.ValuesKind, md.Func0(valuesRefs)).
		Register(md.TableReferences, plan.SingleInputKind, md.Func0(inputRefs)).
		Register(md.TableReferences, plan.JoinKind, md.Func0(joinRefs)).
		Register(md.TableReferences, plan.SetOpKind, md.Func0(setOpRefs)).
		Register(md.TableReferences, plan.SubsetKind, md.Func0(subsetRefs))

	Provider.
		Register(md.ExpressionLineage, plan.RelKind, md.Func1(unknownLineage)).
		Register(md.ExpressionLineage, plan.ScanKind, md.Func1(scanLineage)).
		Register(md.ExpressionLineage, plan.SingleInputKind, md.Func1(inputLineage)).
		Register(md.ExpressionLineage, plan.ProjectKind, md.Func1(projectLineage)).
		Register(md.ExpressionLineage, plan.AggregateKind, md.Func1(aggregateLineage)).
		Register(md.ExpressionLineage, plan.JoinKind, md.Func1(joinLineage)).
		Register(md.ExpressionLineage, plan.UnionKind, md.Func1(unionLineage)).
		Register(md.ExpressionLineage, plan.SubsetKind, md.Func1(subsetLineage))
}

func unknownRefs(*md.Query, plan.Node) (props.TableRefs, bool, error) {
	return nil, false, nil
}

func scanRefs(_ *md.Query, s *plan.Scan) (props.TableRefs, bool, error) {
	return props.MakeTableRefs(ScanRef(s)), true, nil
}

// ScanRef is the reference of the table read by a scan, before any
// renumbering.
func ScanRef(s *plan.Scan) scalar.TableRef {
	return scalar.TableRef{Name: s.Table.Name}
}

func valuesRefs(*md.Query, *plan.Values) (props.TableRefs, bool, error) {
	return props.TableRefs{}, true, nil
}

func inputRefs(q *md.Query, n plan.Node) (props.TableRefs, bool, error) {
	return q.TableReferences(n.Inputs()[0])
}

func joinRefs(q *md.Query, j *plan.Join) (props.TableRefs, bool, error) {
	left, ok, err := q.TableReferences(j.Left)
	if !ok || err != nil {
		return nil, false, err
	}
	right, ok, err := q.TableReferences(j.Right)
	if !ok || err != nil {
		return nil, false, err
	}
	res := append(props.TableRefs{}, left...)
	for _, r := range Renumber(left, right) {
		res = append(res, r)
	}
	return props.MakeTableRefs(res...), true, nil
}

func setOpRefs(q *md.Query, s *plan.SetOp) (props.TableRefs, bool, error) {
	var res props.TableRefs
	for _, c := range s.Children {
		refs, ok, err := q.TableReferences(c)
		if !ok || err != nil {
			return nil, false, err
		}
		mapping := Renumber(res, refs)
		for _, r := range refs {
			res = append(res, mapping[r])
		}
	}
	return props.MakeTableRefs(res...), true, nil
}

func subsetRefs(q *md.Query, s *plan.Subset) (props.TableRefs, bool, error) {
	rep := s.Representative()
	if rep == nil {
		return nil, false, nil
	}
	return q.TableReferences(rep)
}

// Renumber maps each reference of next to a reference that does not clash
// with prev: its entity number is moved past the occurrences of the same
// table in prev.
func Renumber(prev, next props.TableRefs) map[scalar.TableRef]scalar.TableRef {
	counts := make(map[string]int, len(prev))
	for _, r := range prev {
		counts[r.Name]++
	}
	mapping := make(map[scalar.TableRef]scalar.TableRef, len(next))
	for _, r := range next {
		mapping[r] = scalar.TableRef{Name: r.Name, Entity: r.Entity + counts[r.Name]}
	}
	return mapping
}

func unknownLineage(*md.Query, plan.Node, scalar.Expr) ([]scalar.Expr, bool, error) {
	return nil, false, nil
}

func scanLineage(q *md.Query, s *plan.Scan, e scalar.Expr) ([]scalar.Expr, bool, error) {
	ref := ScanRef(s)
	origins := make(map[int][]scalar.Expr)
	scalar.InputRefs(e).ForEach(func(i int) {
		origins[i] = []scalar.Expr{&scalar.TableColumnRef{Table: ref, Index: i}}
	})
	return expand(q, e, origins)
}

func inputLineage(q *md.Query, n plan.Node, e scalar.Expr) ([]scalar.Expr, bool, error) {
	return q.ExpressionLineage(n.Inputs()[0], e)
}

func projectLineage(q *md.Query, p *plan.Project, e scalar.Expr) ([]scalar.Expr, bool, error) {
	return mapColumns(q, e, func(i int) (plan.Node, scalar.Expr, bool) {
		return p.Input, p.Exprs[i], true
	}, nil)
}

// aggregateLineage only knows the origin of group key columns.
func aggregateLineage(q *md.Query, a *plan.Aggregate, e scalar.Expr) ([]scalar.Expr, bool, error) {
	keys := a.GroupKey.Ordered()
	return mapColumns(q, e, func(i int) (plan.Node, scalar.Expr, bool) {
		if i >= len(keys) {
			return nil, nil, false
		}
		return a.Input, scalar.Col(keys[i]), true
	}, nil)
}

// joinLineage maps the columns of each side through that side. The columns
// of a side that can be NULL-extended have no origin.
func joinLineage(q *md.Query, j *plan.Join, e scalar.Expr) ([]scalar.Expr, bool, error) {
	if j.Type == plan.FullJoin {
		return nil, false, nil
	}
	n := j.LeftWidth()
	var swap map[scalar.TableRef]scalar.TableRef
	if j.Type.ProjectsRight() && scalar.InputRefs(e).Intersects(opt.MakeColSetRange(n, n+j.RightWidth())) {
		left, ok, err := q.TableReferences(j.Left)
		if !ok || err != nil {
			return nil, false, err
		}
		right, ok, err := q.TableReferences(j.Right)
		if !ok || err != nil {
			return nil, false, err
		}
		swap = Renumber(left, right)
	}
	return mapColumns(q, e, func(i int) (plan.Node, scalar.Expr, bool) {
		if i < n {
			return j.Left, scalar.Col(i), !j.Type.GeneratesNullsOnLeft()
		}
		return j.Right, scalar.Col(i - n), j.Type.ProjectsRight() && !j.Type.GeneratesNullsOnRight()
	}, func(i int) map[scalar.TableRef]scalar.TableRef {
		if i < n {
			return nil
		}
		return swap
	})
}

// unionLineage collects the origins in every input.
func unionLineage(q *md.Query, s *plan.SetOp, e scalar.Expr) ([]scalar.Expr, bool, error) {
	cols := scalar.InputRefs(e)
	origins := make(map[int][]scalar.Expr, cols.Len())
	var seen props.TableRefs
	for _, c := range s.Children {
		refs, ok, err := q.TableReferences(c)
		if !ok || err != nil {
			return nil, false, err
		}
		swap := Renumber(seen, refs)
		for _, i := range cols.Ordered() {
			list, ok, err := q.ExpressionLineage(c, scalar.Col(i))
			if !ok || err != nil {
				return nil, false, err
			}
			for _, x := range list {
				origins[i] = append(origins[i], scalar.SwapTableRefs(x, swap))
			}
		}
		for _, r := range refs {
			seen = append(seen, swap[r])
		}
	}
	for i, list := range origins {
		origins[i] = scalar.Dedupe(list)
	}
	return expand(q, e, origins)
}

func subsetLineage(q *md.Query, s *plan.Subset, e scalar.Expr) ([]scalar.Expr, bool, error) {
	rep := s.Representative()
	if rep == nil {
		return nil, false, nil
	}
	return q.ExpressionLineage(rep, e)
}

// mapColumns computes the origins of every column e references. source
// returns the input and the input expression a column comes from, or false
// if the column has no known origin. swap, if not nil, returns the table
// renumbering to apply to the origins of a column.
func mapColumns(
	q *md.Query,
	e scalar.Expr,
	source func(i int) (plan.Node, scalar.Expr, bool),
	swap func(i int) map[scalar.TableRef]scalar.TableRef,
) ([]scalar.Expr, bool, error) {
	origins := make(map[int][]scalar.Expr)
	for _, i := range scalar.InputRefs(e).Ordered() {
		input, expr, ok := source(i)
		if !ok {
			return nil, false, nil
		}
		list, ok, err := q.ExpressionLineage(input, expr)
		if !ok || err != nil {
			return nil, false, err
		}
		if swap != nil {
			if m := swap(i); m != nil {
				swapped := make([]scalar.Expr, len(list))
				for k, x := range list {
					swapped[k] = scalar.SwapTableRefs(x, m)
				}
				list = swapped
			}
		}
		origins[i] = list
	}
	return expand(q, e, origins)
}

// expand returns the conjuncts of every expression obtained by replacing
// each column reference of e by one of its origins. The lineage is unknown if
// there are more combinations than the query's substitution limit.
func expand(
	q *md.Query, e scalar.Expr, origins map[int][]scalar.Expr,
) ([]scalar.Expr, bool, error) {
	cols := scalar.InputRefs(e).Ordered()
	if len(cols) == 0 {
		return scalar.Conjuncts(e), true, nil
	}
	pos := make(map[int]int, len(cols))
	for k, c := range cols {
		if len(origins[c]) == 0 {
			return nil, true, nil
		}
		pos[c] = k
	}
	choice := make([]int, len(cols))
	var res []scalar.Expr
	for n := 0; ; n++ {
		if n == q.MaxSubstitutions() {
			log.VEventf(q.Context(), 2, "lineage of %s has more than %d combinations", e, n)
			return nil, false, nil
		}
		r := scalar.ReplaceColumns(e, func(i int) scalar.Expr {
			return origins[i][choice[pos[i]]]
		})
		res = append(res, scalar.Conjuncts(r)...)

		k := len(cols) - 1
		for ; k >= 0; k-- {
			choice[k]++
			if choice[k] < len(origins[cols[k]]) {
				break
			}
			choice[k] = 0
		}
		if k < 0 {
			break
		}
	}
	return scalar.Dedupe(res), true, nil
}
