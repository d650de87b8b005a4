// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package props contains the value types returned by metadata queries.
package props

import (
	"strings"

	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
)

// PredicateList holds the predicates known to hold for every row a node
// produces (PulledUp). For joins it also holds predicates inferred for one
// input from facts proved on the other: LeftInferred may be pushed into the
// left input and RightInferred into the right input. All three lists are
// deduplicated and never claimed complete.
//
// PredicateLists are immutable.
type PredicateList struct {
	PulledUp      []scalar.Expr
	LeftInferred  []scalar.Expr
	RightInferred []scalar.Expr
}

// EmptyPredicateList is the list that knows nothing.
var EmptyPredicateList = &PredicateList{}

// MakePredicateList returns a deduplicated predicate list.
func MakePredicateList(pulledUp, leftInferred, rightInferred []scalar.Expr) *PredicateList {
	if len(pulledUp) == 0 && len(leftInferred) == 0 && len(rightInferred) == 0 {
		return EmptyPredicateList
	}
	return &PredicateList{
		PulledUp:      scalar.Dedupe(pulledUp),
		LeftInferred:  scalar.Dedupe(leftInferred),
		RightInferred: scalar.Dedupe(rightInferred),
	}
}

// OfPulledUp returns a list with pulled up predicates only.
func OfPulledUp(pulledUp []scalar.Expr) *PredicateList {
	return MakePredicateList(pulledUp, nil, nil)
}

// Empty returns true if nothing is known.
func (p *PredicateList) Empty() bool {
	return len(p.PulledUp) == 0 && len(p.LeftInferred) == 0 && len(p.RightInferred) == 0
}

// Conjunction returns the conjunction of the pulled up predicates, TRUE if
// there are none.
func (p *PredicateList) Conjunction() scalar.Expr {
	return scalar.And(p.PulledUp...)
}

// Constants returns the columns that the pulled up predicates fix to a
// constant, through conjuncts of the form $i = c or $i IS NULL.
func (p *PredicateList) Constants() map[int]scalar.Datum {
	var res map[int]scalar.Datum
	for _, e := range p.PulledUp {
		c, ok := e.(*scalar.Call)
		if !ok {
			continue
		}
		var col *scalar.ColumnRef
		var val scalar.Datum
		switch c.Operator {
		case scalar.EqOp, scalar.IsNotDistinctFromOp:
			ref, lok := c.Args[0].(*scalar.ColumnRef)
			lit, rok := c.Args[1].(*scalar.Const)
			if !lok || !rok {
				ref, lok = c.Args[1].(*scalar.ColumnRef)
				lit, rok = c.Args[0].(*scalar.Const)
			}
			if !lok || !rok || (lit.IsNull() && c.Operator == scalar.EqOp) {
				continue
			}
			col, val = ref, lit.Value
		case scalar.IsNullOp:
			ref, ok := c.Args[0].(*scalar.ColumnRef)
			if !ok {
				continue
			}
			col = ref
		default:
			continue
		}
		if res == nil {
			res = make(map[int]scalar.Datum)
		}
		res[col.Index] = val
	}
	return res
}

func (p *PredicateList) String() string {
	var buf strings.Builder
	writeList := func(name string, list []scalar.Expr) {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(name)
		buf.WriteString("=[")
		for i, e := range list {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(e.String())
		}
		buf.WriteByte(']')
	}
	writeList("pulled-up", p.PulledUp)
	if len(p.LeftInferred) > 0 {
		writeList("left-inferred", p.LeftInferred)
	}
	if len(p.RightInferred) > 0 {
		writeList("right-inferred", p.RightInferred)
	}
	return buf.String()
}
