// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package scalar

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt"
)

// Conjuncts decomposes e into the list of its top-level conjuncts. A nil
// expression or a TRUE literal has no conjuncts.
func Conjuncts(e Expr) []Expr {
	if e == nil || IsAlwaysTrue(e) {
		return nil
	}
	if c, ok := e.(*Call); ok && c.Operator == AndOp {
		var res []Expr
		for _, a := range c.Args {
			res = append(res, Conjuncts(a)...)
		}
		return res
	}
	return []Expr{e}
}

// Disjuncts decomposes e into the list of its top-level disjuncts. A nil
// expression or a FALSE literal has no disjuncts.
func Disjuncts(e Expr) []Expr {
	if e == nil || IsAlwaysFalse(e) {
		return nil
	}
	if c, ok := e.(*Call); ok && c.Operator == OrOp {
		var res []Expr
		for _, a := range c.Args {
			res = append(res, Disjuncts(a)...)
		}
		return res
	}
	return []Expr{e}
}

// IsAlwaysTrue returns true if e is the TRUE literal. A nil predicate means
// "no restriction" and is also considered true.
func IsAlwaysTrue(e Expr) bool {
	if e == nil {
		return true
	}
	c, ok := e.(*Const)
	return ok && c.Value == true
}

// IsAlwaysFalse returns true if e is the FALSE literal.
func IsAlwaysFalse(e Expr) bool {
	c, ok := e.(*Const)
	return ok && c.Value == false
}

// Walk calls fn for e and, if fn returns true, recursively for each of its
// children.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for i, n := 0, e.ChildCount(); i < n; i++ {
		Walk(e.Child(i), fn)
	}
}

// InputRefs returns the set of input column ordinals referenced by e.
func InputRefs(e Expr) opt.ColSet {
	var cols opt.ColSet
	Walk(e, func(e Expr) bool {
		if c, ok := e.(*ColumnRef); ok {
			cols.Add(c.Index)
		}
		return true
	})
	return cols
}

// InputRefsOfList returns the set of input column ordinals referenced by any
// expression in the list.
func InputRefsOfList(list []Expr) opt.ColSet {
	var cols opt.ColSet
	for _, e := range list {
		cols.UnionWith(InputRefs(e))
	}
	return cols
}

// IsDeterministic returns true if e contains no volatile function calls.
func IsDeterministic(e Expr) bool {
	det := true
	Walk(e, func(e Expr) bool {
		if c, ok := e.(*Call); ok && c.Volatile {
			det = false
		}
		return det
	})
	return det
}

// IsConstant returns true if e is deterministic and references no columns
// and no placeholders, so that its value is fixed at plan time.
func IsConstant(e Expr) bool {
	constant := true
	Walk(e, func(e Expr) bool {
		switch t := e.(type) {
		case *ColumnRef, *TableColumnRef, *Placeholder:
			constant = false
		case *Call:
			if t.Volatile {
				constant = false
			}
		}
		return constant
	})
	return constant
}

// RetainDeterministic returns the deterministic expressions of the list.
func RetainDeterministic(list []Expr) []Expr {
	var res []Expr
	for _, e := range list {
		if IsDeterministic(e) {
			res = append(res, e)
		}
	}
	return res
}

// Equal returns true if the two expressions are identical.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a == b || a.String() == b.String()
}

// Dedupe returns the list with later duplicates removed, preserving order.
func Dedupe(list []Expr) []Expr {
	if len(list) < 2 {
		return list
	}
	seen := make(map[string]struct{}, len(list))
	res := make([]Expr, 0, len(list))
	for _, e := range list {
		key := e.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		res = append(res, e)
	}
	return res
}

// ContainsExpr returns true if list contains an expression identical to e.
func ContainsExpr(list []Expr, e Expr) bool {
	key := e.String()
	for _, x := range list {
		if x.String() == key {
			return true
		}
	}
	return false
}

// ColumnEquality returns the two ordinals of an equality between two column
// references, such as $1 = $4.
func ColumnEquality(e Expr) (left, right int, ok bool) {
	c, isCall := e.(*Call)
	if !isCall || c.Operator != EqOp {
		return 0, 0, false
	}
	l, lok := c.Args[0].(*ColumnRef)
	r, rok := c.Args[1].(*ColumnRef)
	if !lok || !rok {
		return 0, 0, false
	}
	return l.Index, r.Index, true
}

// WithChildren returns a copy of e with its children replaced. Leaf
// expressions are returned unchanged.
func WithChildren(e Expr, children []Expr) Expr {
	c, ok := e.(*Call)
	if !ok {
		if e.ChildCount() != 0 {
			panic(errors.AssertionFailedf("unexpected expression %T", e))
		}
		return e
	}
	return &Call{Operator: c.Operator, Args: children, Name: c.Name, Volatile: c.Volatile}
}

// Replace rewrites e bottom-up: fn is called for each leaf and, after the
// children have been rewritten, for each interior node. If fn returns false
// the node is kept.
func Replace(e Expr, fn func(Expr) (Expr, bool)) Expr {
	if e == nil {
		return nil
	}
	if n := e.ChildCount(); n > 0 {
		var children []Expr
		for i := 0; i < n; i++ {
			child := e.Child(i)
			newChild := Replace(child, fn)
			if newChild != child && children == nil {
				children = make([]Expr, n)
				for j := 0; j < i; j++ {
					children[j] = e.Child(j)
				}
			}
			if children != nil {
				children[i] = newChild
			}
		}
		if children != nil {
			e = WithChildren(e, children)
		}
	}
	if r, ok := fn(e); ok {
		return r
	}
	return e
}

// ReplaceColumns replaces every column reference $i in e with repl(i).
func ReplaceColumns(e Expr, repl func(i int) Expr) Expr {
	return Replace(e, func(e Expr) (Expr, bool) {
		if c, ok := e.(*ColumnRef); ok {
			return repl(c.Index), true
		}
		return nil, false
	})
}

// Remap substitutes column references under the mapping. It returns false if
// some referenced column has no image.
func Remap(e Expr, mapping func(i int) (int, bool)) (Expr, bool) {
	ok := true
	res := ReplaceColumns(e, func(i int) Expr {
		j, found := mapping(i)
		if !found {
			ok = false
			return Col(i)
		}
		if j == i {
			return Col(i)
		}
		return Col(j)
	})
	if !ok {
		return nil, false
	}
	return res, true
}

// RemapMap is Remap with the mapping given as a map.
func RemapMap(e Expr, mapping map[int]int) (Expr, bool) {
	return Remap(e, func(i int) (int, bool) {
		j, ok := mapping[i]
		return j, ok
	})
}

// Shift moves every column reference in e by delta.
func Shift(e Expr, delta int) Expr {
	if delta == 0 || e == nil {
		return e
	}
	return ReplaceColumns(e, func(i int) Expr {
		if i+delta < 0 {
			panic(errors.AssertionFailedf("column $%d shifted by %d", i, delta))
		}
		return Col(i + delta)
	})
}

// ShiftList applies Shift to every expression of the list.
func ShiftList(list []Expr, delta int) []Expr {
	if delta == 0 {
		return list
	}
	res := make([]Expr, len(list))
	for i, e := range list {
		res[i] = Shift(e, delta)
	}
	return res
}

// SwapTableRefs replaces table references in the table column references of
// e according to the mapping.
func SwapTableRefs(e Expr, mapping map[TableRef]TableRef) Expr {
	if len(mapping) == 0 {
		return e
	}
	return Replace(e, func(e Expr) (Expr, bool) {
		if c, ok := e.(*TableColumnRef); ok {
			if to, found := mapping[c.Table]; found {
				return &TableColumnRef{Table: to, Index: c.Index}, true
			}
		}
		return nil, false
	})
}

// IsStrictIn returns true if e is NULL whenever column col is NULL.
func IsStrictIn(e Expr, col int) bool {
	switch t := e.(type) {
	case *ColumnRef:
		return t.Index == col
	case *Call:
		switch {
		case t.Operator.IsComparison(), t.Operator.IsArithmetic(), t.Operator == NotOp:
			for _, a := range t.Args {
				if IsStrictIn(a, col) {
					return true
				}
			}
		}
	}
	return false
}

// NullRejecting returns true if predicate p can only be TRUE when column col
// is not NULL. For example $0 > 5 and ($0 > 5) OR ($0 < 1) reject NULLs in
// $0, while $0 IS NULL and ($0 > 5) OR ($1 > 5) do not.
func NullRejecting(p Expr, col int) bool {
	if c, ok := p.(*Call); ok {
		switch c.Operator {
		case AndOp:
			for _, a := range c.Args {
				if NullRejecting(a, col) {
					return true
				}
			}
			return false
		case OrOp:
			for _, a := range c.Args {
				if !NullRejecting(a, col) {
					return false
				}
			}
			return true
		case IsNotNullOp:
			r, isCol := c.Args[0].(*ColumnRef)
			return isCol && r.Index == col
		}
	}
	return IsStrictIn(p, col)
}
