// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package norm

import (
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
)

// Simplifier rewrites scalar expressions into a canonical, simpler form. The
// rewrites are sound under three-valued logic unless the simplifier was
// created for predicates (see ForPredicates), in which case an UNKNOWN result
// is treated like FALSE, as it is in a WHERE clause.
type Simplifier struct {
	executor       Executor
	unknownAsFalse bool
}

// NewSimplifier returns a simplifier that folds constants with the given
// executor. A nil executor means DefaultExecutor.
func NewSimplifier(executor Executor) *Simplifier {
	if executor == nil {
		executor = DefaultExecutor{}
	}
	return &Simplifier{executor: executor}
}

// ForPredicates returns a copy of the simplifier that treats UNKNOWN as
// FALSE.
func (s *Simplifier) ForPredicates() *Simplifier {
	c := *s
	c.unknownAsFalse = true
	return &c
}

// Simplify returns the simplified form of e. A nil expression stays nil.
func (s *Simplifier) Simplify(e scalar.Expr) scalar.Expr {
	if e == nil {
		return nil
	}
	return scalar.Replace(e, func(e scalar.Expr) (scalar.Expr, bool) {
		c, ok := e.(*scalar.Call)
		if !ok {
			return nil, false
		}
		return s.simplifyCall(c), true
	})
}

// SimplifyAnds returns the simplified conjunction of the list. The empty list
// yields TRUE.
func (s *Simplifier) SimplifyAnds(list []scalar.Expr) scalar.Expr {
	return s.Simplify(scalar.And(list...))
}

// SimplifyOrs returns the simplified disjunction of the list. The empty list
// yields FALSE.
func (s *Simplifier) SimplifyOrs(list []scalar.Expr) scalar.Expr {
	return s.Simplify(scalar.Or(list...))
}

// simplifyCall simplifies a call whose children are already simplified.
func (s *Simplifier) simplifyCall(c *scalar.Call) scalar.Expr {
	if c.Operator != scalar.FuncOp && scalar.IsConstant(c) {
		if d, ok := s.executor.Reduce(c); ok {
			return s.literal(d)
		}
	}
	switch c.Operator {
	case scalar.AndOp:
		return s.simplifyAnd(c.Args)
	case scalar.OrOp:
		return s.simplifyOr(c.Args)
	case scalar.NotOp:
		return s.simplifyNot(c.Args[0], c)
	}
	if c.Operator.IsComparison() {
		return s.simplifyComparison(c)
	}
	return c
}

// literal returns the literal for a folded datum. In predicate mode a NULL
// boolean result becomes FALSE.
func (s *Simplifier) literal(d scalar.Datum) scalar.Expr {
	if d == nil && s.unknownAsFalse {
		return scalar.False
	}
	return scalar.Literal(d)
}

func (s *Simplifier) simplifyAnd(args []scalar.Expr) scalar.Expr {
	res := scalar.And(args...)
	terms := scalar.Conjuncts(res)
	if s.unknownAsFalse {
		for _, t := range terms {
			if c, ok := t.(*scalar.Const); ok && c.IsNull() {
				return scalar.False
			}
		}
	}
	if _, ok := complementOperand(terms); ok && s.unknownAsFalse {
		return scalar.False
	}
	return res
}

func (s *Simplifier) simplifyOr(args []scalar.Expr) scalar.Expr {
	res := scalar.Or(args...)
	terms := scalar.Disjuncts(res)
	if s.unknownAsFalse {
		var kept []scalar.Expr
		for _, t := range terms {
			if c, ok := t.(*scalar.Const); ok && c.IsNull() {
				continue
			}
			kept = append(kept, t)
		}
		if len(kept) != len(terms) {
			res = scalar.Or(kept...)
			terms = kept
		}
	}
	if s.unknownAsFalse {
		// p OR NOT p is TRUE exactly when p is not NULL.
		if p, ok := complementOperand(terms); ok {
			neg := negation(p).String()
			rest := []scalar.Expr{scalar.IsNotNull(p)}
			for _, t := range terms {
				if k := t.String(); k != p.String() && k != neg {
					rest = append(rest, t)
				}
			}
			return scalar.Or(rest...)
		}
	}
	return res
}

// simplifyNot pushes negation into comparisons and removes double negation.
func (s *Simplifier) simplifyNot(arg scalar.Expr, orig *scalar.Call) scalar.Expr {
	switch t := arg.(type) {
	case *scalar.Const:
		if b, ok := t.Value.(bool); ok {
			return scalar.Bool(!b)
		}
	case *scalar.Call:
		if t.Operator == scalar.NotOp {
			return t.Args[0]
		}
		if neg, ok := t.Operator.Negate(); ok {
			return s.simplifyCall(&scalar.Call{Operator: neg, Args: t.Args})
		}
	}
	return orig
}

func (s *Simplifier) simplifyComparison(c *scalar.Call) scalar.Expr {
	if len(c.Args) != 2 {
		return c
	}
	l, r := c.Args[0], c.Args[1]
	lc, lConst := l.(*scalar.Const)
	rc, rConst := r.(*scalar.Const)
	switch c.Operator {
	case scalar.IsNotDistinctFromOp, scalar.IsDistinctFromOp:
		// IS [NOT] DISTINCT FROM NULL is a NULL test.
		if rConst && rc.IsNull() {
			if c.Operator == scalar.IsNotDistinctFromOp {
				return scalar.IsNull(l)
			}
			return scalar.IsNotNull(l)
		}
		return c
	}
	if (lConst && lc.IsNull()) || (rConst && rc.IsNull()) {
		return s.literal(nil)
	}
	if scalar.Equal(l, r) && scalar.IsDeterministic(l) {
		switch c.Operator {
		case scalar.EqOp, scalar.LeOp, scalar.GeOp:
			if s.unknownAsFalse {
				return scalar.IsNotNull(l)
			}
		case scalar.NeOp, scalar.LtOp, scalar.GtOp:
			if s.unknownAsFalse {
				return scalar.False
			}
		}
	}
	// Keep constants on the right: 5 < $0 becomes $0 > 5.
	if lConst && !rConst {
		return &scalar.Call{Operator: c.Operator.Commute(), Args: []scalar.Expr{r, l}}
	}
	return c
}

// complementOperand finds p such that both p and its negation appear in
// terms.
func complementOperand(terms []scalar.Expr) (scalar.Expr, bool) {
	if len(terms) < 2 {
		return nil, false
	}
	keys := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		keys[t.String()] = struct{}{}
	}
	for _, t := range terms {
		if _, ok := keys[negation(t).String()]; ok {
			return t, true
		}
	}
	return nil, false
}

// negation returns the canonical negation of e.
func negation(e scalar.Expr) scalar.Expr {
	c, ok := e.(*scalar.Call)
	if !ok {
		return scalar.Not(e)
	}
	if c.Operator == scalar.NotOp {
		return c.Args[0]
	}
	if neg, ok := c.Operator.Negate(); ok {
		return &scalar.Call{Operator: neg, Args: c.Args}
	}
	return scalar.Not(e)
}
