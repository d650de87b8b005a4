// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package predicates

import (
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/props"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
)

// unionPredicates keeps the predicates common to every input and adds the
// disjunction of what each input knows beyond them.
//
// For inputs proving {a, b} and {a, c} the result is a AND (b OR c). If one
// input proves nothing, nothing is known.
func unionPredicates(q *md.Query, s *plan.SetOp) (*props.PredicateList, bool, error) {
	var common []scalar.Expr
	var residuals [][]scalar.Expr
	for i, c := range s.Children {
		in, ok, err := q.PulledUpPredicates(c)
		if !ok || err != nil {
			return nil, false, err
		}
		if len(in.PulledUp) == 0 {
			return props.EmptyPredicateList, true, nil
		}
		if i == 0 {
			common = append(common, in.PulledUp...)
			residuals = append(residuals, nil)
			continue
		}

		// Predicates of this input that are not common are its residual.
		var residual []scalar.Expr
		for _, e := range in.PulledUp {
			if !scalar.ContainsExpr(common, e) {
				residual = append(residual, e)
			}
		}
		// Common predicates this input lacks move to the residuals of the
		// inputs seen so far.
		var kept []scalar.Expr
		for _, e := range common {
			if scalar.ContainsExpr(in.PulledUp, e) {
				kept = append(kept, e)
				continue
			}
			for k := range residuals {
				residuals[k] = append(residuals[k], e)
			}
		}
		common = kept
		residuals = append(residuals, residual)
	}

	res := append([]scalar.Expr(nil), common...)
	simplifier := q.Simplifier()
	disjuncts := make([]scalar.Expr, len(residuals))
	for i, r := range residuals {
		disjuncts[i] = simplifier.SimplifyAnds(r)
	}
	if d := simplifier.SimplifyOrs(disjuncts); !scalar.IsAlwaysTrue(d) {
		res = append(res, d)
	}
	return props.OfPulledUp(res), true, nil
}
