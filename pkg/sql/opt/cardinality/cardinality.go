// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cardinality derives the row count family of metadata: row counts
// and their bounds, distinct row counts, population sizes and selectivities.
//
// The estimates follow the classic System R style heuristics. Without
// statistics, predicates are assigned guessed selectivities and conjuncts are
// assumed to be independent.
package cardinality

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
)

const (
	isNotNullSelectivity  = 0.9
	equalitySelectivity   = 0.15
	comparisonSelectivity = 0.5
	defaultSelectivity    = 0.25

	// unknownDistinctRatio is the fraction of distinct group key values
	// assumed when nothing is known about the input.
	unknownDistinctRatio = 0.1

	// unknownSubsetRowCount is assumed for a search group none of whose
	// members has a known row count, typically because they are all still
	// being explored.
	unknownSubsetRowCount = 1e6

	// minusFraction is the fraction of each subtracted input's rows assumed
	// to be removed from the first input of a MINUS.
	minusFraction = 0.5
)

// Provider answers the row count family of methods.
var Provider = md.NewTable("cardinality")

func init() {
	registerRowCount(Provider)
	registerBounds(Provider)
	registerSelectivity(Provider)
	registerDistinctRowCount(Provider)
	registerPopulationSize(Provider)
}

// GuessSelectivity returns the default selectivity of a predicate, the
// product of a guess for each of its conjuncts. A nil predicate has
// selectivity 1.
func GuessSelectivity(pred scalar.Expr) float64 {
	sel := 1.0
	for _, c := range scalar.Conjuncts(pred) {
		switch op := c.Op(); {
		case scalar.IsAlwaysFalse(c):
			return 0
		case op == scalar.IsNotNullOp:
			sel *= isNotNullSelectivity
		case op == scalar.EqOp:
			sel *= equalitySelectivity
		case op.IsComparison():
			sel *= comparisonSelectivity
		default:
			sel *= defaultSelectivity
		}
	}
	return sel
}

// NumDistinctVals returns the expected number of distinct values when
// selected values are drawn at random from a domain of domainSize values.
// Picking k values out of n skips a given value with probability
// ((n-1)/n)^k, which is approximately e^(-k/n).
func NumDistinctVals(domainSize, numSelected float64) float64 {
	d, k := capInfinity(domainSize), capInfinity(numSelected)
	if d <= 0 {
		return 0
	}
	res := (1 - math.Exp(-k/d)) * d
	res = math.Min(res, d)
	res = math.Min(res, k)
	return math.Max(res, 0)
}

func capInfinity(f float64) float64 {
	if math.IsInf(f, 1) {
		return math.MaxFloat64
	}
	return f
}

// MinusPreds returns the conjuncts of p1 that are not conjuncts of p2, or nil
// if there are none.
func MinusPreds(p1, p2 scalar.Expr) scalar.Expr {
	others := scalar.Conjuncts(p2)
	var res []scalar.Expr
	for _, c := range scalar.Conjuncts(p1) {
		if !scalar.ContainsExpr(others, c) {
			res = append(res, c)
		}
	}
	return conjunction(res)
}

// UnionPreds returns the conjunction of both predicates without repeated
// conjuncts, or nil if both are empty.
func UnionPreds(p1, p2 scalar.Expr) scalar.Expr {
	return conjunction(append(scalar.Conjuncts(p1), scalar.Conjuncts(p2)...))
}

// conjunction returns nil for an empty list, so that an absent predicate
// always reaches the metadata cache the same way.
func conjunction(list []scalar.Expr) scalar.Expr {
	if len(list) == 0 {
		return nil
	}
	e := scalar.And(list...)
	if scalar.IsAlwaysTrue(e) {
		return nil
	}
	return e
}

// splitPushable splits the conjuncts of pred into those that only reference
// the columns for which mapping has an image, remapped to the input, and the
// others.
func splitPushable(
	pred scalar.Expr, mapping func(int) (int, bool),
) (pushed, rest scalar.Expr) {
	var pushable, notPushable []scalar.Expr
	for _, c := range scalar.Conjuncts(pred) {
		if r, ok := scalar.Remap(c, mapping); ok {
			pushable = append(pushable, r)
		} else {
			notPushable = append(notPushable, c)
		}
	}
	return conjunction(pushable), conjunction(notPushable)
}

// memberLoop folds fn over the members of a subset, skipping members whose
// answer is unknown or cyclic. It returns false if no member answered.
func memberLoop(
	s *plan.Subset, fn func(m plan.Node) (float64, bool, error), fold func(acc, v float64) float64,
) (float64, bool, error) {
	var acc float64
	found := false
	for _, m := range s.Members {
		v, ok, err := fn(m)
		if err != nil {
			if errors.Is(err, md.ErrCyclicMetadata) {
				continue
			}
			return 0, false, err
		}
		if !ok {
			continue
		}
		if !found {
			acc, found = v, true
			continue
		}
		acc = fold(acc, v)
	}
	return acc, found, nil
}

// literalLimit returns the value of a constant offset or fetch expression.
// It returns false for dynamic ones, and 0 and true for absent ones.
func literalLimit(e scalar.Expr) (float64, bool) {
	if e == nil {
		return 0, true
	}
	v, ok := plan.LiteralInt(e)
	if !ok {
		return 0, false
	}
	return float64(max(v, 0)), true
}
