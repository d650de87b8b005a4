// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package md

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/props"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optmd/pkg/util/buildutil"
)

// Each accessor returns the answer, whether it is known, and an error. An
// unknown answer is not an error. Errors are either ErrCyclicMetadata or
// assertion failures.

// RowCount returns the estimated number of rows the node produces. Known
// estimates are at least 1 and finite.
func (q *Query) RowCount(n plan.Node) (float64, bool, error) {
	v, ok, err := getAs[float64](q, n, RowCount)
	if !ok || err != nil {
		return 0, false, err
	}
	return validateRowCount(v)
}

// MaxRowCount returns an upper bound on the number of rows. +Inf means the
// node is known to be unbounded.
func (q *Query) MaxRowCount(n plan.Node) (float64, bool, error) {
	return getAs[float64](q, n, MaxRowCount)
}

// MinRowCount returns a lower bound on the number of rows.
func (q *Query) MinRowCount(n plan.Node) (float64, bool, error) {
	return getAs[float64](q, n, MinRowCount)
}

// DistinctRowCount returns the estimated number of distinct values of the
// group key columns among the rows that satisfy pred. A nil predicate means
// all rows.
func (q *Query) DistinctRowCount(
	n plan.Node, groupKey opt.ColSet, pred scalar.Expr,
) (float64, bool, error) {
	v, ok, err := getAs[float64](q, n, DistinctRowCount, groupKey, pred)
	if !ok || err != nil {
		return 0, false, err
	}
	return validateRowCount(v)
}

// Selectivity returns the estimated fraction of the node's rows that satisfy
// pred. A nil predicate has selectivity 1.
func (q *Query) Selectivity(n plan.Node, pred scalar.Expr) (float64, bool, error) {
	v, ok, err := getAs[float64](q, n, Selectivity, pred)
	if !ok || err != nil {
		return 0, false, err
	}
	return validateSelectivity(v)
}

// ColumnUniqueness returns whether the columns form a key of the node's
// output. With ignoreNulls, rows with a NULL in any of the columns are
// ignored.
func (q *Query) ColumnUniqueness(
	n plan.Node, cols opt.ColSet, ignoreNulls bool,
) (bool, bool, error) {
	return getAs[bool](q, n, ColumnUniqueness, cols, ignoreNulls)
}

// UniqueKeys returns column sets known to be unique in the node's output.
func (q *Query) UniqueKeys(n plan.Node, ignoreNulls bool) ([]opt.ColSet, bool, error) {
	return getAs[[]opt.ColSet](q, n, UniqueKeys, ignoreNulls)
}

// PopulationSize returns the estimated number of distinct values of the
// group key in the node's output.
func (q *Query) PopulationSize(n plan.Node, groupKey opt.ColSet) (float64, bool, error) {
	v, ok, err := getAs[float64](q, n, PopulationSize, groupKey)
	if !ok || err != nil {
		return 0, false, err
	}
	return validateRowCount(v)
}

// Collations returns the orderings the node's output satisfies.
func (q *Query) Collations(n plan.Node) ([]opt.Ordering, bool, error) {
	return getAs[[]opt.Ordering](q, n, Collations)
}

// Distribution returns how the node's output is placed.
func (q *Query) Distribution(n plan.Node) (opt.Distribution, bool, error) {
	return getAs[opt.Distribution](q, n, Distribution)
}

// PulledUpPredicates returns the predicates known to hold for every output
// row, in terms of the node's output columns.
func (q *Query) PulledUpPredicates(n plan.Node) (*props.PredicateList, bool, error) {
	return getAs[*props.PredicateList](q, n, PulledUpPredicates)
}

// AllPredicates returns every predicate applied below the node, in terms of
// table columns.
func (q *Query) AllPredicates(n plan.Node) (*props.PredicateList, bool, error) {
	return getAs[*props.PredicateList](q, n, AllPredicates)
}

// TableReferences returns the table occurrences the node reads.
func (q *Query) TableReferences(n plan.Node) (props.TableRefs, bool, error) {
	return getAs[props.TableRefs](q, n, TableReferences)
}

// ExpressionLineage returns the expressions, in terms of table columns, that
// e over the node's output can originate from.
func (q *Query) ExpressionLineage(n plan.Node, e scalar.Expr) ([]scalar.Expr, bool, error) {
	return getAs[[]scalar.Expr](q, n, ExpressionLineage, e)
}

// NodeTypeHistogram counts the nodes of each kind in the subtree.
func (q *Query) NodeTypeHistogram(n plan.Node) (props.NodeTypeCounts, bool, error) {
	return getAs[props.NodeTypeCounts](q, n, NodeTypeHistogram)
}

// AverageRowSize returns the average size in bytes of an output row.
func (q *Query) AverageRowSize(n plan.Node) (float64, bool, error) {
	return getAs[float64](q, n, AverageRowSize)
}

// AverageColumnSizes returns the average size in bytes of each output
// column.
func (q *Query) AverageColumnSizes(n plan.Node) (props.ColumnSizes, bool, error) {
	return getAs[props.ColumnSizes](q, n, AverageColumnSizes)
}

// Memory returns the bytes the node's operator needs to hold at once.
func (q *Query) Memory(n plan.Node) (float64, bool, error) {
	return getAs[float64](q, n, Memory)
}

// CumulativeMemoryWithinPhase returns the memory of the node and of every
// node below it that runs in the same phase.
func (q *Query) CumulativeMemoryWithinPhase(n plan.Node) (float64, bool, error) {
	return getAs[float64](q, n, CumulativeMemoryWithinPhase)
}

// CumulativeMemoryWithinPhaseSplit returns the cumulative memory of the phase
// divided by the number of splits.
func (q *Query) CumulativeMemoryWithinPhaseSplit(n plan.Node) (float64, bool, error) {
	return getAs[float64](q, n, CumulativeMemoryWithinPhaseSplit)
}

// IsPhaseTransition returns whether the node starts a new execution phase.
func (q *Query) IsPhaseTransition(n plan.Node) (bool, bool, error) {
	return getAs[bool](q, n, IsPhaseTransition)
}

// SplitCount returns the number of parallel splits of the node's output.
func (q *Query) SplitCount(n plan.Node) (int, bool, error) {
	return getAs[int](q, n, SplitCount)
}

// ExplainVisibility returns whether the node is shown at the given explain
// level.
func (q *Query) ExplainVisibility(n plan.Node, level props.ExplainLevel) (bool, bool, error) {
	return getAs[bool](q, n, ExplainVisibility, level)
}

// validateRowCount keeps estimates usable as divisors: at least 1 and
// finite.
func validateRowCount(v float64) (float64, bool, error) {
	switch {
	case math.IsNaN(v):
		if buildutil.Invariants {
			return 0, false, errors.AssertionFailedf("row count is NaN")
		}
		return 0, false, nil
	case math.IsInf(v, 1):
		return math.MaxFloat64, true, nil
	case v < 1:
		return 1, true, nil
	}
	return v, true, nil
}

func validateSelectivity(v float64) (float64, bool, error) {
	if buildutil.Invariants && (math.IsNaN(v) || v < 0 || v > 1) {
		return 0, false, errors.AssertionFailedf("selectivity %f out of range", v)
	}
	switch {
	case math.IsNaN(v):
		return 0, false, nil
	case v < 0:
		return 0, true, nil
	case v > 1:
		return 1, true, nil
	}
	return v, true, nil
}
