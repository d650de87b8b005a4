// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package size

import (
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
)

func init() {
	Provider.
		Register(md.Memory, plan.RelKind, md.Func0(streaming)).
		Register(md.Memory, plan.SortKind, md.Func0(sortMemory)).
		Register(md.Memory, plan.AggregateKind, md.Func0(outputMemory)).
		Register(md.Memory, plan.SetOpKind, md.Func0(setOpMemory)).
		Register(md.Memory, plan.HashJoinKind, md.Func0(buildSideMemory)).
		Register(md.Memory, plan.NestedLoopJoinKind, md.Func0(buildSideMemory)).
		Register(md.Memory, plan.SubsetKind, md.Func0(subsetMemory)).
		Register(md.CumulativeMemoryWithinPhase, plan.RelKind, md.Func0(cumulativeMemory)).
		Register(md.CumulativeMemoryWithinPhaseSplit, plan.RelKind, md.Func0(cumulativeMemorySplit))
}

// streaming is the memory of operators that hold no rows.
func streaming(*md.Query, plan.Node) (float64, bool, error) {
	return 0, true, nil
}

// materialized estimates the memory needed to hold all rows of n.
func materialized(q *md.Query, n plan.Node) (float64, bool, error) {
	rows, ok, err := q.RowCount(n)
	if !ok || err != nil {
		return 0, false, err
	}
	width, ok, err := q.AverageRowSize(n)
	if !ok || err != nil {
		return 0, false, err
	}
	return rows * width, true, nil
}

// sortMemory: a sort buffers its input; a bare limit does not.
func sortMemory(q *md.Query, s *plan.Sort) (float64, bool, error) {
	if s.Ordering.Empty() {
		return 0, true, nil
	}
	return materialized(q, s.Input)
}

// outputMemory holds one entry per group.
func outputMemory(q *md.Query, a *plan.Aggregate) (float64, bool, error) {
	return materialized(q, a)
}

// setOpMemory: duplicate elimination hashes the output; UNION ALL streams.
func setOpMemory(q *md.Query, s *plan.SetOp) (float64, bool, error) {
	if s.All && s.Type == plan.UnionOp {
		return 0, true, nil
	}
	return materialized(q, s)
}

// buildSideMemory: hash and nested loop joins hold their right input.
func buildSideMemory(q *md.Query, j *plan.Join) (float64, bool, error) {
	return materialized(q, j.Right)
}

func subsetMemory(q *md.Query, s *plan.Subset) (float64, bool, error) {
	rep := s.Representative()
	if rep == nil {
		return 0, false, nil
	}
	return q.Memory(rep)
}

// cumulativeMemory adds the memory of the inputs that run in the same
// phase. A phase transition starts a new phase, so its inputs are not
// counted.
func cumulativeMemory(q *md.Query, n plan.Node) (float64, bool, error) {
	if s, ok := n.(*plan.Subset); ok {
		rep := s.Representative()
		if rep == nil {
			return 0, false, nil
		}
		return q.CumulativeMemoryWithinPhase(rep)
	}
	total, ok, err := q.Memory(n)
	if !ok || err != nil {
		return 0, false, err
	}
	transition, ok, err := q.IsPhaseTransition(n)
	if !ok || err != nil {
		return 0, false, err
	}
	if transition {
		return total, true, nil
	}
	for _, in := range n.Inputs() {
		m, ok, err := q.CumulativeMemoryWithinPhase(in)
		if !ok || err != nil {
			return 0, false, err
		}
		total += m
	}
	return total, true, nil
}

// cumulativeMemorySplit is the memory of one split of the phase.
func cumulativeMemorySplit(q *md.Query, n plan.Node) (float64, bool, error) {
	total, ok, err := q.CumulativeMemoryWithinPhase(n)
	if !ok || err != nil {
		return 0, false, err
	}
	splits, ok, err := q.SplitCount(n)
	if !ok || err != nil {
		return 0, false, err
	}
	if splits < 1 {
		splits = 1
	}
	return total / float64(splits), true, nil
}
