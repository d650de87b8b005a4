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
		Register(md.IsPhaseTransition, plan.RelKind, md.Func0(noTransition)).
		Register(md.IsPhaseTransition, plan.ScanKind, md.Func0(transition)).
		Register(md.IsPhaseTransition, plan.ValuesKind, md.Func0(transition)).
		Register(md.IsPhaseTransition, plan.ExchangeKind, md.Func0(transition)).
		Register(md.IsPhaseTransition, plan.SubsetKind, md.Func0(subsetTransition)).
		Register(md.SplitCount, plan.RelKind, md.Func0(oneSplit)).
		Register(md.SplitCount, plan.SingleInputKind, md.Func0(inputSplits)).
		Register(md.SplitCount, plan.ExchangeKind, md.Func0(exchangeSplits)).
		Register(md.SplitCount, plan.SubsetKind, md.Func0(subsetSplits))
}

func noTransition(*md.Query, plan.Node) (bool, bool, error) { return false, true, nil }

// transition: scans and literals start a phase; an exchange ends one and
// starts another.
func transition(*md.Query, plan.Node) (bool, bool, error) { return true, true, nil }

func subsetTransition(q *md.Query, s *plan.Subset) (bool, bool, error) {
	rep := s.Representative()
	if rep == nil {
		return false, false, nil
	}
	return q.IsPhaseTransition(rep)
}

func oneSplit(*md.Query, plan.Node) (int, bool, error) { return 1, true, nil }

// inputSplits: operators above an exchange run on each of its partitions.
func inputSplits(q *md.Query, n plan.Node) (int, bool, error) {
	return q.SplitCount(n.Inputs()[0])
}

func exchangeSplits(_ *md.Query, e *plan.Exchange) (int, bool, error) {
	if e.Partitions > 0 {
		return e.Partitions, true, nil
	}
	return 1, true, nil
}

func subsetSplits(q *md.Query, s *plan.Subset) (int, bool, error) {
	rep := s.Representative()
	if rep == nil {
		return 0, false, nil
	}
	return q.SplitCount(rep)
}
