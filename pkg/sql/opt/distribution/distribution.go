// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package distribution derives the physical placement of a node's rows.
package distribution

import (
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
)

// Provider answers Distribution.
var Provider = md.NewTable("distribution")

func init() {
	Provider.
		Register(md.Distribution, plan.RelKind, md.Func0(singleton)).
		Register(md.Distribution, plan.ScanKind, md.Func0(scanDistribution)).
		Register(md.Distribution, plan.ValuesKind, md.Func0(valuesDistribution)).
		Register(md.Distribution, plan.SingleInputKind, md.Func0(inputDistribution)).
		Register(md.Distribution, plan.ProjectKind, md.Func0(projectDistribution)).
		Register(md.Distribution, plan.AggregateKind, md.Func0(aggregateDistribution)).
		Register(md.Distribution, plan.ExchangeKind, md.Func0(exchangeDistribution)).
		Register(md.Distribution, plan.SubsetKind, md.Func0(subsetDistribution))
}

// singleton is the answer for joins, set operations and anything else not
// known to preserve a placement.
func singleton(*md.Query, plan.Node) (opt.Distribution, bool, error) {
	return opt.Singleton, true, nil
}

// scanDistribution is the table placement; a table without one lives in a
// single place.
func scanDistribution(_ *md.Query, s *plan.Scan) (opt.Distribution, bool, error) {
	if s.Table.Distribution.Type == opt.AnyDistribution {
		return opt.Singleton, true, nil
	}
	return s.Table.Distribution, true, nil
}

// valuesDistribution: literals are available everywhere.
func valuesDistribution(*md.Query, *plan.Values) (opt.Distribution, bool, error) {
	return opt.Broadcast, true, nil
}

func inputDistribution(q *md.Query, n plan.Node) (opt.Distribution, bool, error) {
	return q.Distribution(n.Inputs()[0])
}

func projectDistribution(q *md.Query, p *plan.Project) (opt.Distribution, bool, error) {
	d, ok, err := q.Distribution(p.Input)
	if !ok || err != nil {
		return opt.Distribution{}, false, err
	}
	return d.Remap(p.InputToOutput()), true, nil
}

func aggregateDistribution(q *md.Query, a *plan.Aggregate) (opt.Distribution, bool, error) {
	d, ok, err := q.Distribution(a.Input)
	if !ok || err != nil {
		return opt.Distribution{}, false, err
	}
	return d.Remap(a.InputToOutput()), true, nil
}

func exchangeDistribution(_ *md.Query, e *plan.Exchange) (opt.Distribution, bool, error) {
	return e.Distribution, true, nil
}

func subsetDistribution(_ *md.Query, s *plan.Subset) (opt.Distribution, bool, error) {
	return s.Distribution, true, nil
}
