// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package explain answers the metadata used when printing plans.
package explain

import (
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/props"
)

// Provider answers NodeTypeHistogram and ExplainVisibility.
var Provider = md.NewTable("explain")

func init() {
	Provider.
		Register(md.NodeTypeHistogram, plan.RelKind, md.Func0(nodeTypes)).
		Register(md.NodeTypeHistogram, plan.SubsetKind, md.Func0(subsetNodeTypes)).
		Register(md.ExplainVisibility, plan.RelKind, md.Func1(visible)).
		Register(md.ExplainVisibility, plan.SubsetKind, md.Func1(subsetVisible))
}

// nodeTypes counts n and the nodes below it by kind.
func nodeTypes(q *md.Query, n plan.Node) (props.NodeTypeCounts, bool, error) {
	res := props.NodeTypeCounts{n.Kind().Name(): 1}
	for _, in := range n.Inputs() {
		counts, ok, err := q.NodeTypeHistogram(in)
		if !ok || err != nil {
			return nil, false, err
		}
		res.Add(counts)
	}
	return res, true, nil
}

// subsetNodeTypes counts the representative plan; the subset is not a node
// of the plan.
func subsetNodeTypes(q *md.Query, s *plan.Subset) (props.NodeTypeCounts, bool, error) {
	rep := s.Representative()
	if rep == nil {
		return nil, false, nil
	}
	return q.NodeTypeHistogram(rep)
}

func visible(*md.Query, plan.Node, props.ExplainLevel) (bool, bool, error) {
	return true, true, nil
}

// subsetVisible: subsets are search structure, shown only with every
// attribute.
func subsetVisible(_ *md.Query, _ *plan.Subset, level props.ExplainLevel) (bool, bool, error) {
	return level >= props.AllAttributes, true, nil
}
