// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package distribution_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/mdprovider"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optmd/pkg/sql/types"
	"github.com/stretchr/testify/require"
)

func TestDistribution(t *testing.T) {
	q := md.NewQuery(context.Background(), mdprovider.Default())
	scan := &plan.Scan{Table: &plan.Table{
		Name:         "t",
		Cols:         []plan.Column{{Name: "a", Type: types.Int}, {Name: "b", Type: types.Int}},
		Distribution: opt.HashDist(1),
	}}
	local := &plan.Scan{Table: &plan.Table{Name: "u", Cols: scan.Table.Cols}}

	dist := func(n plan.Node) string {
		t.Helper()
		d, ok, err := q.Distribution(n)
		require.NoError(t, err)
		require.True(t, ok)
		return d.String()
	}

	require.Equal(t, "hash(1)", dist(scan))
	require.Equal(t, "singleton", dist(local))
	require.Equal(t, "broadcast", dist(&plan.Values{Cols: scan.Table.Cols}))
	require.Equal(t, "hash(1)", dist(&plan.Filter{Input: scan, Condition: scalar.MustParse("$0 = 1")}))
	require.Equal(t, "hash(1)", dist(&plan.Sort{Input: scan, Ordering: opt.Ordering{opt.MakeOrderingColumn(0, false)}}))
	require.Equal(t, "hash(1)", dist(&plan.Convert{Input: scan}))

	// The key column moves to output 0.
	require.Equal(t, "hash(0)", dist(plan.NewProject(scan, scalar.Col(1), scalar.Col(0))))
	// The key column is not projected.
	require.Equal(t, "any", dist(plan.NewProject(scan, scalar.Col(0))))
	require.Equal(t, "hash(0)", dist(&plan.Aggregate{Input: scan, GroupKey: opt.MakeColSet(1)}))

	require.Equal(t, "broadcast", dist(&plan.Exchange{Input: scan, Distribution: opt.Broadcast}))
	require.Equal(t, "hash(0)", dist(&plan.Exchange{
		Input: scan, Distribution: opt.HashDist(0), Ordering: opt.Ordering{opt.MakeOrderingColumn(0, false)},
	}))

	join := &plan.Join{Type: plan.InnerJoin, Left: scan, Right: scan, Condition: scalar.MustParse("$0 = $2")}
	require.Equal(t, "singleton", dist(join))
	require.Equal(t, "singleton", dist(&plan.SetOp{Type: plan.UnionOp, Children: []plan.Node{scan, local}}))

	s := &plan.Subset{Name: "g", Original: scan, Members: []plan.Node{scan}, Distribution: opt.HashDist(0, 1)}
	require.Equal(t, "hash(0,1)", dist(s))
}
