// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package size_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/mdprovider"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optmd/pkg/sql/opt/size"
	"github.com/cockroachdb/optmd/pkg/sql/types"
	"github.com/stretchr/testify/require"
)

func testScan() *plan.Scan {
	return &plan.Scan{Table: &plan.Table{
		Name: "t",
		Cols: []plan.Column{
			{Name: "a", Type: types.Int},
			{Name: "s", Type: types.MakeString(10)},
			{Name: "f", Type: types.T{Family: types.FloatFamily, Width: 4}},
		},
		Stats: plan.TableStats{RowCount: 100, HasRowCount: true},
	}}
}

func columnSizes(t *testing.T, q *md.Query, n plan.Node) string {
	t.Helper()
	s, ok, err := q.AverageColumnSizes(n)
	require.NoError(t, err)
	require.True(t, ok)
	return s.String()
}

func rowSize(t *testing.T, q *md.Query, n plan.Node) float64 {
	t.Helper()
	s, ok, err := q.AverageRowSize(n)
	require.NoError(t, err)
	require.True(t, ok)
	return s
}

func TestTypeSize(t *testing.T) {
	for _, tc := range []struct {
		typ  types.T
		size float64
		ok   bool
	}{
		{types.Bool, 1, true},
		{types.Int, 8, true},
		{types.Int2, 2, true},
		{types.Float, 8, true},
		{types.Date, 4, true},
		{types.Timestamp, 8, true},
		{types.MakeString(10), 20, true},
		{types.MakeString(500), 100, true},
		{types.String, 100, true},
		{types.Unknown, 0, false},
	} {
		s, ok := size.TypeSize(tc.typ)
		require.Equal(t, tc.ok, ok, "%s", tc.typ)
		require.Equal(t, tc.size, s, "%s", tc.typ)
	}
	require.Equal(t, float64(6), size.ValueSize(types.String, "abc"))
	require.Equal(t, float64(3), size.ValueSize(types.Bytes, "abc"))
	require.Equal(t, float64(1), size.ValueSize(types.Int, nil))
}

func TestColumnSizes(t *testing.T) {
	q := md.NewQuery(context.Background(), mdprovider.Default())
	scan := testScan()

	require.Equal(t, "[8, 20, 4]", columnSizes(t, q, scan))
	require.Equal(t, float64(32), rowSize(t, q, scan))
	require.Equal(t, "[8, 20, 4]", columnSizes(t, q, &plan.Filter{Input: scan, Condition: scalar.MustParse("$0 > 1")}))

	vals := &plan.Values{
		Cols:   []plan.Column{{Name: "x", Type: types.Int}, {Name: "y", Type: types.String, Nullable: true}},
		Tuples: [][]scalar.Datum{{int64(1), "ab"}, {int64(2), nil}},
	}
	require.Equal(t, "[8, 2.5]", columnSizes(t, q, vals))
	require.Equal(t, "[8, 100]", columnSizes(t, q, &plan.Values{Cols: vals.Cols}))

	proj := plan.NewProject(scan, scalar.Col(1), scalar.MustParse("$0 + 1"), scalar.MustParse("$0 > 1"), scalar.Str("xyz"))
	require.Equal(t, "[20, 8, 1, 6]", columnSizes(t, q, proj))
	require.Equal(t, float64(35), rowSize(t, q, proj))

	agg := &plan.Aggregate{Input: scan, GroupKey: opt.MakeColSet(1), Aggs: []plan.AggCall{{Func: "count"}}}
	require.Equal(t, "[20, 8]", columnSizes(t, q, agg))

	join := &plan.Join{Type: plan.InnerJoin, Left: scan, Right: vals, Condition: scalar.MustParse("$0 = $3")}
	require.Equal(t, "[8, 20, 4, 8, 2.5]", columnSizes(t, q, join))
	semi := &plan.Join{Type: plan.SemiJoin, Left: scan, Right: vals, Condition: scalar.MustParse("$0 = $3")}
	require.Equal(t, "[8, 20, 4]", columnSizes(t, q, semi))

	narrow := plan.NewProject(scan, scalar.Col(0), scalar.Col(1))
	union := &plan.SetOp{Type: plan.UnionOp, Children: []plan.Node{narrow, vals}}
	require.Equal(t, "[8, 11.25]", columnSizes(t, q, union))
	minus := &plan.SetOp{Type: plan.MinusOp, Children: []plan.Node{vals, narrow}}
	require.Equal(t, "[8, 2.5]", columnSizes(t, q, minus))

	s := &plan.Subset{Name: "g", Original: scan, Members: []plan.Node{scan}}
	require.Equal(t, float64(32), rowSize(t, q, s))
}

func memory(t *testing.T, q *md.Query, m md.Method, n plan.Node) float64 {
	t.Helper()
	res, err := q.Get(n, m)
	require.NoError(t, err)
	require.NotNil(t, res, "%s on %s", m, n)
	return res.(float64)
}

func TestMemory(t *testing.T) {
	q := md.NewQuery(context.Background(), mdprovider.Default())
	scan := testScan()
	sorted := &plan.Sort{Input: scan, Ordering: opt.Ordering{opt.MakeOrderingColumn(0, false)}}
	limited := &plan.Sort{Input: scan, Fetch: scalar.Int(10)}

	require.Equal(t, float64(0), memory(t, q, md.Memory, scan))
	require.Equal(t, float64(3200), memory(t, q, md.Memory, sorted))
	require.Equal(t, float64(0), memory(t, q, md.Memory, limited))

	hash := &plan.Join{Algorithm: plan.HashJoinAlgo, Type: plan.InnerJoin, Left: scan, Right: scan, Condition: scalar.MustParse("$0 = $3")}
	merge := &plan.Join{Algorithm: plan.MergeJoinAlgo, Type: plan.InnerJoin, Left: scan, Right: scan, Condition: scalar.MustParse("$0 = $3")}
	require.Equal(t, float64(3200), memory(t, q, md.Memory, hash))
	require.Equal(t, float64(0), memory(t, q, md.Memory, merge))

	unionAll := &plan.SetOp{Type: plan.UnionOp, All: true, Children: []plan.Node{scan, scan}}
	require.Equal(t, float64(0), memory(t, q, md.Memory, unionAll))

	// The sort and the hash join run in the phase started by the scans.
	top := &plan.Sort{Input: hash, Ordering: opt.Ordering{opt.MakeOrderingColumn(0, false)}}
	rows, ok, err := q.RowCount(hash)
	require.NoError(t, err)
	require.True(t, ok)
	want := rows*64 + 3200
	require.InDelta(t, want, memory(t, q, md.CumulativeMemoryWithinPhase, top), 1e-9)
}

func TestParallelism(t *testing.T) {
	q := md.NewQuery(context.Background(), mdprovider.Default())
	scan := testScan()
	exchange := &plan.Exchange{Input: scan, Distribution: opt.HashDist(0), Partitions: 4}
	sorted := &plan.Sort{Input: exchange, Ordering: opt.Ordering{opt.MakeOrderingColumn(0, false)}}

	isTransition := func(n plan.Node) bool {
		res, ok, err := q.IsPhaseTransition(n)
		require.NoError(t, err)
		require.True(t, ok)
		return res
	}
	require.True(t, isTransition(scan))
	require.True(t, isTransition(&plan.Values{Cols: scan.Table.Cols}))
	require.True(t, isTransition(exchange))
	require.True(t, isTransition(&plan.Exchange{Input: scan, Ordering: opt.Ordering{opt.MakeOrderingColumn(0, false)}}))
	require.False(t, isTransition(sorted))

	splits := func(n plan.Node) int {
		res, ok, err := q.SplitCount(n)
		require.NoError(t, err)
		require.True(t, ok)
		return res
	}
	require.Equal(t, 1, splits(scan))
	require.Equal(t, 4, splits(exchange))
	require.Equal(t, 4, splits(sorted))
	require.Equal(t, 1, splits(&plan.Exchange{Input: scan}))

	// The exchange starts the sort's phase: its input is not counted.
	require.Equal(t, float64(3200), memory(t, q, md.CumulativeMemoryWithinPhase, sorted))
	require.Equal(t, float64(800), memory(t, q, md.CumulativeMemoryWithinPhaseSplit, sorted))
}
