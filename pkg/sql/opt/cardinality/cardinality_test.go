// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cardinality_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/cardinality"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/mdprovider"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optmd/pkg/sql/types"
	"github.com/stretchr/testify/require"
)

var opaqueKind = plan.MustRegisterKind(plan.KindDef{Name: "cardinality-opaque", Parent: plan.RelKind})

// opaque is a leaf nothing is known about.
type opaque struct{}

func (opaque) Kind() plan.Kind     { return opaqueKind }
func (opaque) Inputs() []plan.Node { return nil }
func (opaque) Columns() []plan.Column {
	return []plan.Column{{Name: "x", Type: types.Int, Nullable: true}}
}
func (opaque) String() string { return "opaque" }

func newQuery() *md.Query {
	return md.NewQuery(context.Background(), mdprovider.Default())
}

func scan(rows float64) *plan.Scan {
	return &plan.Scan{Table: &plan.Table{
		Name: "t",
		Cols: []plan.Column{
			{Name: "a", Type: types.Int},
			{Name: "b", Type: types.Int, Nullable: true},
		},
		Stats: plan.TableStats{
			RowCount: rows, HasRowCount: true, DistinctCounts: map[int]float64{1: 10},
		},
		Keys: []opt.ColSet{opt.MakeColSet(0)},
	}}
}

func values(rows ...[]scalar.Datum) *plan.Values {
	return &plan.Values{
		Cols:   []plan.Column{{Name: "x", Type: types.Int}, {Name: "y", Type: types.Int}},
		Tuples: rows,
	}
}

func row(d ...scalar.Datum) []scalar.Datum { return d }

func filter(input plan.Node, cond string) *plan.Filter {
	return &plan.Filter{Input: input, Condition: scalar.MustParse(cond)}
}

func known(t *testing.T, v float64, ok bool, err error) float64 {
	t.Helper()
	require.NoError(t, err)
	require.True(t, ok)
	return v
}

func rowCount(t *testing.T, q *md.Query, n plan.Node) float64 {
	t.Helper()
	v, ok, err := q.RowCount(n)
	return known(t, v, ok, err)
}

func maxRowCount(t *testing.T, q *md.Query, n plan.Node) float64 {
	t.Helper()
	v, ok, err := q.MaxRowCount(n)
	return known(t, v, ok, err)
}

func minRowCount(t *testing.T, q *md.Query, n plan.Node) float64 {
	t.Helper()
	v, ok, err := q.MinRowCount(n)
	return known(t, v, ok, err)
}

// A grouping of a two row literal on one column is estimated to produce a
// single group.
func TestAggregateOverValues(t *testing.T) {
	q := newQuery()
	v := values(row(int64(1), int64(1)), row(int64(2), int64(2)))
	proj := plan.NewProject(v, scalar.Col(0))
	agg := &plan.Aggregate{Input: proj, GroupKey: opt.MakeColSet(0)}

	require.Equal(t, 2.0, rowCount(t, q, v))
	require.Equal(t, 1.0, rowCount(t, q, agg))
	require.Equal(t, 2.0, maxRowCount(t, q, agg))
	require.Equal(t, 1.0, minRowCount(t, q, agg))

	// The population is counted exactly.
	pop, ok, err := q.PopulationSize(v, opt.MakeColSet(0))
	require.Equal(t, 2.0, known(t, pop, ok, err))

	// A scalar aggregation always returns one row.
	scalarAgg := &plan.Aggregate{Input: scan(100), Aggs: []plan.AggCall{{Func: "count"}}}
	require.Equal(t, 1.0, rowCount(t, q, scalarAgg))
	require.Equal(t, 1.0, maxRowCount(t, q, scalarAgg))
}

func TestSortLimit(t *testing.T) {
	q := newQuery()

	// A fetch bounds an input whose row count is unknown; the row count
	// stays unknown.
	limited := &plan.Sort{Input: opaque{}, Fetch: scalar.Int(5)}
	require.Equal(t, 5.0, maxRowCount(t, q, limited))
	_, ok, err := q.RowCount(limited)
	require.NoError(t, err)
	require.False(t, ok)

	s := scan(100)
	require.Equal(t, 5.0, rowCount(t, q, &plan.Sort{Input: s, Fetch: scalar.Int(5)}))
	require.Equal(t, 2.0, rowCount(t, q, &plan.Sort{Input: s, Offset: scalar.Int(98), Fetch: scalar.Int(5)}))
	require.Equal(t, 1.0, rowCount(t, q, &plan.Sort{Input: s, Offset: scalar.Int(500)}))

	// A dynamic fetch leaves the count as it is and bounds nothing.
	dynamic := &plan.Sort{Input: s, Fetch: &scalar.Placeholder{Index: 1}}
	require.Equal(t, 100.0, rowCount(t, q, dynamic))
	require.True(t, math.IsInf(maxRowCount(t, q, dynamic), 1))
	require.Equal(t, 0.0, minRowCount(t, q, dynamic))

	v := values(row(int64(1), int64(1)), row(int64(2), int64(2)), row(int64(3), int64(3)))
	require.Equal(t, 2.0, minRowCount(t, q, &plan.Sort{Input: v, Offset: scalar.Int(1)}))
}

func TestSelectivity(t *testing.T) {
	q := newQuery()
	cond := scalar.MustParse("$0 IS NOT NULL")

	// Nothing is known about the input, so the guess applies.
	sel, ok, err := q.Selectivity(opaque{}, cond)
	require.Equal(t, 0.9, known(t, sel, ok, err))

	s := scan(1000)
	require.Equal(t, 900.0, rowCount(t, q, &plan.Filter{Input: s, Condition: cond}))

	// Equality with a constant uses the distinct count of the column.
	sel, ok, err = q.Selectivity(s, scalar.MustParse("$1 = 3"))
	require.InDelta(t, 0.1, known(t, sel, ok, err), 1e-12)

	// A filter does not count its own condition twice.
	f := filter(s, "$1 = 3")
	sel, ok, err = q.Selectivity(f, scalar.MustParse("$1 = 3"))
	require.Equal(t, 1.0, known(t, sel, ok, err))

	// Literal rows are evaluated.
	v := values(row(int64(1), int64(1)), row(int64(2), int64(2)), row(int64(3), int64(3)), row(int64(4), nil))
	sel, ok, err = q.Selectivity(v, scalar.MustParse("$0 > 2"))
	require.Equal(t, 0.5, known(t, sel, ok, err))

	// Conjuncts over projected columns are pushed down.
	proj := plan.NewProject(s, scalar.Col(1), scalar.MustParse("$0 + 1"))
	sel, ok, err = q.Selectivity(proj, scalar.MustParse("$0 = 3 AND $1 > 4"))
	require.InDelta(t, 0.05, known(t, sel, ok, err), 1e-12)
}

func TestGuessSelectivity(t *testing.T) {
	for _, tc := range []struct {
		pred string
		sel  float64
	}{
		{"$0 = 1 AND $1 > 2", 0.075},
		{"$0 IS NOT NULL", 0.9},
		{"$0 <> 1", 0.5},
		{"f($0)", 0.25},
		{"false", 0},
		{"$0 = 1 AND false", 0},
	} {
		require.InDelta(t, tc.sel, cardinality.GuessSelectivity(scalar.MustParse(tc.pred)), 1e-12, tc.pred)
	}
	require.Equal(t, 1.0, cardinality.GuessSelectivity(nil))
}

func TestNumDistinctVals(t *testing.T) {
	require.Equal(t, 0.0, cardinality.NumDistinctVals(0, 10))
	require.Equal(t, 0.0, cardinality.NumDistinctVals(10, 0))
	require.InDelta(t, 10, cardinality.NumDistinctVals(10, 1e9), 1e-9)
	require.InDelta(t, 1-math.Exp(-1), cardinality.NumDistinctVals(1, 1), 1e-12)
	// Never more than the number selected.
	require.LessOrEqual(t, cardinality.NumDistinctVals(1000, 3), 3.0)
	// Unbounded inputs do not produce NaN.
	inf := cardinality.NumDistinctVals(math.Inf(1), math.Inf(1))
	require.False(t, math.IsNaN(inf) || math.IsInf(inf, 0))
}

func TestPreds(t *testing.T) {
	p1 := scalar.MustParse("$0 = 1 AND $1 > 2")
	p2 := scalar.MustParse("$1 > 2")
	require.Equal(t, "$0 = 1", cardinality.MinusPreds(p1, p2).String())
	require.Nil(t, cardinality.MinusPreds(p2, p1))
	require.Equal(t, "($0 = 1) AND ($1 > 2)", cardinality.UnionPreds(p1, p2).String())
	require.Nil(t, cardinality.UnionPreds(nil, scalar.True))
}

func TestJoinRowCount(t *testing.T) {
	q := newQuery()
	l, r := scan(100), scan(1000)
	join := func(typ plan.JoinType, left, right plan.Node, cond string) *plan.Join {
		return &plan.Join{Type: typ, Left: left, Right: right, Condition: scalar.MustParse(cond)}
	}

	require.InDelta(t, 15000, rowCount(t, q, join(plan.InnerJoin, l, r, "$0 = $2")), 1e-6)
	require.InDelta(t, 15000, rowCount(t, q, join(plan.LeftJoin, l, r, "$0 = $2")), 1e-6)
	require.InDelta(t, 100000*0.15*0.15, rowCount(t, q, join(plan.InnerJoin, l, r, "$0 = $2 AND $1 = $3")), 1e-6)
	require.Equal(t, 1000.0, rowCount(t, q, join(plan.RightJoin, l, r, "$0 = $2 AND $1 = $3 AND $0 = 1")))
	require.InDelta(t, 15, rowCount(t, q, join(plan.SemiJoin, l, r, "$0 = $2")), 1e-9)
	require.True(t, math.IsInf(maxRowCount(t, q, join(plan.InnerJoin, l, r, "true")), 1))

	// An empty input bounds an inner join to no rows, even though the
	// estimate of the empty input is rounded up to one row.
	empty := values()
	five := values(
		row(int64(1), int64(1)), row(int64(2), int64(2)), row(int64(3), int64(3)),
		row(int64(4), int64(4)), row(int64(5), int64(5)),
	)
	inner := join(plan.InnerJoin, empty, five, "true")
	require.Equal(t, 0.0, maxRowCount(t, q, inner))
	require.Equal(t, 1.0, rowCount(t, q, inner))
	// A right join keeps the rows of its right input.
	right := join(plan.RightJoin, empty, five, "true")
	require.Equal(t, 5.0, maxRowCount(t, q, right))
	require.Equal(t, 5.0, rowCount(t, q, right))
	require.Equal(t, 5.0, minRowCount(t, q, right))
	require.Equal(t, 0.0, minRowCount(t, q, join(plan.InnerJoin, five, five, "$0 = $2")))
}

// Outer joins whose inputs have no matching rows return the unmatched rows
// of their preserved sides.
func TestOuterJoinBounds(t *testing.T) {
	one := values(row(int64(1), int64(1)))
	two := values(row(int64(2), int64(2)))
	three := values(row(int64(3), int64(3)), row(int64(4), int64(4)), row(int64(5), int64(5)))
	empty := values()

	for _, tc := range []struct {
		typ         plan.JoinType
		left, right plan.Node
		max         float64
		min         float64
	}{
		{typ: plan.InnerJoin, left: one, right: two, max: 1, min: 0},
		{typ: plan.LeftJoin, left: one, right: two, max: 1, min: 1},
		{typ: plan.RightJoin, left: one, right: two, max: 1, min: 1},
		{typ: plan.FullJoin, left: one, right: two, max: 2, min: 1},
		{typ: plan.FullJoin, left: one, right: three, max: 4, min: 3},
		{typ: plan.FullJoin, left: three, right: three, max: 9, min: 3},
		{typ: plan.FullJoin, left: empty, right: three, max: 3, min: 3},
		{typ: plan.FullJoin, left: empty, right: empty, max: 0, min: 0},
		{typ: plan.LeftJoin, left: three, right: empty, max: 3, min: 3},
		{typ: plan.RightJoin, left: empty, right: three, max: 3, min: 3},
		{typ: plan.LeftJoin, left: empty, right: three, max: 0, min: 0},
	} {
		t.Run(fmt.Sprintf("%s/%s/%s", tc.typ, tc.left, tc.right), func(t *testing.T) {
			q := newQuery()
			j := &plan.Join{
				Type: tc.typ, Left: tc.left, Right: tc.right, Condition: scalar.MustParse("$0 = $2"),
			}
			maxRows := maxRowCount(t, q, j)
			require.Equal(t, tc.max, maxRows)
			require.Equal(t, tc.min, minRowCount(t, q, j))
			rows := rowCount(t, q, j)
			require.LessOrEqual(t, rows, math.Max(maxRows, 1))
			require.GreaterOrEqual(t, rows, tc.min)
		})
	}
}

func TestSetOps(t *testing.T) {
	q := newQuery()
	s := scan(100)
	v := values(row(int64(1), int64(1)), row(int64(2), int64(2)))
	setOp := func(typ plan.SetOpType, all bool) *plan.SetOp {
		return &plan.SetOp{Type: typ, All: all, Children: []plan.Node{s, v}}
	}

	require.Equal(t, 102.0, rowCount(t, q, setOp(plan.UnionOp, true)))
	require.Equal(t, 2.0, rowCount(t, q, setOp(plan.IntersectOp, false)))
	require.Equal(t, 99.0, rowCount(t, q, setOp(plan.MinusOp, false)))

	require.True(t, math.IsInf(maxRowCount(t, q, setOp(plan.UnionOp, true)), 1))
	require.Equal(t, 2.0, maxRowCount(t, q, setOp(plan.IntersectOp, false)))
	require.Equal(t, 2.0, minRowCount(t, q, setOp(plan.UnionOp, true)))
	require.Equal(t, 1.0, minRowCount(t, q, setOp(plan.UnionOp, false)))
	require.Equal(t, 0.0, minRowCount(t, q, setOp(plan.MinusOp, false)))

	// The selectivity of a union is weighted by the row counts of its inputs.
	union := &plan.SetOp{Type: plan.UnionOp, All: true, Children: []plan.Node{
		values(row(int64(1), int64(1)), row(int64(3), int64(3))),
		values(row(int64(3), int64(3)), row(int64(4), int64(4))),
	}}
	sel, ok, err := q.Selectivity(union, scalar.MustParse("$0 = 3"))
	require.Equal(t, 0.5, known(t, sel, ok, err))
}

func TestDistinctRowCount(t *testing.T) {
	q := newQuery()
	s := scan(100)

	d, ok, err := q.DistinctRowCount(s, opt.MakeColSet(0), nil)
	require.Equal(t, 100.0, known(t, d, ok, err))
	d, ok, err = q.DistinctRowCount(s, opt.MakeColSet(1), nil)
	require.InDelta(t, cardinality.NumDistinctVals(10, 100), known(t, d, ok, err), 1e-9)
	d, ok, err = q.DistinctRowCount(s, opt.ColSet{}, nil)
	require.Equal(t, 1.0, known(t, d, ok, err))

	// Grouping sets multiply the number of groups.
	agg := &plan.Aggregate{
		Input: s, GroupKey: opt.MakeColSet(1),
		GroupingSets: []opt.ColSet{opt.MakeColSet(1), {}},
	}
	require.InDelta(t, 2*cardinality.NumDistinctVals(10, 100), rowCount(t, q, agg), 1e-9)

	// Without statistics a tenth of the rows are assumed to be distinct.
	unknownAgg := &plan.Aggregate{Input: plan.NewProject(s, scalar.MustParse("$0 + $1")), GroupKey: opt.MakeColSet(0)}
	rows := rowCount(t, q, unknownAgg)
	require.Greater(t, rows, 0.0)
	require.LessOrEqual(t, rows, 100.0)

	pop, ok, err := q.PopulationSize(s, opt.MakeColSet(0))
	require.Equal(t, 100.0, known(t, pop, ok, err))
}

func TestSubsetRowCount(t *testing.T) {
	q := newQuery()
	s := scan(100)
	group := &plan.Subset{Name: "g"}
	group.Members = []plan.Node{s, filter(s, "$0 > 1"), filter(group, "$1 > 1")}
	require.Equal(t, 50.0, rowCount(t, q, group))
	require.True(t, math.IsInf(maxRowCount(t, q, group), 1))
	require.Equal(t, 0.0, minRowCount(t, q, group))

	// A group whose only member depends on the group itself.
	lonely := &plan.Subset{Name: "h"}
	lonely.Members = []plan.Node{filter(lonely, "$0 > 1")}
	require.Equal(t, 1e6, rowCount(t, q, lonely))
}
