// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package lineage_test

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

func scan(name string) *plan.Scan {
	return &plan.Scan{Table: &plan.Table{
		Name: name,
		Cols: []plan.Column{{Name: "a", Type: types.Int}, {Name: "b", Type: types.Int}},
	}}
}

func tableRefs(t *testing.T, q *md.Query, n plan.Node) string {
	t.Helper()
	refs, ok, err := q.TableReferences(n)
	require.NoError(t, err)
	require.True(t, ok)
	return refs.String()
}

func lineageOf(t *testing.T, q *md.Query, n plan.Node, e string) ([]string, bool) {
	t.Helper()
	res, ok, err := q.ExpressionLineage(n, scalar.MustParse(e))
	require.NoError(t, err)
	out := []string{}
	for _, x := range res {
		out = append(out, x.String())
	}
	return out, ok
}

func parsed(list ...string) []string {
	res := []string{}
	for _, s := range list {
		res = append(res, scalar.MustParse(s).String())
	}
	return res
}

func TestTableReferences(t *testing.T) {
	q := md.NewQuery(context.Background(), mdprovider.Default())
	tab, other := scan("t"), scan("u")

	require.Equal(t, "[t#0]", tableRefs(t, q, tab))
	require.Equal(t, "[t#0]", tableRefs(t, q, &plan.Filter{Input: tab, Condition: scalar.MustParse("$0 > 1")}))
	require.Equal(t, "[]", tableRefs(t, q, &plan.Values{Cols: tab.Table.Cols}))

	self := &plan.Join{Type: plan.InnerJoin, Left: tab, Right: tab, Condition: scalar.MustParse("$0 = $2")}
	require.Equal(t, "[t#0, t#1]", tableRefs(t, q, self))

	// The right input already reads t twice; both occurrences move past the
	// left one.
	nested := &plan.Join{Type: plan.InnerJoin, Left: tab, Right: self, Condition: scalar.MustParse("$0 = $2")}
	require.Equal(t, "[t#0, t#1, t#2]", tableRefs(t, q, nested))

	union := &plan.SetOp{Type: plan.UnionOp, Children: []plan.Node{tab, other, tab}}
	require.Equal(t, "[t#0, t#1, u#0]", tableRefs(t, q, union))

	s := &plan.Subset{Name: "g", Original: self, Members: []plan.Node{self}}
	require.Equal(t, "[t#0, t#1]", tableRefs(t, q, s))
}

func TestExpressionLineage(t *testing.T) {
	q := md.NewQuery(context.Background(), mdprovider.Default())
	tab := scan("t")

	got, ok := lineageOf(t, q, tab, "$1 + 1")
	require.True(t, ok)
	require.Equal(t, parsed("t#0.$1 + 1"), got)

	// No column references: the expression is its own lineage.
	got, ok = lineageOf(t, q, tab, "1 + 2")
	require.True(t, ok)
	require.Equal(t, parsed("1 + 2"), got)

	proj := plan.NewProject(tab, scalar.MustParse("$1 * 2"), scalar.Col(0))
	got, ok = lineageOf(t, q, proj, "$0 > $1")
	require.True(t, ok)
	require.Equal(t, parsed("(t#0.$1 * 2) > t#0.$0"), got)

	sort := &plan.Sort{Input: proj, Ordering: opt.Ordering{opt.MakeOrderingColumn(0, false)}}
	got, ok = lineageOf(t, q, sort, "$1")
	require.True(t, ok)
	require.Equal(t, parsed("t#0.$0"), got)

	agg := &plan.Aggregate{Input: tab, GroupKey: opt.MakeColSet(1), Aggs: []plan.AggCall{{Func: "count"}}}
	got, ok = lineageOf(t, q, agg, "$0")
	require.True(t, ok)
	require.Equal(t, parsed("t#0.$1"), got)
	_, ok = lineageOf(t, q, agg, "$1")
	require.False(t, ok)

	_, ok = lineageOf(t, q, &plan.Values{Cols: tab.Table.Cols}, "$0")
	require.False(t, ok)
}

func TestJoinLineage(t *testing.T) {
	q := md.NewQuery(context.Background(), mdprovider.Default())
	tab := scan("t")
	join := func(typ plan.JoinType) *plan.Join {
		return &plan.Join{Type: typ, Left: tab, Right: tab, Condition: scalar.MustParse("$0 = $2")}
	}

	got, ok := lineageOf(t, q, join(plan.InnerJoin), "$0 = $3")
	require.True(t, ok)
	require.Equal(t, parsed("t#0.$0 = t#1.$1"), got)

	got, ok = lineageOf(t, q, join(plan.LeftJoin), "$1")
	require.True(t, ok)
	require.Equal(t, parsed("t#0.$1"), got)
	_, ok = lineageOf(t, q, join(plan.LeftJoin), "$2")
	require.False(t, ok)

	_, ok = lineageOf(t, q, join(plan.RightJoin), "$0")
	require.False(t, ok)
	got, ok = lineageOf(t, q, join(plan.RightJoin), "$2")
	require.True(t, ok)
	require.Equal(t, parsed("t#1.$0"), got)

	_, ok = lineageOf(t, q, join(plan.FullJoin), "$0")
	require.False(t, ok)

	got, ok = lineageOf(t, q, join(plan.SemiJoin), "$1")
	require.True(t, ok)
	require.Equal(t, parsed("t#0.$1"), got)
}

func TestUnionLineage(t *testing.T) {
	q := md.NewQuery(context.Background(), mdprovider.Default())
	tab, other := scan("t"), scan("u")
	union := &plan.SetOp{Type: plan.UnionOp, All: true, Children: []plan.Node{tab, other, tab}}

	got, ok := lineageOf(t, q, union, "$0")
	require.True(t, ok)
	require.Equal(t, parsed("t#0.$0", "u#0.$0", "t#1.$0"), got)

	// Every combination of origins.
	got, ok = lineageOf(t, q, union, "$0 < $1")
	require.True(t, ok)
	require.Len(t, got, 9)
	require.Contains(t, got, scalar.MustParse("u#0.$0 < t#1.$1").String())

	// A partial list of origins is not an answer.
	bounded := md.NewQuery(context.Background(), mdprovider.Default(), md.WithMaxSubstitutions(4))
	_, ok = lineageOf(t, bounded, union, "$0 < $1")
	require.False(t, ok)
	got, ok = lineageOf(t, bounded, union, "$0")
	require.True(t, ok)
	require.Len(t, got, 3)
	exact := md.NewQuery(context.Background(), mdprovider.Default(), md.WithMaxSubstitutions(9))
	got, ok = lineageOf(t, exact, union, "$0 < $1")
	require.True(t, ok)
	require.Len(t, got, 9)
}

func TestAllPredicates(t *testing.T) {
	q := md.NewQuery(context.Background(), mdprovider.Default())
	tab := scan("t")
	left := &plan.Filter{Input: tab, Condition: scalar.MustParse("$0 > 1")}
	right := &plan.Filter{Input: tab, Condition: scalar.MustParse("$1 < 3")}
	join := &plan.Join{Type: plan.InnerJoin, Left: left, Right: right, Condition: scalar.MustParse("$0 = $2")}
	proj := plan.NewProject(join, scalar.Col(3))

	all, ok, err := q.AllPredicates(proj)
	require.NoError(t, err)
	require.True(t, ok)
	want := parsed("t#0.$0 > 1", "t#1.$1 < 3", "t#0.$0 = t#1.$0")
	got := []string{}
	for _, e := range all.PulledUp {
		got = append(got, e.String())
	}
	require.Equal(t, want, got)

	// Outer joins are not understood.
	outer := &plan.Join{Type: plan.LeftJoin, Left: left, Right: right, Condition: scalar.MustParse("$0 = $2")}
	_, ok, err = q.AllPredicates(outer)
	require.NoError(t, err)
	require.False(t, ok)

	union := &plan.SetOp{Type: plan.UnionOp, Children: []plan.Node{left, left}}
	all, ok, err = q.AllPredicates(union)
	require.NoError(t, err)
	require.True(t, ok)
	got = got[:0]
	for _, e := range all.PulledUp {
		got = append(got, e.String())
	}
	require.Equal(t, parsed("t#0.$0 > 1", "t#1.$0 > 1"), got)
}
