// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package scalar_test

import (
	"testing"

	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{in: "$0 > 5", expected: "$0 > 5"},
		{in: "5 < $0", expected: "5 < $0"},
		{in: "$0 = $2 AND $1 IS NOT NULL", expected: "($0 = $2) AND ($1 IS NOT NULL)"},
		{in: "$0 > 1 OR $0 < -1", expected: "($0 > 1) OR ($0 < -1)"},
		{in: "NOT $3", expected: "NOT $3"},
		{in: "NOT ($0 IS NULL)", expected: "NOT ($0 IS NULL)"},
		{in: "$0 + 1 >= $1 * 2", expected: "($0 + 1) >= ($1 * 2)"},
		{in: "lower($3) = 'it''s'", expected: "lower($3) = 'it''s'"},
		{in: "random() < 0.5", expected: "random() < 0.5"},
		{in: "t#0.$1 <= ?2", expected: "t#0.$1 <= ?2"},
		{in: "$1 IS NOT DISTINCT FROM NULL", expected: "$1 IS NOT DISTINCT FROM NULL"},
		{in: "TRUE", expected: "true"},
		{in: "2.0 = 2e3", expected: "2.0 = 2000.0"},
		{in: "(($0))", expected: "$0"},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			e, err := scalar.Parse(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.expected, e.String())

			again, err := scalar.Parse(e.String())
			require.NoError(t, err)
			require.Equal(t, e.String(), again.String())
		})
	}

	for _, bad := range []string{"", "$0 >", "(", "$0 IS", "foo", "'abc", "$0 $1", "t#x.$1"} {
		_, err := scalar.Parse(bad)
		require.Error(t, err, "%q", bad)
	}
}

func TestConjunctsAndComposition(t *testing.T) {
	e := scalar.MustParse("$0 > 5 AND ($1 < 3 AND $0 > 5) AND TRUE")
	require.Len(t, scalar.Conjuncts(e), 3)

	and := scalar.And(e, scalar.MustParse("$2 = 1"))
	require.Equal(t, "($0 > 5) AND ($1 < 3) AND ($2 = 1)", and.String())
	require.True(t, scalar.IsAlwaysTrue(scalar.And()))
	require.True(t, scalar.IsAlwaysFalse(scalar.And(and, scalar.False)))
	require.Nil(t, scalar.Conjuncts(nil))

	or := scalar.Or(scalar.MustParse("$0 = 1 OR $0 = 2"), scalar.MustParse("$0 = 1"), scalar.False)
	require.Equal(t, "($0 = 1) OR ($0 = 2)", or.String())
	require.True(t, scalar.IsAlwaysTrue(scalar.Or(or, scalar.True)))
	require.True(t, scalar.IsAlwaysFalse(scalar.Or()))
}

func TestTraversal(t *testing.T) {
	e := scalar.MustParse("($0 + $4) > $2 AND f($7) = 1")
	require.Equal(t, "(0,2,4,7)", scalar.InputRefs(e).String())
	require.True(t, scalar.IsDeterministic(e))
	require.False(t, scalar.IsConstant(e))
	require.True(t, scalar.IsConstant(scalar.MustParse("1 + 2 > 2")))
	require.False(t, scalar.IsConstant(scalar.MustParse("?1 > 2")))
	require.False(t, scalar.IsDeterministic(scalar.MustParse("random() > $0")))

	shifted := scalar.Shift(e, 3)
	require.Equal(t, "(($3 + $7) > $5) AND (f($10) = 1)", shifted.String())
	// The original is not modified.
	require.Equal(t, "(($0 + $4) > $2) AND (f($7) = 1)", e.String())

	remapped, ok := scalar.RemapMap(e, map[int]int{0: 1, 2: 2, 4: 0, 7: 3})
	require.True(t, ok)
	require.Equal(t, "(($1 + $0) > $2) AND (f($3) = 1)", remapped.String())
	_, ok = scalar.RemapMap(e, map[int]int{0: 1})
	require.False(t, ok)

	lineage := scalar.ReplaceColumns(scalar.MustParse("$1 > 2"), func(i int) scalar.Expr {
		return &scalar.TableColumnRef{Table: scalar.TableRef{Name: "t"}, Index: i}
	})
	require.Equal(t, "t#0.$1 > 2", lineage.String())
	swapped := scalar.SwapTableRefs(lineage, map[scalar.TableRef]scalar.TableRef{
		{Name: "t"}: {Name: "t", Entity: 1},
	})
	require.Equal(t, "t#1.$1 > 2", swapped.String())

	l, r, ok := scalar.ColumnEquality(scalar.MustParse("$1 = $4"))
	require.True(t, ok)
	require.Equal(t, []int{1, 4}, []int{l, r})
	_, _, ok = scalar.ColumnEquality(scalar.MustParse("$1 = 4"))
	require.False(t, ok)
}

func TestNullRejecting(t *testing.T) {
	testCases := []struct {
		pred     string
		col      int
		expected bool
	}{
		{"$0 > 5", 0, true},
		{"$0 > 5", 1, false},
		{"$0 + 1 = $1", 0, true},
		{"$0 IS NULL", 0, false},
		{"$0 IS NOT NULL", 0, true},
		{"($0 > 5) OR ($0 < 1)", 0, true},
		{"($0 > 5) OR ($1 < 1)", 0, false},
		{"($0 > 5) AND ($1 < 1)", 1, true},
		{"f($0) = 1", 0, false},
		{"$0 IS NOT DISTINCT FROM 1", 0, false},
	}
	for _, tc := range testCases {
		e := scalar.MustParse(tc.pred)
		require.Equal(t, tc.expected, scalar.NullRejecting(e, tc.col), "%s on $%d", tc.pred, tc.col)
	}
}
