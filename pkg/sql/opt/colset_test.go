// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestColSet(t *testing.T) {
	for _, mVal := range []int{1, 8, 30, smallCutoff, 2 * smallCutoff, 4 * smallCutoff} {
		m := mVal
		t.Run(fmt.Sprintf("%d", m), func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(m)))
			in := make([]bool, m)
			forEachRes := make([]bool, m)

			var s ColSet
			for i := 0; i < 1000; i++ {
				v := rng.Intn(m)
				if rng.Intn(2) == 0 {
					in[v] = true
					s.Add(v)
				} else {
					in[v] = false
					s.Remove(v)
				}
				empty := true
				count := 0
				for j := 0; j < m; j++ {
					empty = empty && !in[j]
					if in[j] {
						count++
					}
					if in[j] != s.Contains(j) {
						t.Fatalf("incorrect result for Contains(%d), expected %t", j, in[j])
					}
				}
				if empty != s.Empty() {
					t.Fatalf("incorrect result for Empty(), expected %t", empty)
				}
				if count != s.Len() {
					t.Fatalf("incorrect result for Len(), expected %d", count)
				}
				for j := range forEachRes {
					forEachRes[j] = false
				}
				s.ForEach(func(j int) {
					forEachRes[j] = true
				})
				for j := 0; j < m; j++ {
					if in[j] != forEachRes[j] {
						t.Fatalf("incorrect ForEachResult for %d (%t, expected %t)", j, forEachRes[j], in[j])
					}
				}
				// Cross-check Ordered and Next.
				ordered := s.Ordered()
				idx := 0
				for n, ok := s.Next(0); ok; n, ok = s.Next(n + 1) {
					if idx >= len(ordered) || ordered[idx] != n {
						t.Fatalf("Next and Ordered disagree at %d", n)
					}
					idx++
				}
				if idx != len(ordered) {
					t.Fatalf("Next visited %d elements, expected %d", idx, len(ordered))
				}
				c := s.Copy()
				if !c.Equals(s) || !c.SubsetOf(s) || !s.SubsetOf(c) {
					t.Fatalf("copy %s differs from %s", c, s)
				}
			}
		})
	}
}

func TestColSetOps(t *testing.T) {
	a := MakeColSet(1, 2, 3, 100)
	b := MakeColSet(3, 4, 100, 200)

	require.Equal(t, "(1-4,100,200)", a.Union(b).String())
	require.Equal(t, "(3,100)", a.Intersection(b).String())
	require.Equal(t, "(1,2)", a.Difference(b).String())
	require.True(t, a.Intersects(b))
	require.False(t, MakeColSet(1).Intersects(MakeColSet(2, 300)))
	require.True(t, MakeColSet(3, 100).SubsetOf(a))
	require.False(t, MakeColSet(3, 200).SubsetOf(a))
	require.Equal(t, "(0,1,98)", a.Shift(-2).String())
	require.Equal(t, "(0-2)", MakeColSetRange(0, 3).String())

	// Union does not modify its receiver even when large sets are involved.
	_ = a.Union(b)
	require.Equal(t, "(1-3,100)", a.String())

	remapped, ok := MakeColSet(0, 2).Remap(func(i int) int { return i * 10 })
	require.True(t, ok)
	require.Equal(t, "(0,20)", remapped.String())
	_, ok = MakeColSet(0, 2).Remap(func(i int) int { return i - 1 })
	require.False(t, ok)

	for _, s := range []string{"()", "(0)", "(1-4,100,200)", "(0,20)"} {
		parsed, err := ParseColSet(s)
		require.NoError(t, err)
		require.Equal(t, s, parsed.String())
	}
	parsed, err := ParseColSet("3, 1")
	require.NoError(t, err)
	require.Equal(t, "(1,3)", parsed.String())
	for _, bad := range []string{"(a)", "(-1)", "(4-2)"} {
		_, err := ParseColSet(bad)
		require.Error(t, err, bad)
	}
}

func TestOrdering(t *testing.T) {
	o, err := ParseOrdering("+0,-2")
	require.NoError(t, err)
	require.Equal(t, "+0,-2", o.String())
	require.True(t, o.Satisfies(Ordering{MakeOrderingColumn(0, false)}))
	require.False(t, o.Satisfies(Ordering{MakeOrderingColumn(2, true)}))
	require.Equal(t, "+3,-5", o.Shift(3).String())
	require.Equal(t, "+1", o.Remap(func(i int) int {
		if i == 0 {
			return 1
		}
		return -1
	}).String())
	require.Equal(t, "+0", o.CommonPrefix(Ordering{MakeOrderingColumn(0, false)}).String())

	_, err = ParseOrdering("0")
	require.Error(t, err)
}

func TestDistribution(t *testing.T) {
	d, err := ParseDistribution("hash(0,1)")
	require.NoError(t, err)
	require.Equal(t, "hash(0,1)", d.String())
	require.True(t, d.Equals(HashDist(0, 1)))
	require.Equal(t, "hash(2,3)", d.Shift(2).String())
	require.Equal(t, "any", d.Remap(func(i int) int { return i - 1 }).String())

	d, err = ParseDistribution("broadcast")
	require.NoError(t, err)
	require.Equal(t, Broadcast, d)

	_, err = ParseDistribution("hash")
	require.Error(t, err)
	_, err = ParseDistribution("bogus(1)")
	require.Error(t, err)
}
