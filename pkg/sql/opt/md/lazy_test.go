// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package md

import (
	"testing"

	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/stretchr/testify/require"
)

func TestLazyCache(t *testing.T) {
	a := &plan.Values{}
	b := &plan.Values{}
	key := func(n plan.Node, ts uint64) lazyKey {
		return lazyKey{cacheKey: cacheKey{node: n, method: RowCount}, ts: ts}
	}

	c := NewLazyCache(3)
	c.put(key(a, 1), 1.0)
	c.put(key(b, 2), 2.0)
	c.put(key(a, 3), 3.0)
	require.Equal(t, 3, c.Len())

	// Overwriting does not grow the cache.
	c.put(key(b, 2), 20.0)
	require.Equal(t, 3, c.Len())
	v, ok := c.get(key(b, 2))
	require.True(t, ok)
	require.Equal(t, 20.0, v)

	// The oldest timestamp is evicted first.
	c.put(key(b, 4), 4.0)
	require.Equal(t, 3, c.Len())
	_, ok = c.get(key(a, 1))
	require.False(t, ok)

	require.Equal(t, 1, c.Prune(3))
	_, ok = c.get(key(b, 2))
	require.False(t, ok)
	require.Equal(t, 2, c.Len())

	c.clearNode(a)
	require.Equal(t, 1, c.Len())
	v, ok = c.get(key(b, 4))
	require.True(t, ok)
	require.Equal(t, 4.0, v)

	c.Clear()
	require.Equal(t, 0, c.Len())
	require.Equal(t, 0, c.Prune(100))
}

func TestArgsKey(t *testing.T) {
	require.Equal(t, "", argsKey(nil))
	require.Equal(t, "∅|true", argsKey([]any{nil, true}))
	require.Equal(t, "3", argsKey([]any{3}))
	require.Equal(t, "f($0) > 1", argsKey([]any{scalar.Gt(scalar.Func("f", scalar.Col(0)), scalar.Int(1))}))
	require.Equal(t, "f($0) > 1~1",
		argsKey([]any{scalar.Gt(scalar.VolatileFunc("f", scalar.Col(0)), scalar.Int(1))}))
}
