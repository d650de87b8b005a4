// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package humanizeutil

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBytes(t *testing.T) {
	require.Equal(t, "1.0 KiB", Bytes(1024))
	require.Equal(t, "28 B", Bytes(27.6))
	require.Equal(t, "inf", Bytes(math.Inf(1)))
	require.Equal(t, "-2 B", IBytes(-2))
}

func TestBytesValue(t *testing.T) {
	var v int64
	b := NewBytesValue(&v)
	require.False(t, b.IsSet())
	require.NoError(t, b.Set("64MiB"))
	require.True(t, b.IsSet())
	require.Equal(t, int64(64<<20), v)
	require.Equal(t, "64 MiB", b.String())
	require.Error(t, b.Set(""))
	require.Error(t, b.Set("lots"))

	n, err := ParseBytes("-1KiB")
	require.NoError(t, err)
	require.Equal(t, int64(-1024), n)
}

func TestDuration(t *testing.T) {
	for _, tc := range []struct {
		d   time.Duration
		exp string
	}{
		{0, "0µs"},
		{123456, "123µs"},
		{12345678, "12ms"},
		{12345678912, "12.3s"},
		{123 * time.Second, "2m3s"},
	} {
		require.Equal(t, tc.exp, Duration(tc.d))
	}
}
