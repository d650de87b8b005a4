// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/stretchr/testify/require"
)

func TestMakeMessage(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, "hello 1", makeMessage(ctx, "hello %d", []interface{}{1}))

	ctx = logtags.AddTag(ctx, "md", nil)
	ctx = logtags.AddTag(ctx, "node", 7)
	require.Equal(t, "[md,node=7] x", makeMessage(ctx, "", []interface{}{"x"}))
}

func TestOutput(t *testing.T) {
	defer SetOutput(os.Stderr, FormatText)
	defer SetVerbosity(0)

	var buf bytes.Buffer
	SetOutput(&buf, FormatText)
	ctx := logtags.AddTag(context.Background(), "q", 1)
	Infof(ctx, "rows=%d", 5)
	require.Contains(t, buf.String(), "[q=1] rows=5")
	require.Contains(t, buf.String(), "log_test.go")

	buf.Reset()
	VEventf(ctx, 2, "hidden")
	require.Empty(t, buf.String())
	SetVerbosity(2)
	VEventf(ctx, 2, "shown")
	require.Contains(t, buf.String(), "shown")
}

func TestEveryN(t *testing.T) {
	start := time.Now()
	e := Every(time.Minute)
	require.True(t, e.shouldLog(start))
	require.False(t, e.shouldLog(start.Add(time.Second)))
	require.True(t, e.shouldLog(start.Add(2*time.Minute)))

	var zero EveryN
	require.True(t, zero.shouldLog(start))
	require.True(t, zero.shouldLog(start))
}
