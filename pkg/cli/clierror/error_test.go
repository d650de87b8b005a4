// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package clierror_test

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/cli/clierror"
	"github.com/cockroachdb/optmd/pkg/cli/exit"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	require.Equal(t, exit.Success(), clierror.ExitCode(nil))
	require.Equal(t, exit.UnspecifiedError(), clierror.ExitCode(errors.New("boom")))

	err := clierror.NewErrorf(exit.MemoryLimitExceeded(), "%d nodes over the limit", 2)
	require.Equal(t, exit.MemoryLimitExceeded(), clierror.ExitCode(err))
	require.Equal(t, "2 nodes over the limit", err.Error())

	// The code survives wrapping.
	wrapped := errors.Wrap(err, "explain")
	require.Equal(t, exit.MemoryLimitExceeded(), clierror.ExitCode(wrapped))
	require.Equal(t, "explain: 2 nodes over the limit", wrapped.Error())

	cause := errors.New("bad flag")
	err = clierror.NewError(cause, exit.CommandLineFlagError())
	require.True(t, errors.Is(err, cause))
	require.Contains(t, fmt.Sprintf("%+v", err), "error with exit code: 4")
}
