// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		in       string
		expected T
	}{
		{"INTEGER", Int},
		{"bigint", Int},
		{"smallint", Int2},
		{"varchar(20)", MakeString(20)},
		{"TEXT", String},
		{"decimal(10, 2)", T{Family: DecimalFamily, Width: 10}},
		{"boolean", Bool},
		{"REAL", T{Family: FloatFamily, Width: 4}},
		{"blob", Bytes},
		{"", Unknown},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			typ, err := Parse(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.expected, typ)

			// The String form parses back to the same type.
			again, err := Parse(typ.String())
			require.NoError(t, err)
			require.Equal(t, typ, again)
		})
	}

	_, err := Parse("geometry")
	require.Error(t, err)
	_, err = Parse("varchar(x)")
	require.Error(t, err)
}
