// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package norm_test

import (
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/optmd/pkg/sql/opt/norm"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/stretchr/testify/require"
)

// TestSimplify runs the simplifier over the expressions in testdata/simplify.
//
//	simplify [predicate]: simplify the input expression.
//	simplify-ands, simplify-ors: combine one expression per input line.
func TestSimplify(t *testing.T) {
	datadriven.RunTest(t, "testdata/simplify", func(t *testing.T, d *datadriven.TestData) string {
		s := norm.NewSimplifier(nil)
		if d.HasArg("predicate") {
			s = s.ForPredicates()
		}
		switch d.Cmd {
		case "simplify":
			e, err := scalar.Parse(d.Input)
			if err != nil {
				d.Fatalf(t, "%v", err)
			}
			return s.Simplify(e).String() + "\n"

		case "simplify-ands", "simplify-ors":
			var list []scalar.Expr
			for _, line := range strings.Split(d.Input, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					list = append(list, scalar.MustParse(line))
				}
			}
			if d.Cmd == "simplify-ands" {
				return s.SimplifyAnds(list).String() + "\n"
			}
			return s.SimplifyOrs(list).String() + "\n"

		default:
			d.Fatalf(t, "unsupported command: %s", d.Cmd)
			return ""
		}
	})
}

func TestEval(t *testing.T) {
	row := []scalar.Datum{int64(3), nil, "abc", 2.5}
	testCases := []struct {
		expr     string
		expected scalar.Datum
	}{
		{"$0 > 2", true},
		{"$0 + 1 = 4", true},
		{"$0 * $3", 7.5},
		{"$0 / 2", 1.5},
		{"$1 > 2", nil},
		{"$1 IS NULL", true},
		{"$1 IS NOT DISTINCT FROM NULL", true},
		{"$0 IS DISTINCT FROM $1", true},
		{"$1 > 2 AND $0 < 2", false},
		{"$1 > 2 OR $0 < 2", nil},
		{"$1 > 2 OR $0 > 2", true},
		{"NOT ($1 = 1)", nil},
		{"$2 = 'abc'", true},
		{"$2 < 'abd'", true},
		{"-$0", int64(-3)},
	}
	for _, tc := range testCases {
		v, ok := norm.Eval(scalar.MustParse(tc.expr), row)
		require.True(t, ok, tc.expr)
		require.Equal(t, tc.expected, v, tc.expr)
	}

	for _, bad := range []string{"$9 = 1", "f($0) = 1", "$2 > 1", "$0 / 0", "?1 = 1"} {
		_, ok := norm.Eval(scalar.MustParse(bad), row)
		require.False(t, ok, bad)
	}
}
