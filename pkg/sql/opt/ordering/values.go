// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package ordering

import (
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/norm"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
)

// valuesCollations probes the literals. Any order holds for zero or one row,
// but only one collation per starting column is reported: for each column i
// that the tuples are sorted on, the collation starts with i and is extended
// by every later column that keeps the tuples sorted. For four columns and no
// rows, that is (0,1,2,3), (1,2,3), (2,3) and (3).
//
// NULLs sort after every other value.
func valuesCollations(_ *md.Query, v *plan.Values) ([]opt.Ordering, bool, error) {
	res := []opt.Ordering{}
	n := len(v.Cols)
	for i := 0; i < n; i++ {
		o := opt.Ordering{opt.MakeOrderingColumn(i, false)}
		if !isSorted(v.Tuples, o) {
			continue
		}
		for j := i + 1; j < n; j++ {
			ext := append(o[:len(o):len(o)], opt.MakeOrderingColumn(j, false))
			if isSorted(v.Tuples, ext) {
				o = ext
			}
		}
		res = append(res, o)
	}
	return res, true, nil
}

func isSorted(tuples [][]scalar.Datum, o opt.Ordering) bool {
	for i := 1; i < len(tuples); i++ {
		c, ok := compareRows(tuples[i-1], tuples[i], o)
		if !ok || c > 0 {
			return false
		}
	}
	return true
}

// compareRows compares two rows on the ordering. It returns false if two
// values cannot be compared.
func compareRows(a, b []scalar.Datum, o opt.Ordering) (int, bool) {
	for _, col := range o {
		c, ok := compareDatums(a[col.Ordinal], b[col.Ordinal])
		if !ok {
			return 0, false
		}
		if col.Descending {
			c = -c
		}
		if c != 0 {
			return c, true
		}
	}
	return 0, true
}

func compareDatums(a, b scalar.Datum) (int, bool) {
	switch {
	case a == nil && b == nil:
		return 0, true
	case a == nil:
		return 1, true
	case b == nil:
		return -1, true
	}
	return norm.Compare(a, b)
}
