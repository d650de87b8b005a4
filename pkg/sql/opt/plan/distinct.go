// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package plan

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/mitchellh/hashstructure"
)

// CountDistinct returns the number of distinct projections of the tuples on
// cols, considering only the tuples for which keep returns true (all of them
// if keep is nil). NULL is a value like any other.
func (v *Values) CountDistinct(cols opt.ColSet, keep func(row []scalar.Datum) bool) (int, error) {
	ords := cols.Ordered()
	seen := make(map[uint64][][]scalar.Datum, len(v.Tuples))
	n := 0
	for _, row := range v.Tuples {
		if keep != nil && !keep(row) {
			continue
		}
		key := make([]scalar.Datum, len(ords))
		for i, c := range ords {
			if c >= len(row) {
				return 0, errors.AssertionFailedf("column %d out of range in %s", c, v)
			}
			key[i] = row[c]
		}
		h, err := hashstructure.Hash(key, nil)
		if err != nil {
			return 0, errors.Wrapf(err, "hashing %v", key)
		}
		// Hashes only bucket the tuples; equality decides.
		bucket := seen[h]
		if slices.ContainsFunc(bucket, func(other []scalar.Datum) bool {
			return slices.Equal(other, key)
		}) {
			continue
		}
		seen[h] = append(bucket, key)
		n++
	}
	return n, nil
}

// HasNull returns true if the row has a NULL in any of the columns.
func HasNull(row []scalar.Datum, cols opt.ColSet) bool {
	null := false
	cols.ForEach(func(c int) {
		if c < len(row) && row[c] == nil {
			null = true
		}
	})
	return null
}
