// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package plan

import (
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/types"
)

// Column describes an output column of a node or a table.
type Column struct {
	Name     string
	Type     types.T
	Nullable bool
}

// TableStats holds the statistics known for a table.
type TableStats struct {
	// RowCount is meaningful only if HasRowCount is set.
	RowCount    float64
	HasRowCount bool
	// DistinctCounts maps a column ordinal to its number of distinct values.
	DistinctCounts map[int]float64
}

// Table is a catalog table as seen by the optimizer.
type Table struct {
	Name  string
	Cols  []Column
	Stats TableStats
	// Keys lists the column sets known to be unique, such as the primary key
	// and unique indexes. Nullable unique columns may still repeat NULLs.
	Keys []opt.ColSet
	// Collations lists the orderings in which the table can be read.
	Collations   []opt.Ordering
	Distribution opt.Distribution
}

// ColumnOrdinal returns the ordinal of the column with the given name.
func (t *Table) ColumnOrdinal(name string) (int, bool) {
	for i := range t.Cols {
		if t.Cols[i].Name == name {
			return i, true
		}
	}
	return 0, false
}

// IsKey returns true if cols contains one of the table keys.
func (t *Table) IsKey(cols opt.ColSet) bool {
	for _, k := range t.Keys {
		if k.SubsetOf(cols) {
			return true
		}
	}
	return false
}
