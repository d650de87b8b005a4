// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package uniqueness derives which column sets of a node's output are keys.
package uniqueness

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
)

// Provider answers ColumnUniqueness and UniqueKeys.
var Provider = md.NewTable("uniqueness")

func init() {
	Provider.
		Register(md.ColumnUniqueness, plan.RelKind, md.Func2(unknownUniqueness)).
		Register(md.ColumnUniqueness, plan.ScanKind, md.Func2(scanUniqueness)).
		Register(md.ColumnUniqueness, plan.ValuesKind, md.Func2(valuesUniqueness)).
		Register(md.ColumnUniqueness, plan.FilterKind, md.Func2(inputUniqueness)).
		Register(md.ColumnUniqueness, plan.SortKind, md.Func2(inputUniqueness)).
		Register(md.ColumnUniqueness, plan.ConverterTrait, md.Func2(inputUniqueness)).
		Register(md.ColumnUniqueness, plan.ProjectKind, md.Func2(projectUniqueness)).
		Register(md.ColumnUniqueness, plan.AggregateKind, md.Func2(aggregateUniqueness)).
		Register(md.ColumnUniqueness, plan.JoinKind, md.Func2(joinUniqueness)).
		Register(md.ColumnUniqueness, plan.SetOpKind, md.Func2(setOpUniqueness)).
		Register(md.ColumnUniqueness, plan.IntersectKind, md.Func2(intersectUniqueness)).
		Register(md.ColumnUniqueness, plan.MinusKind, md.Func2(minusUniqueness)).
		Register(md.ColumnUniqueness, plan.SubsetKind, md.Func2(subsetUniqueness))

	Provider.
		Register(md.UniqueKeys, plan.RelKind, md.Func1(unknownKeys)).
		Register(md.UniqueKeys, plan.ScanKind, md.Func1(scanKeys)).
		Register(md.UniqueKeys, plan.ValuesKind, md.Func1(valuesKeys)).
		Register(md.UniqueKeys, plan.FilterKind, md.Func1(inputKeys)).
		Register(md.UniqueKeys, plan.SortKind, md.Func1(inputKeys)).
		Register(md.UniqueKeys, plan.ConverterTrait, md.Func1(inputKeys)).
		Register(md.UniqueKeys, plan.ProjectKind, md.Func1(projectKeys)).
		Register(md.UniqueKeys, plan.AggregateKind, md.Func1(aggregateKeys)).
		Register(md.UniqueKeys, plan.JoinKind, md.Func1(joinKeys)).
		Register(md.UniqueKeys, plan.SetOpKind, md.Func1(setOpKeys)).
		Register(md.UniqueKeys, plan.SubsetKind, md.Func1(subsetKeys))
}

func unknownUniqueness(*md.Query, plan.Node, opt.ColSet, bool) (bool, bool, error) {
	return false, false, nil
}

// scanUniqueness checks the table keys. Without ignoreNulls a key with a
// nullable column does not count, since NULLs may repeat.
func scanUniqueness(_ *md.Query, s *plan.Scan, cols opt.ColSet, ignoreNulls bool) (bool, bool, error) {
	for _, k := range tableKeys(s.Table, ignoreNulls) {
		if k.SubsetOf(cols) {
			return true, true, nil
		}
	}
	return false, true, nil
}

func tableKeys(t *plan.Table, ignoreNulls bool) []opt.ColSet {
	var keys []opt.ColSet
	for _, k := range t.Keys {
		nullable := false
		k.ForEach(func(c int) {
			if t.Cols[c].Nullable {
				nullable = true
			}
		})
		if ignoreNulls || !nullable {
			keys = append(keys, k)
		}
	}
	return keys
}

// valuesUniqueness scans the tuples for duplicates.
func valuesUniqueness(
	_ *md.Query, v *plan.Values, cols opt.ColSet, ignoreNulls bool,
) (bool, bool, error) {
	if len(v.Tuples) < 2 {
		return true, true, nil
	}
	var keep func([]scalar.Datum) bool
	rows := len(v.Tuples)
	if ignoreNulls {
		rows = 0
		for _, row := range v.Tuples {
			if !plan.HasNull(row, cols) {
				rows++
			}
		}
		keep = func(row []scalar.Datum) bool { return !plan.HasNull(row, cols) }
	}
	n, err := v.CountDistinct(cols, keep)
	if err != nil {
		return false, false, err
	}
	return n == rows, true, nil
}

func inputUniqueness(q *md.Query, n plan.Node, cols opt.ColSet, ignoreNulls bool) (bool, bool, error) {
	return q.ColumnUniqueness(n.Inputs()[0], cols, ignoreNulls)
}

// projectUniqueness only maps columns that are passed through. Other
// expressions may map distinct inputs to the same value.
func projectUniqueness(
	q *md.Query, p *plan.Project, cols opt.ColSet, ignoreNulls bool,
) (bool, bool, error) {
	var childCols opt.ColSet
	cols.ForEach(func(i int) {
		if src, ok := p.Source(i); ok {
			childCols.Add(src)
		}
	})
	if childCols.Empty() {
		return false, false, nil
	}
	return q.ColumnUniqueness(p.Input, childCols, ignoreNulls)
}

// aggregateUniqueness: the group key columns form a key. With several
// grouping sets the same group key values can appear once per set.
func aggregateUniqueness(
	_ *md.Query, a *plan.Aggregate, cols opt.ColSet, _ bool,
) (bool, bool, error) {
	if a.NumGroupingSets() > 1 {
		return false, false, nil
	}
	return opt.MakeColSetRange(0, a.GroupCount()).SubsetOf(cols), true, nil
}

// joinUniqueness: columns from both sides are unique if they are unique on
// each side. Columns from one side stay unique if the join keys of the
// other side are unique, so that each row matches at most once, and the
// side is not null-extended.
func joinUniqueness(
	q *md.Query, j *plan.Join, cols opt.ColSet, ignoreNulls bool,
) (bool, bool, error) {
	if !j.Type.ProjectsRight() {
		return q.ColumnUniqueness(j.Left, cols, ignoreNulls)
	}
	if cols.Empty() {
		return false, true, nil
	}
	leftCols, rightCols := splitJoinCols(j, cols)
	if !leftCols.Empty() && !rightCols.Empty() {
		leftUnique, ok, err := q.ColumnUniqueness(j.Left, leftCols, ignoreNulls)
		if !ok || err != nil {
			return false, false, err
		}
		rightUnique, ok, err := q.ColumnUniqueness(j.Right, rightCols, ignoreNulls)
		if !ok || err != nil {
			return false, false, err
		}
		return leftUnique && rightUnique, true, nil
	}

	leftKeys, rightKeys, _ := j.EquiCondition()
	if !leftCols.Empty() {
		if j.Type.GeneratesNullsOnLeft() {
			return false, true, nil
		}
		return bothUnique(q, j.Left, leftCols, j.Right, opt.MakeColSet(rightKeys...), ignoreNulls)
	}
	if j.Type.GeneratesNullsOnRight() {
		return false, true, nil
	}
	return bothUnique(q, j.Right, rightCols, j.Left, opt.MakeColSet(leftKeys...), ignoreNulls)
}

// bothUnique returns whether cols are unique in n and the join keys are
// unique in other.
func bothUnique(
	q *md.Query, n plan.Node, cols opt.ColSet, other plan.Node, keys opt.ColSet, ignoreNulls bool,
) (bool, bool, error) {
	if keys.Empty() {
		return false, true, nil
	}
	keysUnique, ok, err := q.ColumnUniqueness(other, keys, ignoreNulls)
	if !ok || err != nil {
		return false, false, err
	}
	unique, ok, err := q.ColumnUniqueness(n, cols, ignoreNulls)
	if !ok || err != nil {
		return false, false, err
	}
	return keysUnique && unique, true, nil
}

func splitJoinCols(j *plan.Join, cols opt.ColSet) (left, right opt.ColSet) {
	n := j.LeftWidth()
	cols.ForEach(func(c int) {
		if c < n {
			left.Add(c)
		} else {
			right.Add(c - n)
		}
	})
	return left, right
}

// setOpUniqueness: without ALL the rows are distinct, so all the columns
// together are a key.
func setOpUniqueness(
	_ *md.Query, s *plan.SetOp, cols opt.ColSet, _ bool,
) (bool, bool, error) {
	return !s.All && opt.MakeColSetRange(0, len(s.Columns())).SubsetOf(cols), true, nil
}

// intersectUniqueness: a key of any input is a key of the intersection.
func intersectUniqueness(
	q *md.Query, s *plan.SetOp, cols opt.ColSet, ignoreNulls bool,
) (bool, bool, error) {
	if unique, _, _ := setOpUniqueness(q, s, cols, ignoreNulls); unique {
		return true, true, nil
	}
	for _, c := range s.Children {
		unique, ok, err := q.ColumnUniqueness(c, cols, ignoreNulls)
		if err != nil {
			return false, false, err
		}
		if ok && unique {
			return true, true, nil
		}
	}
	return false, true, nil
}

func minusUniqueness(
	q *md.Query, s *plan.SetOp, cols opt.ColSet, ignoreNulls bool,
) (bool, bool, error) {
	if unique, _, _ := setOpUniqueness(q, s, cols, ignoreNulls); unique {
		return true, true, nil
	}
	return q.ColumnUniqueness(s.Children[0], cols, ignoreNulls)
}

// subsetUniqueness: the members are equivalent, so one member proving the
// columns unique is enough. Members that depend on the subset are skipped.
func subsetUniqueness(
	q *md.Query, s *plan.Subset, cols opt.ColSet, ignoreNulls bool,
) (bool, bool, error) {
	answered, unknown := 0, 0
	for _, m := range s.Members {
		unique, ok, err := q.ColumnUniqueness(m, cols, ignoreNulls)
		if err != nil {
			if errors.Is(err, md.ErrCyclicMetadata) {
				continue
			}
			return false, false, err
		}
		if !ok {
			unknown++
			continue
		}
		if unique {
			return true, true, nil
		}
		answered++
	}
	return false, answered > 0 && unknown == 0, nil
}
