// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package uniqueness

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
)

func unknownKeys(*md.Query, plan.Node, bool) ([]opt.ColSet, bool, error) {
	return nil, false, nil
}

func scanKeys(_ *md.Query, s *plan.Scan, ignoreNulls bool) ([]opt.ColSet, bool, error) {
	return tableKeys(s.Table, ignoreNulls), true, nil
}

// valuesKeys reports the empty key for at most one row, and otherwise all
// columns if the tuples are distinct.
func valuesKeys(q *md.Query, v *plan.Values, ignoreNulls bool) ([]opt.ColSet, bool, error) {
	if len(v.Tuples) < 2 {
		return []opt.ColSet{{}}, true, nil
	}
	all := opt.MakeColSetRange(0, len(v.Cols))
	unique, _, err := valuesUniqueness(q, v, all, ignoreNulls)
	if err != nil || !unique {
		return nil, err == nil, err
	}
	return []opt.ColSet{all}, true, nil
}

func inputKeys(q *md.Query, n plan.Node, ignoreNulls bool) ([]opt.ColSet, bool, error) {
	return q.UniqueKeys(n.Inputs()[0], ignoreNulls)
}

// projectKeys keeps the input keys whose columns are all passed through.
func projectKeys(q *md.Query, p *plan.Project, ignoreNulls bool) ([]opt.ColSet, bool, error) {
	keys, ok, err := q.UniqueKeys(p.Input, ignoreNulls)
	if !ok || err != nil {
		return nil, false, err
	}
	toOutput := p.InputToOutput()
	var res []opt.ColSet
	for _, k := range keys {
		if mapped, ok := k.Remap(toOutput); ok {
			res = appendKey(res, mapped)
		}
	}
	return res, true, nil
}

func aggregateKeys(_ *md.Query, a *plan.Aggregate, _ bool) ([]opt.ColSet, bool, error) {
	if a.NumGroupingSets() > 1 {
		return nil, false, nil
	}
	return []opt.ColSet{opt.MakeColSetRange(0, a.GroupCount())}, true, nil
}

// joinKeys combines a key of each side. A key of one side stays a key if the
// other side's join keys are unique and the side is not null-extended.
func joinKeys(q *md.Query, j *plan.Join, ignoreNulls bool) ([]opt.ColSet, bool, error) {
	leftKeys, ok, err := q.UniqueKeys(j.Left, ignoreNulls)
	if !ok || err != nil {
		return nil, false, err
	}
	if !j.Type.ProjectsRight() {
		return leftKeys, true, nil
	}
	rightKeys, ok, err := q.UniqueKeys(j.Right, ignoreNulls)
	if !ok || err != nil {
		return nil, false, err
	}
	n := j.LeftWidth()
	var res []opt.ColSet
	for _, l := range leftKeys {
		for _, r := range rightKeys {
			res = appendKey(res, l.Union(r.Shift(n)))
		}
	}

	leftEq, rightEq, _ := j.EquiCondition()
	if len(rightEq) > 0 && !j.Type.GeneratesNullsOnLeft() {
		unique, ok, err := q.ColumnUniqueness(j.Right, opt.MakeColSet(rightEq...), ignoreNulls)
		if err != nil {
			return nil, false, err
		}
		if ok && unique {
			for _, l := range leftKeys {
				res = appendKey(res, l)
			}
		}
	}
	if len(leftEq) > 0 && !j.Type.GeneratesNullsOnRight() {
		unique, ok, err := q.ColumnUniqueness(j.Left, opt.MakeColSet(leftEq...), ignoreNulls)
		if err != nil {
			return nil, false, err
		}
		if ok && unique {
			for _, r := range rightKeys {
				res = appendKey(res, r.Shift(n))
			}
		}
	}
	return res, true, nil
}

// setOpKeys: without ALL all columns form a key. An intersection also keeps
// the keys of its inputs and a difference those of its first input.
func setOpKeys(q *md.Query, s *plan.SetOp, ignoreNulls bool) ([]opt.ColSet, bool, error) {
	var res []opt.ColSet
	if !s.All {
		res = appendKey(res, opt.MakeColSetRange(0, len(s.Columns())))
	}
	var children []plan.Node
	switch s.Type {
	case plan.IntersectOp:
		children = s.Children
	case plan.MinusOp:
		children = s.Children[:1]
	}
	for _, c := range children {
		keys, ok, err := q.UniqueKeys(c, ignoreNulls)
		if err != nil {
			return nil, false, err
		}
		if ok {
			for _, k := range keys {
				res = appendKey(res, k)
			}
		}
	}
	if res == nil {
		return nil, false, nil
	}
	return res, true, nil
}

// subsetKeys collects the keys of the members, which are equivalent.
func subsetKeys(q *md.Query, s *plan.Subset, ignoreNulls bool) ([]opt.ColSet, bool, error) {
	var res []opt.ColSet
	found := false
	for _, m := range s.Members {
		keys, ok, err := q.UniqueKeys(m, ignoreNulls)
		if err != nil {
			if errors.Is(err, md.ErrCyclicMetadata) {
				continue
			}
			return nil, false, err
		}
		if !ok {
			continue
		}
		found = true
		for _, k := range keys {
			res = appendKey(res, k)
		}
	}
	return res, found, nil
}

// appendKey adds k unless an equal key is already present.
func appendKey(keys []opt.ColSet, k opt.ColSet) []opt.ColSet {
	for _, existing := range keys {
		if existing.Equals(k) {
			return keys
		}
	}
	return append(keys, k)
}
