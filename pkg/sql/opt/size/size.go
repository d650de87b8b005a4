// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package size estimates the average width of rows and columns, the memory
// used by blocking operators, and how plans split into parallel phases.
package size

import (
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/props"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optmd/pkg/sql/types"
)

// Provider answers the Size, Memory and Parallelism methods.
var Provider = md.NewTable("size")

func init() {
	Provider.
		Register(md.AverageRowSize, plan.RelKind, md.Func0(averageRowSize)).
		Register(md.AverageColumnSizes, plan.RelKind, md.Func0(unknownSizes)).
		Register(md.AverageColumnSizes, plan.ScanKind, md.Func0(scanSizes)).
		Register(md.AverageColumnSizes, plan.ValuesKind, md.Func0(valuesSizes)).
		Register(md.AverageColumnSizes, plan.SingleInputKind, md.Func0(inputSizes)).
		Register(md.AverageColumnSizes, plan.ProjectKind, md.Func0(projectSizes)).
		Register(md.AverageColumnSizes, plan.AggregateKind, md.Func0(aggregateSizes)).
		Register(md.AverageColumnSizes, plan.JoinKind, md.Func0(joinSizes)).
		Register(md.AverageColumnSizes, plan.UnionKind, md.Func0(unionSizes)).
		Register(md.AverageColumnSizes, plan.IntersectKind, md.Func0(firstInputSizes)).
		Register(md.AverageColumnSizes, plan.MinusKind, md.Func0(firstInputSizes)).
		Register(md.AverageColumnSizes, plan.SubsetKind, md.Func0(subsetSizes))
}

// maxVariableWidth caps the estimate for variable width types.
const maxVariableWidth = 100

// bytesPerChar is the assumed encoding width of a character.
const bytesPerChar = 2

// TypeSize estimates the average size of a value of type t, or returns false
// if nothing can be said.
func TypeSize(t types.T) (float64, bool) {
	switch t.Family {
	case types.BoolFamily:
		return 1, true
	case types.IntFamily, types.FloatFamily:
		if t.Width > 0 {
			return float64(t.Width), true
		}
		return 8, true
	case types.DecimalFamily, types.DateFamily:
		return 4, true
	case types.TimestampFamily:
		return 8, true
	case types.StringFamily:
		if t.Width > 0 {
			return min(float64(t.Width*bytesPerChar), maxVariableWidth), true
		}
		return maxVariableWidth, true
	case types.BytesFamily:
		if t.Width > 0 {
			return min(float64(t.Width), maxVariableWidth), true
		}
		return maxVariableWidth, true
	}
	return 0, false
}

// ValueSize returns the size of a literal of type t.
func ValueSize(t types.T, d scalar.Datum) float64 {
	if d == nil {
		return 1
	}
	if s, ok := d.(string); ok {
		if t.Family == types.BytesFamily {
			return float64(len(s))
		}
		return float64(len(s) * bytesPerChar)
	}
	if size, ok := TypeSize(t); ok {
		return size
	}
	switch d.(type) {
	case bool:
		return 1
	case int64, float64:
		return 8
	}
	return 32
}

func typeSizeOrUnknown(t types.T) float64 {
	if s, ok := TypeSize(t); ok {
		return s
	}
	return props.UnknownSize
}

// averageRowSize sums the column sizes, estimating unknown ones from their
// type.
func averageRowSize(q *md.Query, n plan.Node) (float64, bool, error) {
	sizes, ok, err := q.AverageColumnSizes(n)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	cols := n.Columns()
	var sum float64
	for i, c := range cols {
		if sizes.Known(i) {
			sum += sizes[i]
			continue
		}
		s, ok := TypeSize(c.Type)
		if !ok {
			return 0, false, nil
		}
		sum += s
	}
	return sum, true, nil
}

func unknownSizes(*md.Query, plan.Node) (props.ColumnSizes, bool, error) {
	return nil, false, nil
}

func scanSizes(_ *md.Query, s *plan.Scan) (props.ColumnSizes, bool, error) {
	res := make(props.ColumnSizes, len(s.Table.Cols))
	for i, c := range s.Table.Cols {
		res[i] = typeSizeOrUnknown(c.Type)
	}
	return res, true, nil
}

// valuesSizes averages the literal sizes, or uses the type size when there
// are no rows.
func valuesSizes(_ *md.Query, v *plan.Values) (props.ColumnSizes, bool, error) {
	res := make(props.ColumnSizes, len(v.Cols))
	for i, c := range v.Cols {
		if len(v.Tuples) == 0 {
			res[i] = typeSizeOrUnknown(c.Type)
			continue
		}
		var sum float64
		for _, t := range v.Tuples {
			sum += ValueSize(c.Type, t[i])
		}
		res[i] = sum / float64(len(v.Tuples))
	}
	return res, true, nil
}

func inputSizes(q *md.Query, n plan.Node) (props.ColumnSizes, bool, error) {
	return q.AverageColumnSizes(n.Inputs()[0])
}

func firstInputSizes(q *md.Query, s *plan.SetOp) (props.ColumnSizes, bool, error) {
	return q.AverageColumnSizes(s.Children[0])
}

// inputSizesOrTypes returns the input sizes, or sizes from the input types
// if the input sizes are unknown.
func inputSizesOrTypes(q *md.Query, input plan.Node) (props.ColumnSizes, error) {
	sizes, ok, err := q.AverageColumnSizes(input)
	if err != nil {
		return nil, err
	}
	if ok {
		return sizes, nil
	}
	cols := input.Columns()
	sizes = make(props.ColumnSizes, len(cols))
	for i, c := range cols {
		sizes[i] = typeSizeOrUnknown(c.Type)
	}
	return sizes, nil
}

func projectSizes(q *md.Query, p *plan.Project) (props.ColumnSizes, bool, error) {
	in, err := inputSizesOrTypes(q, p.Input)
	if err != nil {
		return nil, false, err
	}
	inCols := p.Input.Columns()
	res := make(props.ColumnSizes, len(p.Exprs))
	for i, e := range p.Exprs {
		res[i] = exprSize(e, in, inCols)
	}
	return res, true, nil
}

// exprSize estimates the size of an expression. A function result is
// assumed to be as wide as its first argument of the same type, as upper(s)
// is as wide as s.
func exprSize(e scalar.Expr, in props.ColumnSizes, inCols []plan.Column) float64 {
	switch t := e.(type) {
	case *scalar.ColumnRef:
		if in.Known(t.Index) {
			return in[t.Index]
		}
		return props.UnknownSize
	case *scalar.Const:
		return ValueSize(plan.InferType(t, inCols), t.Value)
	case *scalar.Call:
		typ := plan.InferType(t, inCols)
		for _, a := range t.Args {
			if plan.InferType(a, inCols).Family == typ.Family && typ.Family != types.UnknownFamily {
				return exprSize(a, in, inCols)
			}
		}
		return typeSizeOrUnknown(typ)
	}
	return props.UnknownSize
}

func aggregateSizes(q *md.Query, a *plan.Aggregate) (props.ColumnSizes, bool, error) {
	in, err := inputSizesOrTypes(q, a.Input)
	if err != nil {
		return nil, false, err
	}
	cols := a.Columns()
	res := make(props.ColumnSizes, 0, len(cols))
	a.GroupKey.ForEach(func(i int) {
		if in.Known(i) {
			res = append(res, in[i])
		} else {
			res = append(res, props.UnknownSize)
		}
	})
	for _, c := range cols[len(res):] {
		res = append(res, typeSizeOrUnknown(c.Type))
	}
	return res, true, nil
}

// joinSizes concatenates the input sizes. A side with unknown sizes leaves
// its columns unknown.
func joinSizes(q *md.Query, j *plan.Join) (props.ColumnSizes, bool, error) {
	left, leftOK, err := q.AverageColumnSizes(j.Left)
	if err != nil {
		return nil, false, err
	}
	if !j.Type.ProjectsRight() {
		return left, leftOK, nil
	}
	right, rightOK, err := q.AverageColumnSizes(j.Right)
	if err != nil {
		return nil, false, err
	}
	if !leftOK && !rightOK {
		return nil, false, nil
	}
	res := make(props.ColumnSizes, 0, j.LeftWidth()+j.RightWidth())
	res = appendSizes(res, left, leftOK, j.LeftWidth())
	res = appendSizes(res, right, rightOK, j.RightWidth())
	return res, true, nil
}

func appendSizes(res, sizes props.ColumnSizes, ok bool, width int) props.ColumnSizes {
	for i := 0; i < width; i++ {
		if ok && sizes.Known(i) {
			res = append(res, sizes[i])
		} else {
			res = append(res, props.UnknownSize)
		}
	}
	return res
}

// unionSizes averages each column over the inputs that know it.
func unionSizes(q *md.Query, s *plan.SetOp) (props.ColumnSizes, bool, error) {
	var known []props.ColumnSizes
	for _, c := range s.Children {
		sizes, ok, err := q.AverageColumnSizes(c)
		if err != nil {
			return nil, false, err
		}
		if ok {
			known = append(known, sizes)
		}
	}
	switch len(known) {
	case 0:
		return nil, false, nil
	case 1:
		return known[0], true, nil
	}
	width := len(s.Columns())
	res := make(props.ColumnSizes, width)
	found := false
	for i := range res {
		var sum float64
		var n int
		for _, sizes := range known {
			if sizes.Known(i) {
				sum += sizes[i]
				n++
			}
		}
		if n == 0 {
			res[i] = props.UnknownSize
			continue
		}
		res[i] = sum / float64(n)
		found = true
	}
	if !found {
		return nil, false, nil
	}
	return res, true, nil
}

func subsetSizes(q *md.Query, s *plan.Subset) (props.ColumnSizes, bool, error) {
	rep := s.Representative()
	if rep == nil {
		return nil, false, nil
	}
	return q.AverageColumnSizes(rep)
}
