// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package norm

import (
	"math"
	"strings"

	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
)

// Executor evaluates constant expressions during simplification. The
// planner supplies it so that simplification can fold whatever its
// execution engine knows how to evaluate.
type Executor interface {
	// Reduce evaluates a constant expression (see scalar.IsConstant). It
	// returns false if the expression cannot be evaluated at plan time.
	Reduce(e scalar.Expr) (scalar.Datum, bool)
}

// DefaultExecutor evaluates comparisons, boolean connectives, NULL tests and
// arithmetic over literals. Function calls are not evaluated.
type DefaultExecutor struct{}

var _ Executor = DefaultExecutor{}

// Reduce is part of the Executor interface.
func (DefaultExecutor) Reduce(e scalar.Expr) (scalar.Datum, bool) {
	return Eval(e, nil)
}

// Eval evaluates e with column references bound to the given row. It
// returns false if the expression contains something that cannot be
// evaluated (functions, placeholders, out of range columns or mismatched
// types).
func Eval(e scalar.Expr, row []scalar.Datum) (scalar.Datum, bool) {
	switch t := e.(type) {
	case *scalar.Const:
		return t.Value, true
	case *scalar.ColumnRef:
		if t.Index < 0 || t.Index >= len(row) {
			return nil, false
		}
		return row[t.Index], true
	case *scalar.Call:
		return evalCall(t, row)
	}
	return nil, false
}

func evalCall(c *scalar.Call, row []scalar.Datum) (scalar.Datum, bool) {
	switch c.Operator {
	case scalar.AndOp, scalar.OrOp:
		// Three-valued logic: the absorbing value wins over NULL.
		absorbing := c.Operator == scalar.OrOp
		sawNull := false
		for _, a := range c.Args {
			v, ok := Eval(a, row)
			if !ok {
				return nil, false
			}
			if v == nil {
				sawNull = true
				continue
			}
			b, isBool := v.(bool)
			if !isBool {
				return nil, false
			}
			if b == absorbing {
				return absorbing, true
			}
		}
		if sawNull {
			return nil, true
		}
		return !absorbing, true

	case scalar.FuncOp:
		return nil, false
	}

	args := make([]scalar.Datum, len(c.Args))
	for i, a := range c.Args {
		v, ok := Eval(a, row)
		if !ok {
			return nil, false
		}
		args[i] = v
	}

	switch c.Operator {
	case scalar.NotOp:
		if args[0] == nil {
			return nil, true
		}
		b, ok := args[0].(bool)
		if !ok {
			return nil, false
		}
		return !b, true

	case scalar.IsNullOp:
		return args[0] == nil, true

	case scalar.IsNotNullOp:
		return args[0] != nil, true

	case scalar.IsNotDistinctFromOp, scalar.IsDistinctFromOp:
		var same bool
		switch {
		case args[0] == nil || args[1] == nil:
			same = args[0] == nil && args[1] == nil
		default:
			cmp, ok := Compare(args[0], args[1])
			if !ok {
				return nil, false
			}
			same = cmp == 0
		}
		if c.Operator == scalar.IsDistinctFromOp {
			return !same, true
		}
		return same, true

	case scalar.UnaryMinusOp:
		switch v := args[0].(type) {
		case nil:
			return nil, true
		case int64:
			return -v, true
		case float64:
			return -v, true
		}
		return nil, false
	}

	if c.Operator.IsComparison() {
		if args[0] == nil || args[1] == nil {
			return nil, true
		}
		cmp, ok := Compare(args[0], args[1])
		if !ok {
			return nil, false
		}
		switch c.Operator {
		case scalar.EqOp:
			return cmp == 0, true
		case scalar.NeOp:
			return cmp != 0, true
		case scalar.LtOp:
			return cmp < 0, true
		case scalar.LeOp:
			return cmp <= 0, true
		case scalar.GtOp:
			return cmp > 0, true
		case scalar.GeOp:
			return cmp >= 0, true
		}
	}

	if c.Operator.IsArithmetic() {
		return arith(c.Operator, args[0], args[1])
	}
	return nil, false
}

func arith(op scalar.Operator, l, r scalar.Datum) (scalar.Datum, bool) {
	if l == nil || r == nil {
		return nil, true
	}
	li, lInt := l.(int64)
	ri, rInt := r.(int64)
	if lInt && rInt {
		switch op {
		case scalar.PlusOp:
			return li + ri, true
		case scalar.MinusOp:
			return li - ri, true
		case scalar.MultOp:
			return li * ri, true
		case scalar.DivOp:
			if ri == 0 {
				return nil, false
			}
			return float64(li) / float64(ri), true
		}
		return nil, false
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, false
	}
	switch op {
	case scalar.PlusOp:
		return lf + rf, true
	case scalar.MinusOp:
		return lf - rf, true
	case scalar.MultOp:
		return lf * rf, true
	case scalar.DivOp:
		if rf == 0 {
			return nil, false
		}
		return lf / rf, true
	}
	return nil, false
}

func toFloat(d scalar.Datum) (float64, bool) {
	switch v := d.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// Compare orders two non-NULL datums. Integers and floats compare
// numerically with each other; other types only compare with themselves.
func Compare(l, r scalar.Datum) (int, bool) {
	if lf, ok := toFloat(l); ok {
		rf, ok := toFloat(r)
		if !ok {
			return 0, false
		}
		li, lInt := l.(int64)
		ri, rInt := r.(int64)
		if lInt && rInt {
			return cmpOrdered(li, ri), true
		}
		if math.IsNaN(lf) || math.IsNaN(rf) {
			return 0, false
		}
		return cmpOrdered(lf, rf), true
	}
	switch lv := l.(type) {
	case string:
		rv, ok := r.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(lv, rv), true
	case bool:
		rv, ok := r.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case lv == rv:
			return 0, true
		case !lv:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
