// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package md

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/props"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
)

// Describe computes m for n and formats the answer. Missing arguments are
// filled in from the method's defaults, which depend on the number of output
// columns of the node. Unknown answers are shown as "unknown" and cycles as
// "cycle".
func Describe(q *Query, n plan.Node, m Method, args ...any) (res string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = opt.CatchOptimizerError(r)
		}
	}()
	def := m.Def()
	if len(args) < len(def.Args) && def.Defaults != nil {
		defaults := def.Defaults(len(n.Columns()))
		args = append(args, defaults[len(args):]...)
	}
	v, err := q.Get(n, m, args...)
	if err != nil {
		if errors.Is(err, ErrCyclicMetadata) {
			return "cycle", nil
		}
		return "", err
	}
	if f, ok := v.(float64); ok {
		var known bool
		switch m {
		case RowCount, DistinctRowCount, PopulationSize:
			f, known, err = validateRowCount(f)
		case Selectivity:
			f, known, err = validateSelectivity(f)
		default:
			known = true
		}
		if err != nil {
			return "", err
		}
		if !known {
			return FormatValue(nil), nil
		}
		v = f
	}
	return FormatValue(v), nil
}

// FormatValue formats a metadata answer.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "unknown"
	case float64:
		return FormatFloat(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case fmt.Stringer:
		return t.String()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		var buf strings.Builder
		buf.WriteByte('[')
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(FormatValue(rv.Index(i).Interface()))
		}
		buf.WriteByte(']')
		return buf.String()
	}
	return fmt.Sprint(v)
}

// FormatFloat formats an estimate with up to six significant digits.
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case f == math.MaxFloat64:
		return "max"
	}
	return strconv.FormatFloat(f, 'g', 6, 64)
}

// ParseArgs parses the textual arguments of m: column sets as "(0,1)",
// expressions in scalar syntax (empty for none), booleans and explain
// levels. Fewer arguments than the method takes are allowed; Describe fills
// in the rest.
func ParseArgs(m Method, strs []string) ([]any, error) {
	def := m.Def()
	if len(strs) > len(def.Args) {
		return nil, errors.Newf("%s takes %d arguments, got %d", m, len(def.Args), len(strs))
	}
	res := make([]any, len(strs))
	for i, s := range strs {
		var err error
		switch def.Args[i] {
		case colSetType:
			res[i], err = opt.ParseColSet(s)
		case exprType:
			var e scalar.Expr
			if strings.TrimSpace(s) != "" {
				e, err = scalar.Parse(s)
			}
			res[i] = e
		case boolType:
			res[i], err = strconv.ParseBool(s)
		case explainType:
			res[i], err = props.ParseExplainLevel(s)
		default:
			err = errors.AssertionFailedf("cannot parse arguments of type %s", def.Args[i])
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s argument %d", m, i+1)
		}
	}
	return res, nil
}
