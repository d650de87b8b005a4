// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package plan contains the relational plan nodes that metadata is derived
// for. Nodes are compared by identity: two structurally equal nodes are still
// different nodes.
package plan

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optmd/pkg/sql/types"
)

// Node is a relational operator.
type Node interface {
	// Kind returns the node kind, used to resolve metadata handlers.
	Kind() Kind
	// Inputs returns the child nodes. Search-structure nodes (Subset, Vertex)
	// report no inputs; their members are reached through their own fields.
	Inputs() []Node
	// Columns describes the output columns.
	Columns() []Column
	// String returns a one line description of the node.
	String() string
}

// SelfEstimator is implemented by nodes that know their own row count
// without consulting their inputs.
type SelfEstimator interface {
	EstimateRowCount() (float64, bool)
}

// DefaultTableRowCount is the estimate for a table without statistics.
const DefaultTableRowCount = 100

// Scan reads all rows of a table.
type Scan struct {
	Table *Table
}

// Kind is part of the Node interface.
func (s *Scan) Kind() Kind { return ScanKind }

// Inputs is part of the Node interface.
func (s *Scan) Inputs() []Node { return nil }

// Columns is part of the Node interface.
func (s *Scan) Columns() []Column { return s.Table.Cols }

func (s *Scan) String() string { return "scan " + s.Table.Name }

// EstimateRowCount is part of the SelfEstimator interface.
func (s *Scan) EstimateRowCount() (float64, bool) {
	if s.Table.Stats.HasRowCount {
		return s.Table.Stats.RowCount, true
	}
	return DefaultTableRowCount, true
}

// Values produces literal rows.
type Values struct {
	Cols   []Column
	Tuples [][]scalar.Datum
}

// Kind is part of the Node interface.
func (v *Values) Kind() Kind { return ValuesKind }

// Inputs is part of the Node interface.
func (v *Values) Inputs() []Node { return nil }

// Columns is part of the Node interface.
func (v *Values) Columns() []Column { return v.Cols }

func (v *Values) String() string {
	var buf strings.Builder
	buf.WriteString("values")
	for i, t := range v.Tuples {
		if i == 3 {
			fmt.Fprintf(&buf, " ... (%d rows)", len(v.Tuples))
			break
		}
		buf.WriteString(" (")
		for j, d := range t {
			if j > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(scalar.FormatDatum(d))
		}
		buf.WriteByte(')')
	}
	return buf.String()
}

// EstimateRowCount is part of the SelfEstimator interface.
func (v *Values) EstimateRowCount() (float64, bool) {
	return float64(len(v.Tuples)), true
}

// Filter returns the input rows for which Condition is TRUE.
type Filter struct {
	Input     Node
	Condition scalar.Expr
}

// Kind is part of the Node interface.
func (f *Filter) Kind() Kind { return FilterKind }

// Inputs is part of the Node interface.
func (f *Filter) Inputs() []Node { return []Node{f.Input} }

// Columns is part of the Node interface.
func (f *Filter) Columns() []Column { return f.Input.Columns() }

func (f *Filter) String() string { return fmt.Sprintf("filter %s", f.Condition) }

// Project computes one output column per expression.
type Project struct {
	Input Node
	Exprs []scalar.Expr
	Cols  []Column
}

// NewProject returns a projection with output columns derived from the
// expressions.
func NewProject(input Node, exprs ...scalar.Expr) *Project {
	in := input.Columns()
	cols := make([]Column, len(exprs))
	for i, e := range exprs {
		if ref, ok := e.(*scalar.ColumnRef); ok && ref.Index < len(in) {
			cols[i] = in[ref.Index]
			continue
		}
		cols[i] = Column{
			Name:     fmt.Sprintf("expr%d", i),
			Type:     InferType(e, in),
			Nullable: inferNullable(e, in),
		}
	}
	return &Project{Input: input, Exprs: exprs, Cols: cols}
}

// Kind is part of the Node interface.
func (p *Project) Kind() Kind { return ProjectKind }

// Inputs is part of the Node interface.
func (p *Project) Inputs() []Node { return []Node{p.Input} }

// Columns is part of the Node interface.
func (p *Project) Columns() []Column { return p.Cols }

func (p *Project) String() string {
	return "project " + formatExprs(p.Exprs)
}

// Source returns the input column that output column i passes through, if
// the expression is a plain column reference.
func (p *Project) Source(i int) (int, bool) {
	if ref, ok := p.Exprs[i].(*scalar.ColumnRef); ok {
		return ref.Index, true
	}
	return 0, false
}

// InputToOutput returns a mapping from input columns to the first output
// column that passes them through; -1 if the column is not projected.
func (p *Project) InputToOutput() func(int) int {
	m := make(map[int]int, len(p.Exprs))
	for i := range p.Exprs {
		if src, ok := p.Source(i); ok {
			if _, dup := m[src]; !dup {
				m[src] = i
			}
		}
	}
	return func(i int) int {
		if j, ok := m[i]; ok {
			return j
		}
		return -1
	}
}

// AggCall is an aggregate function call over input columns.
type AggCall struct {
	Func     string
	Args     []int
	Distinct bool
	Name     string
}

func (a AggCall) String() string {
	var buf strings.Builder
	buf.WriteString(a.Func)
	buf.WriteByte('(')
	if a.Distinct {
		buf.WriteString("DISTINCT ")
	}
	for i, c := range a.Args {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "$%d", c)
	}
	buf.WriteByte(')')
	return buf.String()
}

// Aggregate groups the input rows on GroupKey and computes Aggs for each
// group. The output has the group key columns, in increasing order, followed
// by one column per aggregate call.
type Aggregate struct {
	Input    Node
	GroupKey opt.ColSet
	// GroupingSets lists the grouping sets; nil means the single set
	// GroupKey.
	GroupingSets []opt.ColSet
	Aggs         []AggCall
}

// Kind is part of the Node interface.
func (a *Aggregate) Kind() Kind { return AggregateKind }

// Inputs is part of the Node interface.
func (a *Aggregate) Inputs() []Node { return []Node{a.Input} }

// Columns is part of the Node interface.
func (a *Aggregate) Columns() []Column {
	in := a.Input.Columns()
	cols := make([]Column, 0, a.GroupKey.Len()+len(a.Aggs))
	multipleSets := a.NumGroupingSets() > 1
	a.GroupKey.ForEach(func(i int) {
		c := in[i]
		if multipleSets {
			c.Nullable = true
		}
		cols = append(cols, c)
	})
	for i, agg := range a.Aggs {
		c := Column{Name: agg.Name, Nullable: true}
		if c.Name == "" {
			c.Name = fmt.Sprintf("agg%d", i)
		}
		switch agg.Func {
		case "count":
			c.Type, c.Nullable = types.Int, false
		case "avg":
			c.Type = types.Float
		default:
			if len(agg.Args) > 0 {
				c.Type = in[agg.Args[0]].Type
			}
		}
		cols = append(cols, c)
	}
	return cols
}

func (a *Aggregate) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "aggregate group=%s", a.GroupKey)
	if len(a.GroupingSets) > 0 {
		buf.WriteString(" sets=")
		for i, s := range a.GroupingSets {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(s.String())
		}
	}
	if len(a.Aggs) > 0 {
		buf.WriteString(" aggs=[")
		for i, agg := range a.Aggs {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(agg.String())
		}
		buf.WriteByte(']')
	}
	return buf.String()
}

// NumGroupingSets returns the number of grouping sets.
func (a *Aggregate) NumGroupingSets() int {
	if len(a.GroupingSets) == 0 {
		return 1
	}
	return len(a.GroupingSets)
}

// GroupCount returns the number of group key columns, which are the first
// output columns.
func (a *Aggregate) GroupCount() int { return a.GroupKey.Len() }

// InputToOutput maps a group key column of the input to its output ordinal;
// -1 for other columns.
func (a *Aggregate) InputToOutput() func(int) int {
	m := make(map[int]int, a.GroupKey.Len())
	for i, c := range a.GroupKey.Ordered() {
		m[c] = i
	}
	return func(i int) int {
		if j, ok := m[i]; ok {
			return j
		}
		return -1
	}
}

// Sort orders its input and optionally skips Offset rows and returns at most
// Fetch rows. Offset and Fetch are nil when absent; a Placeholder makes them
// dynamic.
type Sort struct {
	Input    Node
	Ordering opt.Ordering
	Offset   scalar.Expr
	Fetch    scalar.Expr
}

// Kind is part of the Node interface.
func (s *Sort) Kind() Kind { return SortKind }

// Inputs is part of the Node interface.
func (s *Sort) Inputs() []Node { return []Node{s.Input} }

// Columns is part of the Node interface.
func (s *Sort) Columns() []Column { return s.Input.Columns() }

func (s *Sort) String() string {
	var buf strings.Builder
	buf.WriteString("sort")
	if !s.Ordering.Empty() {
		buf.WriteString(" " + s.Ordering.String())
	}
	if s.Offset != nil {
		fmt.Fprintf(&buf, " offset=%s", s.Offset)
	}
	if s.Fetch != nil {
		fmt.Fprintf(&buf, " fetch=%s", s.Fetch)
	}
	return buf.String()
}

// LiteralInt returns the value of an integer literal.
func LiteralInt(e scalar.Expr) (int64, bool) {
	if c, ok := e.(*scalar.Const); ok {
		switch v := c.Value.(type) {
		case int64:
			return v, true
		case float64:
			if v == float64(int64(v)) {
				return int64(v), true
			}
		}
	}
	return 0, false
}

// Exchange redistributes its input. A sort exchange also sorts each
// partition by Ordering.
type Exchange struct {
	Input        Node
	Distribution opt.Distribution
	// Ordering is set only for sort exchanges.
	Ordering opt.Ordering
	// Partitions is the number of parallel partitions the exchange produces;
	// zero means unknown.
	Partitions int
}

// Kind is part of the Node interface.
func (e *Exchange) Kind() Kind {
	if e.Ordering != nil {
		return SortExchangeKind
	}
	return ExchangeKind
}

// Inputs is part of the Node interface.
func (e *Exchange) Inputs() []Node { return []Node{e.Input} }

// Columns is part of the Node interface.
func (e *Exchange) Columns() []Column { return e.Input.Columns() }

func (e *Exchange) String() string {
	s := e.Kind().Name() + " " + e.Distribution.String()
	if e.Ordering != nil {
		s += " " + e.Ordering.String()
	}
	if e.Partitions > 0 {
		s += fmt.Sprintf(" partitions=%d", e.Partitions)
	}
	return s
}

// Convert changes the physical representation of its input without changing
// its rows.
type Convert struct {
	Input Node
}

// Kind is part of the Node interface.
func (c *Convert) Kind() Kind { return ConvertKind }

// Inputs is part of the Node interface.
func (c *Convert) Inputs() []Node { return []Node{c.Input} }

// Columns is part of the Node interface.
func (c *Convert) Columns() []Column { return c.Input.Columns() }

func (c *Convert) String() string { return "convert" }

// InferType returns the type of e over input columns with the given types.
func InferType(e scalar.Expr, in []Column) types.T {
	switch t := e.(type) {
	case *scalar.ColumnRef:
		if t.Index < len(in) {
			return in[t.Index].Type
		}
	case *scalar.Const:
		switch t.Value.(type) {
		case bool:
			return types.Bool
		case int64:
			return types.Int
		case float64:
			return types.Float
		case string:
			return types.String
		}
	case *scalar.Call:
		op := t.Operator
		switch {
		case op.IsComparison(), op == scalar.AndOp, op == scalar.OrOp, op == scalar.NotOp:
			return types.Bool
		case op.IsArithmetic():
			res := types.Int
			for _, a := range t.Args {
				if at := InferType(a, in); at.Family == types.FloatFamily || op == scalar.DivOp {
					res = types.Float
				}
			}
			return res
		}
	}
	return types.Unknown
}

func inferNullable(e scalar.Expr, in []Column) bool {
	switch t := e.(type) {
	case *scalar.Const:
		return t.IsNull()
	case *scalar.Call:
		switch t.Operator {
		case scalar.IsNullOp, scalar.IsNotNullOp, scalar.IsDistinctFromOp, scalar.IsNotDistinctFromOp:
			return false
		}
		if t.Operator.IsComparison() || t.Operator.IsArithmetic() {
			for _, a := range t.Args {
				if inferNullable(a, in) {
					return true
				}
			}
			return false
		}
	case *scalar.ColumnRef:
		return t.Index >= len(in) || in[t.Index].Nullable
	}
	return true
}

func formatExprs(list []scalar.Expr) string {
	var buf strings.Builder
	buf.WriteByte('[')
	for i, e := range list {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(e.String())
	}
	buf.WriteByte(']')
	return buf.String()
}
