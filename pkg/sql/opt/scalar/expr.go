// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package scalar defines the scalar expression trees used as plan node
// conditions, projections and derived predicates.
//
// Expressions are immutable. The String form of an expression is canonical:
// two expressions with the same String are considered identical, which is
// how predicate lists are deduplicated and how metadata cache keys are
// built.
package scalar

import (
	"fmt"
	"strconv"
	"strings"
)

// Datum is the value of a constant: int64, float64, string, bool, or nil for
// NULL.
type Datum = interface{}

// Expr is a node in a scalar expression tree.
type Expr interface {
	fmt.Stringer

	// Op returns the operator of the expression.
	Op() Operator

	// ChildCount returns the number of children of the expression.
	ChildCount() int

	// Child returns the nth child of the expression.
	Child(nth int) Expr
}

// ColumnRef references an input column by ordinal.
type ColumnRef struct {
	Index int
}

// Op is part of the Expr interface.
func (c *ColumnRef) Op() Operator { return VariableOp }

// ChildCount is part of the Expr interface.
func (c *ColumnRef) ChildCount() int { return 0 }

// Child is part of the Expr interface.
func (c *ColumnRef) Child(nth int) Expr { panic("no children") }

func (c *ColumnRef) String() string { return "$" + strconv.Itoa(c.Index) }

// Const is a literal value.
type Const struct {
	Value Datum
}

// Op is part of the Expr interface.
func (c *Const) Op() Operator { return ConstOp }

// ChildCount is part of the Expr interface.
func (c *Const) ChildCount() int { return 0 }

// Child is part of the Expr interface.
func (c *Const) Child(nth int) Expr { panic("no children") }

func (c *Const) String() string { return FormatDatum(c.Value) }

// IsNull returns true if the constant is NULL.
func (c *Const) IsNull() bool { return c.Value == nil }

// Placeholder is a dynamic parameter whose value is only known at execution
// time. It is never constant.
type Placeholder struct {
	Index int
}

// Op is part of the Expr interface.
func (p *Placeholder) Op() Operator { return PlaceholderOp }

// ChildCount is part of the Expr interface.
func (p *Placeholder) ChildCount() int { return 0 }

// Child is part of the Expr interface.
func (p *Placeholder) Child(nth int) Expr { panic("no children") }

func (p *Placeholder) String() string { return "?" + strconv.Itoa(p.Index) }

// TableRef identifies one occurrence of a base table in a plan. Entity
// distinguishes multiple occurrences of the same table, for example in a
// self-join.
type TableRef struct {
	Name   string
	Entity int
}

func (r TableRef) String() string { return r.Name + "#" + strconv.Itoa(r.Entity) }

// TableColumnRef references a column of a base table occurrence. It is the
// vocabulary of expression lineage.
type TableColumnRef struct {
	Table TableRef
	Index int
}

// Op is part of the Expr interface.
func (c *TableColumnRef) Op() Operator { return TableColumnOp }

// ChildCount is part of the Expr interface.
func (c *TableColumnRef) ChildCount() int { return 0 }

// Child is part of the Expr interface.
func (c *TableColumnRef) Child(nth int) Expr { panic("no children") }

func (c *TableColumnRef) String() string {
	return c.Table.String() + ".$" + strconv.Itoa(c.Index)
}

// Call applies an operator (or a named function, for FuncOp) to arguments.
type Call struct {
	Operator Operator
	Args     []Expr
	// Name is the function name for FuncOp.
	Name string
	// Volatile is set for functions that may return different results for
	// the same arguments, such as random().
	Volatile bool
}

// Op is part of the Expr interface.
func (c *Call) Op() Operator { return c.Operator }

// ChildCount is part of the Expr interface.
func (c *Call) ChildCount() int { return len(c.Args) }

// Child is part of the Expr interface.
func (c *Call) Child(nth int) Expr { return c.Args[nth] }

func (c *Call) String() string {
	var buf strings.Builder
	c.format(&buf)
	return buf.String()
}

func (c *Call) format(buf *strings.Builder) {
	info := &opInfo[c.Operator]
	switch {
	case c.Operator == FuncOp:
		buf.WriteString(c.Name)
		buf.WriteByte('(')
		for i, a := range c.Args {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(a.String())
		}
		buf.WriteByte(')')

	case c.Operator == NotOp:
		buf.WriteString("NOT ")
		formatOperand(buf, c.Args[0])

	case c.Operator == UnaryMinusOp:
		buf.WriteByte('-')
		formatOperand(buf, c.Args[0])

	case info.postfix:
		formatOperand(buf, c.Args[0])
		buf.WriteByte(' ')
		buf.WriteString(info.symbol)

	default:
		for i, a := range c.Args {
			if i > 0 {
				buf.WriteByte(' ')
				buf.WriteString(info.symbol)
				buf.WriteByte(' ')
			}
			formatOperand(buf, a)
		}
	}
}

// formatOperand writes an operand, wrapped in parentheses when it is itself
// an operator expression that would otherwise be ambiguous.
func formatOperand(buf *strings.Builder, e Expr) {
	if c, ok := e.(*Call); ok && c.Operator != FuncOp {
		buf.WriteByte('(')
		c.format(buf)
		buf.WriteByte(')')
		return
	}
	buf.WriteString(e.String())
}

// FormatDatum returns the literal form of a datum.
func FormatDatum(d Datum) string {
	switch t := d.(type) {
	case nil:
		return "NULL"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		s := strconv.FormatFloat(t, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEIN") {
			s += ".0"
		}
		return s
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	}
	return fmt.Sprintf("%v", d)
}
