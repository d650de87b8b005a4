// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package scalar

import "strconv"

// Operator identifies the kind of a scalar expression.
type Operator uint8

const (
	// UnknownOp is the zero value and never appears in a valid expression.
	UnknownOp Operator = iota

	// VariableOp is the operator of ColumnRef.
	VariableOp
	// ConstOp is the operator of Const.
	ConstOp
	// PlaceholderOp is the operator of Placeholder.
	PlaceholderOp
	// TableColumnOp is the operator of TableColumnRef.
	TableColumnOp

	EqOp
	NeOp
	LtOp
	LeOp
	GtOp
	GeOp
	IsNullOp
	IsNotNullOp
	IsNotDistinctFromOp
	IsDistinctFromOp

	AndOp
	OrOp
	NotOp

	PlusOp
	MinusOp
	MultOp
	DivOp
	UnaryMinusOp

	// FuncOp is a call to a named function.
	FuncOp

	// NumOperators is the number of operators.
	NumOperators
)

type operatorInfo struct {
	name    string
	symbol  string
	postfix bool
}

var opInfo = [NumOperators]operatorInfo{
	UnknownOp:           {name: "unknown"},
	VariableOp:          {name: "variable"},
	ConstOp:             {name: "const"},
	PlaceholderOp:       {name: "placeholder"},
	TableColumnOp:       {name: "table-column"},
	EqOp:                {name: "eq", symbol: "="},
	NeOp:                {name: "ne", symbol: "<>"},
	LtOp:                {name: "lt", symbol: "<"},
	LeOp:                {name: "le", symbol: "<="},
	GtOp:                {name: "gt", symbol: ">"},
	GeOp:                {name: "ge", symbol: ">="},
	IsNullOp:            {name: "is-null", symbol: "IS NULL", postfix: true},
	IsNotNullOp:         {name: "is-not-null", symbol: "IS NOT NULL", postfix: true},
	IsNotDistinctFromOp: {name: "is-not-distinct-from", symbol: "IS NOT DISTINCT FROM"},
	IsDistinctFromOp:    {name: "is-distinct-from", symbol: "IS DISTINCT FROM"},
	AndOp:               {name: "and", symbol: "AND"},
	OrOp:                {name: "or", symbol: "OR"},
	NotOp:               {name: "not", symbol: "NOT"},
	PlusOp:              {name: "plus", symbol: "+"},
	MinusOp:             {name: "minus", symbol: "-"},
	MultOp:              {name: "mult", symbol: "*"},
	DivOp:               {name: "div", symbol: "/"},
	UnaryMinusOp:        {name: "unary-minus", symbol: "-"},
	FuncOp:              {name: "function"},
}

func (op Operator) String() string {
	if op < NumOperators {
		return opInfo[op].name
	}
	return "op(" + strconv.Itoa(int(op)) + ")"
}

// IsComparison returns true for the binary comparison operators =, <>, <,
// <=, > and >=.
func (op Operator) IsComparison() bool {
	return op >= EqOp && op <= GeOp
}

// IsArithmetic returns true for the arithmetic operators.
func (op Operator) IsArithmetic() bool {
	return op >= PlusOp && op <= UnaryMinusOp
}

// IsLeaf returns true for the operators of expressions without children.
func (op Operator) IsLeaf() bool {
	return op >= VariableOp && op <= TableColumnOp
}

// Commute returns the comparison operator obtained by swapping the operands,
// for example > becomes <.
func (op Operator) Commute() Operator {
	switch op {
	case LtOp:
		return GtOp
	case LeOp:
		return GeOp
	case GtOp:
		return LtOp
	case GeOp:
		return LeOp
	}
	return op
}

// Negate returns the comparison operator that is TRUE exactly when op is
// FALSE, for non-NULL operands.
func (op Operator) Negate() (Operator, bool) {
	switch op {
	case EqOp:
		return NeOp, true
	case NeOp:
		return EqOp, true
	case LtOp:
		return GeOp, true
	case LeOp:
		return GtOp, true
	case GtOp:
		return LeOp, true
	case GeOp:
		return LtOp, true
	case IsNullOp:
		return IsNotNullOp, true
	case IsNotNullOp:
		return IsNullOp, true
	case IsNotDistinctFromOp:
		return IsDistinctFromOp, true
	case IsDistinctFromOp:
		return IsNotDistinctFromOp, true
	}
	return UnknownOp, false
}
