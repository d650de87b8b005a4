// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package scalar

// Shared literals.
var (
	// True is the TRUE literal.
	True Expr = &Const{Value: true}
	// False is the FALSE literal.
	False Expr = &Const{Value: false}
	// Null is the NULL literal.
	Null Expr = &Const{Value: nil}
)

// Col returns a reference to the input column with the given ordinal.
func Col(i int) Expr { return &ColumnRef{Index: i} }

// Int returns an integer literal.
func Int(v int64) Expr { return &Const{Value: v} }

// Float returns a floating point literal.
func Float(v float64) Expr { return &Const{Value: v} }

// Str returns a string literal.
func Str(v string) Expr { return &Const{Value: v} }

// Bool returns a boolean literal.
func Bool(v bool) Expr {
	if v {
		return True
	}
	return False
}

// Literal returns the literal for an arbitrary datum.
func Literal(d Datum) Expr {
	if d == nil {
		return Null
	}
	return &Const{Value: d}
}

// NewCall constructs an operator call.
func NewCall(op Operator, args ...Expr) Expr {
	return &Call{Operator: op, Args: args}
}

// Func constructs a call to a named deterministic function.
func Func(name string, args ...Expr) Expr {
	return &Call{Operator: FuncOp, Name: name, Args: args}
}

// VolatileFunc constructs a call to a named function that may return a
// different result each time it is evaluated.
func VolatileFunc(name string, args ...Expr) Expr {
	return &Call{Operator: FuncOp, Name: name, Args: args, Volatile: true}
}

// Eq constructs left = right.
func Eq(left, right Expr) Expr { return NewCall(EqOp, left, right) }

// Ne constructs left <> right.
func Ne(left, right Expr) Expr { return NewCall(NeOp, left, right) }

// Lt constructs left < right.
func Lt(left, right Expr) Expr { return NewCall(LtOp, left, right) }

// Le constructs left <= right.
func Le(left, right Expr) Expr { return NewCall(LeOp, left, right) }

// Gt constructs left > right.
func Gt(left, right Expr) Expr { return NewCall(GtOp, left, right) }

// Ge constructs left >= right.
func Ge(left, right Expr) Expr { return NewCall(GeOp, left, right) }

// IsNull constructs e IS NULL.
func IsNull(e Expr) Expr { return NewCall(IsNullOp, e) }

// IsNotNull constructs e IS NOT NULL.
func IsNotNull(e Expr) Expr { return NewCall(IsNotNullOp, e) }

// IsNotDistinctFrom constructs left IS NOT DISTINCT FROM right.
func IsNotDistinctFrom(left, right Expr) Expr {
	return NewCall(IsNotDistinctFromOp, left, right)
}

// Not constructs NOT e.
func Not(e Expr) Expr { return NewCall(NotOp, e) }

// Plus constructs left + right.
func Plus(left, right Expr) Expr { return NewCall(PlusOp, left, right) }

// And returns the conjunction of the given expressions. Nested conjunctions
// are flattened, TRUE operands and duplicates are dropped, and the result is
// FALSE if any operand is FALSE. The conjunction of nothing is TRUE. Nil
// operands are treated as TRUE.
func And(exprs ...Expr) Expr {
	var list []Expr
	seen := make(map[string]struct{})
	for _, e := range exprs {
		for _, c := range Conjuncts(e) {
			if IsAlwaysFalse(c) {
				return False
			}
			key := c.String()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			list = append(list, c)
		}
	}
	switch len(list) {
	case 0:
		return True
	case 1:
		return list[0]
	}
	return &Call{Operator: AndOp, Args: list}
}

// Or returns the disjunction of the given expressions. Nested disjunctions
// are flattened, FALSE operands and duplicates are dropped, and the result is
// TRUE if any operand is TRUE. The disjunction of nothing is FALSE.
func Or(exprs ...Expr) Expr {
	var list []Expr
	seen := make(map[string]struct{})
	for _, e := range exprs {
		for _, d := range Disjuncts(e) {
			if IsAlwaysTrue(d) {
				return True
			}
			key := d.String()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			list = append(list, d)
		}
	}
	switch len(list) {
	case 0:
		return False
	case 1:
		return list[0]
	}
	return &Call{Operator: OrOp, Args: list}
}
