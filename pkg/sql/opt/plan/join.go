// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package plan

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
)

// JoinType is the logical type of a join.
type JoinType uint8

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	FullJoin
	// SemiJoin returns the left rows with at least one match.
	SemiJoin
	// AntiJoin returns the left rows without a match.
	AntiJoin
)

var joinTypeNames = [...]string{
	InnerJoin: "inner",
	LeftJoin:  "left",
	RightJoin: "right",
	FullJoin:  "full",
	SemiJoin:  "semi",
	AntiJoin:  "anti",
}

func (t JoinType) String() string { return joinTypeNames[t] }

// ParseJoinType returns the join type with the given name.
func ParseJoinType(s string) (JoinType, error) {
	for i, n := range joinTypeNames {
		if strings.EqualFold(n, s) {
			return JoinType(i), nil
		}
	}
	return 0, errors.Newf("unknown join type %q", s)
}

// GeneratesNullsOnLeft returns true if left columns can be NULL-extended.
func (t JoinType) GeneratesNullsOnLeft() bool { return t == RightJoin || t == FullJoin }

// GeneratesNullsOnRight returns true if right columns can be NULL-extended.
func (t JoinType) GeneratesNullsOnRight() bool { return t == LeftJoin || t == FullJoin }

// ProjectsRight returns true if the right columns are part of the output.
func (t JoinType) ProjectsRight() bool { return t != SemiJoin && t != AntiJoin }

// JoinAlgorithm distinguishes the physical join kinds.
type JoinAlgorithm uint8

const (
	HashJoinAlgo JoinAlgorithm = iota
	MergeJoinAlgo
	NestedLoopJoinAlgo
)

// Join combines the rows of two inputs. The condition refers to the left
// columns as $0..$n-1 and to the right columns as $n.. where n is the number
// of left columns, even for semi and anti joins.
type Join struct {
	Algorithm JoinAlgorithm
	Type      JoinType
	Left      Node
	Right     Node
	Condition scalar.Expr
}

// Kind is part of the Node interface.
func (j *Join) Kind() Kind {
	switch j.Algorithm {
	case MergeJoinAlgo:
		return MergeJoinKind
	case NestedLoopJoinAlgo:
		return NestedLoopJoinKind
	}
	return HashJoinKind
}

// Inputs is part of the Node interface.
func (j *Join) Inputs() []Node { return []Node{j.Left, j.Right} }

// Columns is part of the Node interface.
func (j *Join) Columns() []Column {
	left := j.Left.Columns()
	if !j.Type.ProjectsRight() {
		return left
	}
	right := j.Right.Columns()
	cols := make([]Column, 0, len(left)+len(right))
	for _, c := range left {
		if j.Type.GeneratesNullsOnLeft() {
			c.Nullable = true
		}
		cols = append(cols, c)
	}
	for _, c := range right {
		if j.Type.GeneratesNullsOnRight() {
			c.Nullable = true
		}
		cols = append(cols, c)
	}
	return cols
}

func (j *Join) String() string {
	return fmt.Sprintf("%s %s on %s", j.Kind().Name(), j.Type, condString(j.Condition))
}

// LeftWidth returns the number of left columns.
func (j *Join) LeftWidth() int { return len(j.Left.Columns()) }

// RightWidth returns the number of right columns.
func (j *Join) RightWidth() int { return len(j.Right.Columns()) }

// EquiCondition splits the condition into equalities between a left and a
// right column and the remaining conjuncts. Right keys are ordinals of the
// right input.
func (j *Join) EquiCondition() (leftKeys, rightKeys []int, residual []scalar.Expr) {
	n := j.LeftWidth()
	for _, c := range scalar.Conjuncts(j.Condition) {
		if l, r, ok := scalar.ColumnEquality(c); ok {
			switch {
			case l < n && r >= n:
				leftKeys, rightKeys = append(leftKeys, l), append(rightKeys, r-n)
				continue
			case r < n && l >= n:
				leftKeys, rightKeys = append(leftKeys, r), append(rightKeys, l-n)
				continue
			}
		}
		residual = append(residual, c)
	}
	return leftKeys, rightKeys, residual
}

// SetOpType is the kind of set operation.
type SetOpType uint8

const (
	UnionOp SetOpType = iota
	IntersectOp
	MinusOp
)

// SetOp is a union, intersection or difference of its inputs. Without All
// the result has no duplicates.
type SetOp struct {
	Type     SetOpType
	Children []Node
	All      bool
}

// Kind is part of the Node interface.
func (s *SetOp) Kind() Kind {
	switch s.Type {
	case IntersectOp:
		return IntersectKind
	case MinusOp:
		return MinusKind
	}
	return UnionKind
}

// Inputs is part of the Node interface.
func (s *SetOp) Inputs() []Node { return s.Children }

// Columns is part of the Node interface.
func (s *SetOp) Columns() []Column {
	cols := append([]Column(nil), s.Children[0].Columns()...)
	for _, child := range s.Children[1:] {
		for i, c := range child.Columns() {
			if i < len(cols) && c.Nullable {
				cols[i].Nullable = true
			}
		}
	}
	return cols
}

func (s *SetOp) String() string {
	if s.All {
		return s.Kind().Name() + " all"
	}
	return s.Kind().Name()
}

// Subset is a group of equivalent nodes in a search structure. Members may
// refer back to the subset, directly or indirectly, so a subset can be part
// of a cycle.
type Subset struct {
	Name    string
	Members []Node
	// Best is the cheapest member found so far, if any.
	Best Node
	// Original is the node the group was created from, if known.
	Original     Node
	Collations   []opt.Ordering
	Distribution opt.Distribution
}

// Kind is part of the Node interface.
func (s *Subset) Kind() Kind { return SubsetKind }

// Inputs is part of the Node interface.
func (s *Subset) Inputs() []Node { return nil }

// Columns is part of the Node interface.
func (s *Subset) Columns() []Column {
	if r := s.Representative(); r != nil {
		return r.Columns()
	}
	return nil
}

func (s *Subset) String() string {
	return fmt.Sprintf("subset %s (%d members)", s.Name, len(s.Members))
}

// Representative returns the best member, or the original node, or the first
// member.
func (s *Subset) Representative() Node {
	switch {
	case s.Best != nil:
		return s.Best
	case s.Original != nil:
		return s.Original
	case len(s.Members) > 0:
		return s.Members[0]
	}
	return nil
}

// Vertex wraps a node in a rewrite graph. Metadata for a vertex is the
// metadata of its current node.
type Vertex struct {
	Current Node
}

// Kind is part of the Node interface.
func (v *Vertex) Kind() Kind { return VertexKind }

// Inputs is part of the Node interface.
func (v *Vertex) Inputs() []Node { return nil }

// Columns is part of the Node interface.
func (v *Vertex) Columns() []Column { return v.Current.Columns() }

func (v *Vertex) String() string { return "vertex" }

// Unwrap returns the node wrapped by any chain of vertices.
func Unwrap(n Node) Node {
	for {
		v, ok := n.(*Vertex)
		if !ok {
			return n
		}
		n = v.Current
	}
}

func condString(e scalar.Expr) string {
	if e == nil {
		return "true"
	}
	return e.String()
}
