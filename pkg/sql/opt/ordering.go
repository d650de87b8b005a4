// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// OrderingColumn is one column of an Ordering.
type OrderingColumn struct {
	Ordinal    int
	Descending bool
}

// MakeOrderingColumn initializes an ordering column.
func MakeOrderingColumn(ord int, descending bool) OrderingColumn {
	return OrderingColumn{Ordinal: ord, Descending: descending}
}

func (c OrderingColumn) String() string {
	if c.Descending {
		return "-" + strconv.Itoa(c.Ordinal)
	}
	return "+" + strconv.Itoa(c.Ordinal)
}

// Ordering is a sequence of columns by which rows are sorted (a collation).
// An empty ordering means no particular order is guaranteed.
type Ordering []OrderingColumn

// Empty returns true if the ordering imposes no order.
func (o Ordering) Empty() bool {
	return len(o) == 0
}

func (o Ordering) String() string {
	var buf strings.Builder
	for i, c := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(c.String())
	}
	return buf.String()
}

// ColSet returns the set of ordinals in the ordering.
func (o Ordering) ColSet() ColSet {
	var s ColSet
	for _, c := range o {
		s.Add(c.Ordinal)
	}
	return s
}

// Equals returns true if the two orderings are identical.
func (o Ordering) Equals(rhs Ordering) bool {
	if len(o) != len(rhs) {
		return false
	}
	for i := range o {
		if o[i] != rhs[i] {
			return false
		}
	}
	return true
}

// Satisfies returns true if rows sorted by o are also sorted by required,
// meaning required is a prefix of o.
func (o Ordering) Satisfies(required Ordering) bool {
	if len(required) > len(o) {
		return false
	}
	return o[:len(required)].Equals(required)
}

// CommonPrefix returns the longest ordering that both o and rhs satisfy.
func (o Ordering) CommonPrefix(rhs Ordering) Ordering {
	n := 0
	for n < len(o) && n < len(rhs) && o[n] == rhs[n] {
		n++
	}
	if n == 0 {
		return nil
	}
	return append(Ordering(nil), o[:n]...)
}

// Shift returns a copy of the ordering with every ordinal moved by delta.
func (o Ordering) Shift(delta int) Ordering {
	if o == nil {
		return nil
	}
	res := make(Ordering, len(o))
	for i, c := range o {
		res[i] = OrderingColumn{Ordinal: c.Ordinal + delta, Descending: c.Descending}
	}
	return res
}

// Remap returns the ordering with every ordinal passed through the mapping.
// Because a sort order stops being useful at the first column that is not
// preserved, the result is truncated there (a negative mapping result).
func (o Ordering) Remap(mapping func(int) int) Ordering {
	var res Ordering
	for _, c := range o {
		j := mapping(c.Ordinal)
		if j < 0 {
			break
		}
		res = append(res, OrderingColumn{Ordinal: j, Descending: c.Descending})
	}
	return res
}

// ParseOrdering parses the String form of an ordering, for example "+0,-2".
func ParseOrdering(s string) (Ordering, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var res Ordering
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if len(part) < 2 || (part[0] != '+' && part[0] != '-') {
			return nil, errors.Newf("invalid ordering column %q", part)
		}
		ord, err := strconv.Atoi(part[1:])
		if err != nil || ord < 0 {
			return nil, errors.Newf("invalid ordering column %q", part)
		}
		res = append(res, OrderingColumn{Ordinal: ord, Descending: part[0] == '-'})
	}
	return res, nil
}
