// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"bytes"
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/tools/container/intsets"
)

// smallCutoff is the size of the bitmap used for ordinals in [0, smallCutoff).
const smallCutoff = 64

// ColSet is a set of column ordinals. The ordinals refer to the output
// columns of a plan node (or, for a join, to the concatenation of the output
// columns of its inputs). Sets of small ordinals are stored inline; larger
// ordinals spill into an intsets.Sparse.
//
// ColSet has value semantics only for sets that fit the inline bitmap. Use
// Copy to obtain an independent set before mutating a set that may share
// storage with another.
type ColSet struct {
	small uint64
	large *intsets.Sparse
}

// MakeColSet returns a set initialized with the given ordinals.
func MakeColSet(ords ...int) ColSet {
	var s ColSet
	for _, o := range ords {
		s.Add(o)
	}
	return s
}

// MakeColSetRange returns the set containing [from, to).
func MakeColSetRange(from, to int) ColSet {
	var s ColSet
	for i := from; i < to; i++ {
		s.Add(i)
	}
	return s
}

func (s *ColSet) toLarge() *intsets.Sparse {
	if s.large == nil {
		s.large = new(intsets.Sparse)
	}
	return s.large
}

// Add adds an ordinal to the set.
func (s *ColSet) Add(i int) {
	if i < 0 {
		panic(fmt.Sprintf("negative column ordinal %d", i))
	}
	if i < smallCutoff {
		s.small |= 1 << uint64(i)
		return
	}
	s.toLarge().Insert(i)
}

// Remove removes an ordinal from the set.
func (s *ColSet) Remove(i int) {
	if i < smallCutoff {
		s.small &^= 1 << uint64(i)
		return
	}
	if s.large != nil {
		s.large.Remove(i)
	}
}

// Contains returns true if the set contains the ordinal.
func (s ColSet) Contains(i int) bool {
	if i < 0 {
		return false
	}
	if i < smallCutoff {
		return s.small&(1<<uint64(i)) != 0
	}
	return s.large != nil && s.large.Has(i)
}

// Empty returns true if the set is empty.
func (s ColSet) Empty() bool {
	return s.small == 0 && (s.large == nil || s.large.IsEmpty())
}

// Len returns the number of ordinals in the set.
func (s ColSet) Len() int {
	n := bits.OnesCount64(s.small)
	if s.large != nil {
		n += s.large.Len()
	}
	return n
}

// Next returns the first ordinal in the set that is >= start, if any.
func (s ColSet) Next(start int) (int, bool) {
	if start < 0 {
		start = 0
	}
	if start < smallCutoff {
		if rest := s.small >> uint64(start); rest != 0 {
			return start + bits.TrailingZeros64(rest), true
		}
	}
	if s.large == nil {
		return 0, false
	}
	if start < smallCutoff {
		start = smallCutoff
	}
	var buf []int
	for _, v := range s.large.AppendTo(buf) {
		if v >= start {
			return v, true
		}
	}
	return 0, false
}

// ForEach calls a function for each ordinal in the set, in increasing order.
func (s ColSet) ForEach(f func(i int)) {
	for v := s.small; v != 0; {
		i := bits.TrailingZeros64(v)
		f(i)
		v &^= 1 << uint64(i)
	}
	if s.large != nil {
		for _, i := range s.large.AppendTo(nil) {
			f(i)
		}
	}
}

// Ordered returns a slice with all the ordinals in the set, in increasing
// order.
func (s ColSet) Ordered() []int {
	if s.Empty() {
		return nil
	}
	res := make([]int, 0, s.Len())
	s.ForEach(func(i int) {
		res = append(res, i)
	})
	return res
}

// Copy returns a copy of s which can be modified independently.
func (s ColSet) Copy() ColSet {
	c := ColSet{small: s.small}
	if s.large != nil && !s.large.IsEmpty() {
		c.large = new(intsets.Sparse)
		c.large.Copy(s.large)
	}
	return c
}

// UnionWith adds all the ordinals from rhs to this set.
func (s *ColSet) UnionWith(rhs ColSet) {
	s.small |= rhs.small
	if rhs.large != nil && !rhs.large.IsEmpty() {
		s.toLarge().UnionWith(rhs.large)
	}
}

// Union returns the union of s and rhs as a new set.
func (s ColSet) Union(rhs ColSet) ColSet {
	r := s.Copy()
	r.UnionWith(rhs)
	return r
}

// IntersectionWith removes any ordinals not in rhs from this set.
func (s *ColSet) IntersectionWith(rhs ColSet) {
	s.small &= rhs.small
	if s.large == nil {
		return
	}
	if rhs.large == nil {
		s.large = nil
		return
	}
	s.large.IntersectionWith(rhs.large)
}

// Intersection returns the intersection of s and rhs as a new set.
func (s ColSet) Intersection(rhs ColSet) ColSet {
	r := s.Copy()
	r.IntersectionWith(rhs)
	return r
}

// DifferenceWith removes any ordinals in rhs from this set.
func (s *ColSet) DifferenceWith(rhs ColSet) {
	s.small &^= rhs.small
	if s.large != nil && rhs.large != nil {
		s.large.DifferenceWith(rhs.large)
	}
}

// Difference returns the ordinals in s that are not in rhs as a new set.
func (s ColSet) Difference(rhs ColSet) ColSet {
	r := s.Copy()
	r.DifferenceWith(rhs)
	return r
}

// Intersects returns true if s has any ordinals in common with rhs.
func (s ColSet) Intersects(rhs ColSet) bool {
	if s.small&rhs.small != 0 {
		return true
	}
	if s.large == nil || rhs.large == nil {
		return false
	}
	return s.large.Intersects(rhs.large)
}

// Equals returns true if the two sets are identical.
func (s ColSet) Equals(rhs ColSet) bool {
	if s.small != rhs.small {
		return false
	}
	lEmpty := s.large == nil || s.large.IsEmpty()
	rEmpty := rhs.large == nil || rhs.large.IsEmpty()
	if lEmpty || rEmpty {
		return lEmpty == rEmpty
	}
	return s.large.Equals(rhs.large)
}

// SubsetOf returns true if rhs contains all the ordinals in s.
func (s ColSet) SubsetOf(rhs ColSet) bool {
	if s.small&^rhs.small != 0 {
		return false
	}
	if s.large == nil || s.large.IsEmpty() {
		return true
	}
	if rhs.large == nil {
		return false
	}
	return s.large.SubsetOf(rhs.large)
}

// Shift returns a new set with every ordinal moved by delta. Ordinals that
// would become negative are dropped.
func (s ColSet) Shift(delta int) ColSet {
	if delta == 0 {
		return s.Copy()
	}
	var r ColSet
	s.ForEach(func(i int) {
		if i+delta >= 0 {
			r.Add(i + delta)
		}
	})
	return r
}

// Remap returns a new set with every ordinal passed through the mapping. The
// second return value is false if some ordinal has no image (the mapping
// returned a negative ordinal).
func (s ColSet) Remap(mapping func(int) int) (ColSet, bool) {
	var r ColSet
	ok := true
	s.ForEach(func(i int) {
		if j := mapping(i); j >= 0 {
			r.Add(j)
		} else {
			ok = false
		}
	})
	return r, ok
}

// String returns a list representation of elements. Sequential runs of
// positive numbers are shown as ranges. For example, for the set {1, 2, 3, 5,
// 6, 10}, the output is "(1-3,5,6,10)".
func (s ColSet) String() string {
	var buf bytes.Buffer
	buf.WriteByte('(')
	appendRange := func(start, end int) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		if start == end {
			fmt.Fprintf(&buf, "%d", start)
		} else if start+1 == end {
			fmt.Fprintf(&buf, "%d,%d", start, end)
		} else {
			fmt.Fprintf(&buf, "%d-%d", start, end)
		}
	}
	rangeStart, rangeEnd := -1, -1
	s.ForEach(func(i int) {
		if rangeStart != -1 && rangeEnd == i-1 {
			rangeEnd = i
			return
		}
		if rangeStart != -1 {
			appendRange(rangeStart, rangeEnd)
		}
		rangeStart, rangeEnd = i, i
	})
	if rangeStart != -1 {
		appendRange(rangeStart, rangeEnd)
	}
	buf.WriteByte(')')
	return buf.String()
}

// ParseColSet parses the String form of a set, for example "(0,2-4)". The
// parentheses are optional.
func ParseColSet(s string) (ColSet, error) {
	var res ColSet
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	if strings.TrimSpace(s) == "" {
		return res, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := strconv.Atoi(lo)
		if err != nil || from < 0 {
			return ColSet{}, errors.Newf("invalid column set %q", s)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(hi); err != nil || to < from {
				return ColSet{}, errors.Newf("invalid column set %q", s)
			}
		}
		for i := from; i <= to; i++ {
			res.Add(i)
		}
	}
	return res, nil
}
