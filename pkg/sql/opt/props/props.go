// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/cockroachdb/redact"
)

// UnknownSize marks a column whose average size is not known.
const UnknownSize = -1

// ColumnSizes holds the average size in bytes of each output column, or
// UnknownSize.
type ColumnSizes []float64

// Known returns true if the size of column i is known.
func (s ColumnSizes) Known(i int) bool { return i < len(s) && s[i] >= 0 }

// Sum returns the sum of the known sizes and whether all sizes were known.
func (s ColumnSizes) Sum() (float64, bool) {
	var sum float64
	all := true
	for _, v := range s {
		if v < 0 {
			all = false
			continue
		}
		sum += v
	}
	return sum, all
}

func (s ColumnSizes) String() string {
	var buf strings.Builder
	buf.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			buf.WriteString(", ")
		}
		if v < 0 {
			buf.WriteByte('?')
		} else {
			buf.WriteString(strconv.FormatFloat(v, 'g', 6, 64))
		}
	}
	buf.WriteByte(']')
	return buf.String()
}

// NodeTypeCounts maps node kind names to the number of nodes of that kind.
type NodeTypeCounts map[string]int

// Add merges other into c.
func (c NodeTypeCounts) Add(other NodeTypeCounts) {
	for k, v := range other {
		c[k] += v
	}
}

func (c NodeTypeCounts) String() string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf strings.Builder
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%s=%d", k, c[k])
	}
	return buf.String()
}

// ExplainLevel controls how much an explain output shows.
type ExplainLevel uint8

const (
	// NoAttributes shows node kinds only.
	NoAttributes ExplainLevel = iota
	// ExpPlanAttributes shows the attributes that identify a plan.
	ExpPlanAttributes
	// DigestAttributes shows the attributes used for plan digests.
	DigestAttributes
	// AllAttributes shows everything, including search-structure nodes.
	AllAttributes
)

var explainLevelNames = [...]string{
	NoAttributes:      "none",
	ExpPlanAttributes: "plan",
	DigestAttributes:  "digest",
	AllAttributes:     "all",
}

func (l ExplainLevel) String() string { return explainLevelNames[l] }

// SafeValue implements redact.SafeValue.
func (l ExplainLevel) SafeValue() {}

var _ redact.SafeValue = ExplainLevel(0)

// ParseExplainLevel returns the level with the given name.
func ParseExplainLevel(s string) (ExplainLevel, error) {
	for i, n := range explainLevelNames {
		if strings.EqualFold(n, s) {
			return ExplainLevel(i), nil
		}
	}
	return 0, errors.Newf("unknown explain level %q", s)
}

// TableRefs is a sorted set of table references.
type TableRefs []scalar.TableRef

// MakeTableRefs returns the sorted, deduplicated set of references.
func MakeTableRefs(refs ...scalar.TableRef) TableRefs {
	res := append(TableRefs(nil), refs...)
	sort.Slice(res, func(i, j int) bool {
		if res[i].Name != res[j].Name {
			return res[i].Name < res[j].Name
		}
		return res[i].Entity < res[j].Entity
	})
	out := res[:0]
	for i, r := range res {
		if i == 0 || r != res[i-1] {
			out = append(out, r)
		}
	}
	return out
}

// Contains returns true if r is in the set.
func (t TableRefs) Contains(r scalar.TableRef) bool {
	for _, x := range t {
		if x == r {
			return true
		}
	}
	return false
}

func (t TableRefs) String() string {
	var buf strings.Builder
	buf.WriteByte('[')
	for i, r := range t {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(r.String())
	}
	buf.WriteByte(']')
	return buf.String()
}
