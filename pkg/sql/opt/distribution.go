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

// DistributionType describes how the rows of a relation are spread across
// the processing units of a distributed execution.
type DistributionType uint8

const (
	// AnyDistribution means nothing is known about the placement of rows.
	AnyDistribution DistributionType = iota
	// SingletonDistribution means all rows are in a single location.
	SingletonDistribution
	// HashDistribution means rows are partitioned by a hash of the keys.
	HashDistribution
	// RangeDistribution means rows are partitioned by ranges of the keys.
	RangeDistribution
	// RandomDistribution means rows are spread randomly.
	RandomDistribution
	// RoundRobinDistribution means rows are dealt out in turn.
	RoundRobinDistribution
	// BroadcastDistribution means every location has a copy of every row.
	BroadcastDistribution
)

var distributionTypeNames = [...]string{
	AnyDistribution:        "any",
	SingletonDistribution:  "singleton",
	HashDistribution:       "hash",
	RangeDistribution:      "range",
	RandomDistribution:     "random",
	RoundRobinDistribution: "round-robin",
	BroadcastDistribution:  "broadcast",
}

func (t DistributionType) String() string {
	if int(t) < len(distributionTypeNames) {
		return distributionTypeNames[t]
	}
	return "distribution(" + strconv.Itoa(int(t)) + ")"
}

// hasKeys returns true for the distribution types that are parameterized by
// key columns.
func (t DistributionType) hasKeys() bool {
	return t == HashDistribution || t == RangeDistribution
}

// Distribution is the physical placement of the rows of a relation.
type Distribution struct {
	Type DistributionType
	Keys []int
}

// Singleton is the distribution of a relation that lives in one place.
var Singleton = Distribution{Type: SingletonDistribution}

// Broadcast is the distribution of a relation copied to every location.
var Broadcast = Distribution{Type: BroadcastDistribution}

// AnyDist is the distribution that promises nothing.
var AnyDist = Distribution{Type: AnyDistribution}

// HashDist returns a hash distribution over the given keys.
func HashDist(keys ...int) Distribution {
	return Distribution{Type: HashDistribution, Keys: keys}
}

func (d Distribution) String() string {
	if !d.Type.hasKeys() {
		return d.Type.String()
	}
	var buf strings.Builder
	buf.WriteString(d.Type.String())
	buf.WriteByte('(')
	for i, k := range d.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(k))
	}
	buf.WriteByte(')')
	return buf.String()
}

// Equals returns true if the two distributions are identical.
func (d Distribution) Equals(rhs Distribution) bool {
	if d.Type != rhs.Type || len(d.Keys) != len(rhs.Keys) {
		return false
	}
	for i := range d.Keys {
		if d.Keys[i] != rhs.Keys[i] {
			return false
		}
	}
	return true
}

// Remap returns the distribution with its keys passed through the mapping.
// If any key is not preserved (the mapping returns a negative ordinal), the
// placement can no longer be described and AnyDist is returned.
func (d Distribution) Remap(mapping func(int) int) Distribution {
	if len(d.Keys) == 0 {
		return d
	}
	keys := make([]int, len(d.Keys))
	for i, k := range d.Keys {
		j := mapping(k)
		if j < 0 {
			return AnyDist
		}
		keys[i] = j
	}
	return Distribution{Type: d.Type, Keys: keys}
}

// Shift returns the distribution with its keys moved by delta.
func (d Distribution) Shift(delta int) Distribution {
	return d.Remap(func(i int) int { return i + delta })
}

// ParseDistribution parses the String form of a distribution, for example
// "hash(0,1)" or "broadcast".
func ParseDistribution(s string) (Distribution, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AnyDist, nil
	}
	name, args := s, ""
	if i := strings.IndexByte(s, '('); i >= 0 {
		if !strings.HasSuffix(s, ")") {
			return Distribution{}, errors.Newf("invalid distribution %q", s)
		}
		name, args = s[:i], s[i+1:len(s)-1]
	}
	for t, n := range distributionTypeNames {
		if n != name {
			continue
		}
		d := Distribution{Type: DistributionType(t)}
		if args == "" {
			if d.Type.hasKeys() {
				return Distribution{}, errors.Newf("distribution %q requires keys", s)
			}
			return d, nil
		}
		if !d.Type.hasKeys() {
			return Distribution{}, errors.Newf("distribution %q does not take keys", s)
		}
		for _, a := range strings.Split(args, ",") {
			k, err := strconv.Atoi(strings.TrimSpace(a))
			if err != nil {
				return Distribution{}, errors.Wrapf(err, "invalid distribution %q", s)
			}
			d.Keys = append(d.Keys, k)
		}
		return d, nil
	}
	return Distribution{}, errors.Newf("unknown distribution %q", s)
}
