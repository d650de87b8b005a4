// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package humanizeutil renders and parses the byte sizes and durations that
// appear in command line output and flags.
package humanizeutil

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

// IBytes is an int64 version of go-humanize's IBytes.
func IBytes(value int64) string {
	if value < 0 {
		return "-" + humanize.IBytes(uint64(-value))
	}
	return humanize.IBytes(uint64(value))
}

// Bytes renders an estimated number of bytes. Estimates are rounded to the
// nearest byte; an unbounded one renders as "inf".
func Bytes(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1) || f >= math.MaxInt64:
		return "inf"
	case math.IsInf(f, -1) || f <= math.MinInt64:
		return "-inf"
	}
	return IBytes(int64(math.Round(f)))
}

// ParseBytes is an int64 version of go-humanize's ParseBytes.
func ParseBytes(s string) (int64, error) {
	if len(s) == 0 {
		return 0, errors.Newf("parsing %q: invalid syntax", s)
	}
	var negative bool
	if s[0] == '-' {
		negative = true
		s = s[1:]
	}
	value, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if value > math.MaxInt64 {
		return 0, errors.Newf("too large: %s", s)
	}
	if negative {
		return -int64(value), nil
	}
	return int64(value), nil
}

// BytesValue is a pflag.Value accepting sizes in any format recognized by
// humanize, such as "64MiB" or "1GB".
type BytesValue struct {
	val   *int64
	isSet bool
}

var _ pflag.Value = &BytesValue{}

// NewBytesValue creates a new pflag.Value bound to the specified int64
// variable.
func NewBytesValue(val *int64) *BytesValue {
	return &BytesValue{val: val}
}

// Set implements the pflag.Value interface.
func (b *BytesValue) Set(s string) error {
	v, err := ParseBytes(s)
	if err != nil {
		return err
	}
	*b.val = v
	b.isSet = true
	return nil
}

// Type implements the pflag.Value interface.
func (b *BytesValue) Type() string {
	return "bytes"
}

// String implements the pflag.Value interface. The zero value must print,
// since pflag compares defaults against it.
func (b *BytesValue) String() string {
	if b.val == nil {
		return IBytes(0)
	}
	return IBytes(*b.val)
}

// IsSet returns true iff Set has successfully been called.
func (b *BytesValue) IsSet() bool {
	return b.isSet
}

// Duration formats a duration in a user-friendly way. The result is not exact
// and the granularity is no smaller than microseconds.
//
//	123456ns       ->  "123µs"
//	12345678ns     ->  "12ms"
//	12345678912ns  ->  "12.3s"
func Duration(val time.Duration) string {
	val = val.Round(time.Microsecond)
	switch {
	case val == 0:
		return "0µs"
	case val < time.Millisecond:
		return val.String()
	case val < time.Second:
		return val.Round(time.Millisecond).String()
	case val < time.Minute:
		return val.Round(100 * time.Millisecond).String()
	}
	return val.Round(time.Second).String()
}
