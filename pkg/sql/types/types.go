// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package types contains the column type model used by plan nodes.
package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Family is the broad category of a type.
type Family uint8

const (
	// UnknownFamily is the type of NULL literals and of columns whose type is
	// not known.
	UnknownFamily Family = iota
	BoolFamily
	IntFamily
	FloatFamily
	DecimalFamily
	StringFamily
	BytesFamily
	DateFamily
	TimestampFamily
)

var familyNames = [...]string{
	UnknownFamily:   "unknown",
	BoolFamily:      "bool",
	IntFamily:       "int",
	FloatFamily:     "float",
	DecimalFamily:   "decimal",
	StringFamily:    "string",
	BytesFamily:     "bytes",
	DateFamily:      "date",
	TimestampFamily: "timestamp",
}

func (f Family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// T is a column type. Width is the size in bytes for integers and floats and
// the maximum length for strings and bytes (0 means unbounded). For decimals
// it is the precision.
type T struct {
	Family Family
	Width  int
}

// Commonly used types.
var (
	Unknown   = T{Family: UnknownFamily}
	Bool      = T{Family: BoolFamily}
	Int       = T{Family: IntFamily, Width: 8}
	Int4      = T{Family: IntFamily, Width: 4}
	Int2      = T{Family: IntFamily, Width: 2}
	Float     = T{Family: FloatFamily, Width: 8}
	Decimal   = T{Family: DecimalFamily}
	String    = T{Family: StringFamily}
	Bytes     = T{Family: BytesFamily}
	Date      = T{Family: DateFamily}
	Timestamp = T{Family: TimestampFamily}
)

// MakeString returns a string type with a maximum length.
func MakeString(width int) T {
	return T{Family: StringFamily, Width: width}
}

func (t T) String() string {
	switch t.Family {
	case IntFamily:
		switch t.Width {
		case 2:
			return "int2"
		case 4:
			return "int4"
		}
		return "int"
	case FloatFamily:
		if t.Width == 4 {
			return "float4"
		}
		return "float"
	case StringFamily:
		if t.Width > 0 {
			return "varchar(" + strconv.Itoa(t.Width) + ")"
		}
		return "string"
	case BytesFamily:
		if t.Width > 0 {
			return "bytes(" + strconv.Itoa(t.Width) + ")"
		}
		return "bytes"
	case DecimalFamily:
		if t.Width > 0 {
			return "decimal(" + strconv.Itoa(t.Width) + ")"
		}
		return "decimal"
	}
	return t.Family.String()
}

// Parse returns the type named by s. It accepts the String form of every
// type as well as the common SQL spellings (bigint, integer, text, real,
// varchar(n), ...). Matching is case insensitive.
func Parse(s string) (T, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	width := 0
	if i := strings.IndexByte(name, '('); i >= 0 {
		if !strings.HasSuffix(name, ")") {
			return Unknown, errors.Newf("invalid type %q", s)
		}
		arg := strings.TrimSpace(name[i+1 : len(name)-1])
		// Only the first argument matters: decimal(10,2) has precision 10.
		if j := strings.IndexByte(arg, ','); j >= 0 {
			arg = strings.TrimSpace(arg[:j])
		}
		w, err := strconv.Atoi(arg)
		if err != nil || w < 0 {
			return Unknown, errors.Newf("invalid type width in %q", s)
		}
		name, width = strings.TrimSpace(name[:i]), w
	}
	switch name {
	case "bool", "boolean":
		return Bool, nil
	case "int", "int8", "bigint", "integer":
		return Int, nil
	case "int4":
		return Int4, nil
	case "int2", "smallint":
		return Int2, nil
	case "float", "float8", "double", "double precision":
		return Float, nil
	case "float4", "real":
		return T{Family: FloatFamily, Width: 4}, nil
	case "decimal", "numeric":
		return T{Family: DecimalFamily, Width: width}, nil
	case "string", "text", "varchar", "char", "character", "clob":
		return T{Family: StringFamily, Width: width}, nil
	case "bytes", "blob", "bytea", "varbinary", "binary":
		return T{Family: BytesFamily, Width: width}, nil
	case "date":
		return Date, nil
	case "timestamp", "datetime", "timestamptz":
		return Timestamp, nil
	case "unknown", "":
		return Unknown, nil
	}
	return Unknown, errors.Newf("unknown type %q", s)
}
