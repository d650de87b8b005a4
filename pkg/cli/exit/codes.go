// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package exit defines the process exit codes of the optmd commands.
package exit

import (
	"os"
	"strconv"
)

// Code is a process exit code.
type Code struct {
	code int
}

// String returns the numeric code.
func (c Code) String() string {
	switch c.code {
	case 0:
		return "0 (success)"
	case 1:
		return "1 (error)"
	}
	return strconv.Itoa(c.code)
}

// WithCode terminates the process with the given code.
func WithCode(c Code) {
	os.Exit(c.code)
}

// Success (0) represents a normal process termination.
func Success() Code { return Code{0} }

// UnspecifiedError (1) indicates the process has terminated with an
// error condition. The specific cause of the error can be found in
// the logging output.
func UnspecifiedError() Code { return Code{1} }

// UnspecifiedGoPanic (2) indicates the process has terminated due to
// an uncaught Go panic or some other error in the Go runtime.
func UnspecifiedGoPanic() Code { return Code{2} }

// CommandLineFlagError (4) indicates there was an error in the
// command-line parameters or the configuration file.
func CommandLineFlagError() Code { return Code{4} }

// Command-specific exit codes are allocated down from 125.

// MemoryLimitExceeded indicates that 'explain' found a node whose
// cumulative memory estimate exceeds the configured limit.
func MemoryLimitExceeded() Code { return Code{125} }
