// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package clierror attaches process exit codes to command errors.
package clierror

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/cli/exit"
)

// Error wraps an error with the exit code the process should terminate
// with.
type Error struct {
	exitCode exit.Code
	cause    error
}

// NewError wraps cause with the given exit code.
func NewError(cause error, exitCode exit.Code) error {
	return &Error{exitCode: exitCode, cause: cause}
}

// NewErrorf formats a new error with the given exit code.
func NewErrorf(exitCode exit.Code, format string, args ...interface{}) error {
	return &Error{exitCode: exitCode, cause: errors.Newf(format, args...)}
}

// GetExitCode returns the exit code.
func (e *Error) GetExitCode() exit.Code { return e.exitCode }

// Error implements the error interface.
func (e *Error) Error() string { return e.cause.Error() }

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.cause }

// Format implements fmt.Formatter.
func (e *Error) Format(s fmt.State, verb rune) { errors.FormatError(e, s, verb) }

// FormatError implements errors.Formatter.
func (e *Error) FormatError(p errors.Printer) error {
	if p.Detail() {
		p.Printf("error with exit code: %s", e.exitCode)
	}
	return e.cause
}

// ExitCode returns the exit code attached to err, or UnspecifiedError if
// there is none. A nil error is a success.
func ExitCode(err error) exit.Code {
	if err == nil {
		return exit.Success()
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.exitCode
	}
	return exit.UnspecifiedError()
}
