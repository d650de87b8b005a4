// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log provides leveled, context-tagged logging. Messages are
// prefixed with the logtags attached to the context and written through a
// logrus logger.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/optmd/pkg/util/syncutil"
	"github.com/sirupsen/logrus"
)

// Severity identifies the sort of log: info, warning etc.
type Severity int

const (
	// SeverityInfo is used for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is used for conditions that deserve attention.
	SeverityWarning
	// SeverityError is used for errors that do not stop the process.
	SeverityError
	// SeverityFatal logs and terminates the process.
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityFatal:
		return "FATAL"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Format selects the rendering of log entries.
type Format string

const (
	// FormatText renders entries as human readable lines.
	FormatText Format = "text"
	// FormatJSON renders entries as JSON objects.
	FormatJSON Format = "json"
)

var logging struct {
	mu        syncutil.Mutex
	logger    *logrus.Logger
	verbosity atomic.Int32
}

func init() {
	logging.logger = newLogger(os.Stderr, FormatText)
}

func newLogger(w io.Writer, f Format) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	switch f {
	case FormatJSON:
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	return l
}

// SetOutput redirects log output to w using the given format.
func SetOutput(w io.Writer, f Format) {
	logging.mu.Lock()
	defer logging.mu.Unlock()
	logging.logger = newLogger(w, f)
}

// SetVerbosity sets the level at which V and VEventf start to emit.
func SetVerbosity(level int32) {
	logging.verbosity.Store(level)
}

// V returns true if the logging verbosity is set to the specified level or
// higher.
func V(level int32) bool {
	return logging.verbosity.Load() >= level
}

// Infof logs to the INFO log.
func Infof(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, SeverityInfo, 1, format, args)
}

// Warningf logs to the WARNING log.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, SeverityWarning, 1, format, args)
}

// Errorf logs to the ERROR log.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, SeverityError, 1, format, args)
}

// Fatalf logs to the FATAL log and exits the process.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, SeverityFatal, 1, format, args)
}

// VEventf logs an INFO message when the verbosity is at least level.
func VEventf(ctx context.Context, level int32, format string, args ...interface{}) {
	if V(level) {
		addStructured(ctx, SeverityInfo, 1, format, args)
	}
}

func output(s Severity, file string, line int, msg string) {
	logging.mu.Lock()
	l := logging.logger
	logging.mu.Unlock()

	entry := l.WithField("caller", fmt.Sprintf("%s:%d", file, line))
	switch s {
	case SeverityInfo:
		entry.Info(msg)
	case SeverityWarning:
		entry.Warn(msg)
	case SeverityError:
		entry.Error(msg)
	case SeverityFatal:
		entry.Fatal(msg)
	}
}

func callerFile(depth int) (string, int) {
	_, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		return "???", 1
	}
	return filepath.Base(file), line
}
