// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/logtags"
)

// makeMessage creates a structured log entry.
func makeMessage(ctx context.Context, format string, args []interface{}) string {
	var buf strings.Builder
	if tags := logtags.FromContext(ctx); tags != nil && len(tags.Get()) > 0 {
		buf.WriteString("[")
		for i, t := range tags.Get() {
			if i > 0 {
				buf.WriteString(",")
			}
			buf.WriteString(t.Key())
			if t.Value() != nil {
				buf.WriteString("=")
				buf.WriteString(t.ValueStr())
			}
		}
		buf.WriteString("] ")
	}
	if len(format) == 0 {
		fmt.Fprint(&buf, args...)
	} else {
		fmt.Fprintf(&buf, format, args...)
	}
	return buf.String()
}

// addStructured creates a structured log entry to be written to the
// specified facility of the logger.
func addStructured(
	ctx context.Context, s Severity, depth int, format string, args []interface{},
) {
	if ctx == nil {
		panic("nil context")
	}
	file, line := callerFile(depth + 1)
	output(s, file, line, makeMessage(ctx, format, args))
}
