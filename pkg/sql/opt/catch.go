// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"runtime"

	"github.com/cockroachdb/errors"
)

// CatchOptimizerError converts a recovered panic value into an error. It is
// meant to be called from a deferred function at an API boundary:
//
//	defer func() {
//	  if r := recover(); r != nil {
//	    err = opt.CatchOptimizerError(r)
//	  }
//	}()
//
// Handlers report problems through their error results; a panic indicates a
// bug such as an out-of-range ordinal in a malformed plan.
func CatchOptimizerError(r interface{}) error {
	if r == nil {
		return nil
	}
	err, ok := r.(error)
	if !ok {
		// Not an error object. For serious internal errors e.g. in the scheduler,
		// bad goroutine state, allocator problem etc, the go runtime throws a
		// string which does not implement error. So in this case we suspect we are
		// not able to recover, and must crash.
		panic(r)
	}
	if errors.HasInterface(err, (*runtime.Error)(nil)) {
		// Convert runtime errors to assertion failures, which include stacks.
		return errors.HandleAsAssertionFailure(err)
	}
	return err
}
