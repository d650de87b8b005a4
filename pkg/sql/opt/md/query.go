// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package md

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt/norm"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optmd/pkg/util/log"
)

// ErrCyclicMetadata is returned when computing a method for a node requires
// the same method for the same node, with the same arguments, again. It is a
// control-flow signal rather than a fault: chains skip the failing handler,
// and search-structure handlers treat it as unknown.
var ErrCyclicMetadata = errors.New("cyclic metadata request")

// DefaultMaxSubstitutions bounds the number of substituted predicates the
// join inference produces for each input predicate.
const DefaultMaxSubstitutions = 256

// Planner supplies the derivation timestamp of nodes. The timestamp of a
// node changes whenever facts derived for it may have changed.
type Planner interface {
	Timestamp(n plan.Node) uint64
}

// Option configures a Query.
type Option func(q *Query)

// WithExecutor sets the executor used to fold constants when simplifying
// predicates.
func WithExecutor(e norm.Executor) Option {
	return func(q *Query) { q.simplifier = norm.NewSimplifier(e).ForPredicates() }
}

// WithLazyCache enables the timestamp-validated cache tier. Results are
// stored in the lazy cache under the planner timestamp of the node and are
// reused across derivation epochs for as long as the timestamp does not
// change.
func WithLazyCache(planner Planner, c *LazyCache) Option {
	return func(q *Query) {
		q.planner = planner
		q.lazy = c
	}
}

// WithMetrics makes the query count cache hits, misses and cycles.
func WithMetrics(m *Metrics) Option {
	return func(q *Query) { q.metrics = m }
}

// WithMaxSubstitutions bounds the join predicate inference and the lineage
// expansion.
func WithMaxSubstitutions(n int) Option {
	return func(q *Query) {
		if n > 0 {
			q.maxSubstitutions = n
		}
	}
}

// Query answers metadata questions about plan nodes. It memoizes every
// answer for the lifetime of the Query, which is one derivation epoch: a
// plan that changes needs a new Query, or ClearCache for the changed nodes,
// or the lazy cache tier.
//
// A Query is not safe for concurrent use.
type Query struct {
	ctx   context.Context
	chain *Chain
	cache map[cacheKey]cacheEntry

	planner Planner
	lazy    *LazyCache
	metrics *Metrics

	simplifier       *norm.Simplifier
	maxSubstitutions int
}

type cacheKey struct {
	node   plan.Node
	method Method
	args   string
}

type entryState uint8

const (
	inFlight entryState = iota
	known
	unknown
)

type cacheEntry struct {
	state entryState
	value any
}

// NewQuery returns a Query that resolves handlers through the chain.
func NewQuery(ctx context.Context, chain *Chain, opts ...Option) *Query {
	q := &Query{
		ctx:              ctx,
		chain:            chain,
		cache:            make(map[cacheKey]cacheEntry),
		simplifier:       norm.NewSimplifier(nil).ForPredicates(),
		maxSubstitutions: DefaultMaxSubstitutions,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Context returns the context the Query was created with.
func (q *Query) Context() context.Context { return q.ctx }

// Simplifier returns the predicate simplifier.
func (q *Query) Simplifier() *norm.Simplifier { return q.simplifier }

// MaxSubstitutions returns the inference bound.
func (q *Query) MaxSubstitutions() int { return q.maxSubstitutions }

// Get computes method m for node n with the given extra arguments. It returns
// nil for an unknown answer. Results are memoized per node, method and
// arguments; a request that is already being computed fails with
// ErrCyclicMetadata.
func (q *Query) Get(n plan.Node, m Method, args ...any) (any, error) {
	n = plan.Unwrap(n)
	for i, a := range args {
		if a != nil && isNilPointer(a) {
			// The slice belongs to the caller.
			args = append([]any(nil), args...)
			for j := i; j < len(args); j++ {
				if args[j] != nil && isNilPointer(args[j]) {
					args[j] = nil
				}
			}
			break
		}
	}
	key := cacheKey{node: n, method: m, args: argsKey(args)}
	if e, ok := q.cache[key]; ok {
		if e.state == inFlight {
			q.metrics.cycle()
			log.VEventf(q.ctx, 3, "cycle on %s for %s", m, n.Kind())
			return nil, errors.Wrapf(ErrCyclicMetadata, "%s on %s", m, n.Kind())
		}
		q.metrics.hit()
		return e.value, nil
	}

	var ts uint64
	if q.lazy != nil {
		ts = q.planner.Timestamp(n)
		if v, ok := q.lazy.get(lazyKey{cacheKey: key, ts: ts}); ok {
			q.metrics.lazyHit()
			return v, nil
		}
		q.metrics.lazyMiss()
	}
	q.metrics.miss()

	fn, err := q.chain.Apply(m, n.Kind())
	if err != nil {
		return nil, err
	}
	q.cache[key] = cacheEntry{state: inFlight}
	v, err := fn(q, n, args)
	if err != nil {
		delete(q.cache, key)
		return nil, err
	}
	if q.lazy != nil {
		// Only the lazy tier holds values; the epoch map keeps cycle markers.
		delete(q.cache, key)
		q.lazy.put(lazyKey{cacheKey: key, ts: ts}, v)
		return v, nil
	}
	if v == nil {
		q.cache[key] = cacheEntry{state: unknown}
	} else {
		q.cache[key] = cacheEntry{state: known, value: v}
	}
	return v, nil
}

// ClearCache drops every memoized answer for the node.
func (q *Query) ClearCache(n plan.Node) {
	n = plan.Unwrap(n)
	for k, e := range q.cache {
		if k.node == n && e.state != inFlight {
			delete(q.cache, k)
		}
	}
	if q.lazy != nil {
		q.lazy.clearNode(n)
	}
}

// CacheLen returns the number of memoized answers, including in-flight
// markers.
func (q *Query) CacheLen() int { return len(q.cache) }

// argsKey returns the canonical form of the arguments, which is part of the
// cache key.
func argsKey(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var buf strings.Builder
	for i, a := range args {
		if i > 0 {
			buf.WriteByte('|')
		}
		if a == nil || isNilPointer(a) {
			buf.WriteString("∅")
			continue
		}
		switch t := a.(type) {
		case bool:
			buf.WriteString(strconv.FormatBool(t))
		case scalar.Expr:
			writeExprKey(&buf, t)
		case fmt.Stringer:
			buf.WriteString(t.String())
		default:
			fmt.Fprint(&buf, a)
		}
	}
	return buf.String()
}

// writeExprKey writes the printed form of e followed by the pre-order
// positions of its volatile calls, which the printed form does not show.
func writeExprKey(buf *strings.Builder, e scalar.Expr) {
	buf.WriteString(e.String())
	pos := 0
	scalar.Walk(e, func(e scalar.Expr) bool {
		if c, ok := e.(*scalar.Call); ok && c.Volatile {
			fmt.Fprintf(buf, "~%d", pos)
		}
		pos++
		return true
	})
}

// isNilPointer catches typed nil arguments such as a nil *scalar.Call.
func isNilPointer(a any) bool {
	v := reflect.ValueOf(a)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// getAs calls Get and converts the result.
func getAs[R any](q *Query, n plan.Node, m Method, args ...any) (R, bool, error) {
	var zero R
	v, err := q.Get(n, m, args...)
	if err != nil || v == nil {
		return zero, false, err
	}
	r, ok := v.(R)
	if !ok {
		return zero, false, errors.AssertionFailedf("%s returned %T, expected %T", m, v, zero)
	}
	return r, true, nil
}
