// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package md

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/util/syncutil"
)

// ErrNoHandler marks errors raised when no handler applies to a node. It
// indicates a missing catch-all registration.
var ErrNoHandler = errors.New("no metadata handler")

// ErrMalformedHandler marks errors raised when a handler's signature does not
// match its method.
var ErrMalformedHandler = errors.New("malformed metadata handler")

// Chain combines providers in priority order. When several providers have a
// handler for a node, the first handler that returns a known answer wins; a
// handler that fails with ErrCyclicMetadata is skipped so that another
// derivation path can still answer.
type Chain struct {
	providers []Provider

	mu struct {
		syncutil.RWMutex
		// generation is the plan kind generation the resolutions were made
		// at. Registering a node kind makes them stale.
		generation uint64
		resolved   map[resolveKey]HandlerFunc
	}
}

type resolveKey struct {
	method Method
	kind   plan.Kind
}

// NewChain validates the providers and combines them. Every handler must
// match the signature of its method, and every registered method must have
// a catch-all handler (registered on plan.RelKind) in some provider.
func NewChain(providers ...Provider) (*Chain, error) {
	var err error
	hasCatchAll := make(map[Method]bool)
	for _, p := range providers {
		p.Handlers(func(m Method, k plan.Kind, h Handler) {
			if checkErr := checkSignature(p, m, k, h); checkErr != nil {
				err = errors.CombineErrors(err, checkErr)
			}
			if k == plan.RelKind {
				hasCatchAll[m] = true
			}
		})
	}
	if err != nil {
		return nil, err
	}
	for _, m := range Methods() {
		if !hasCatchAll[m] {
			return nil, errors.Mark(
				errors.AssertionFailedf("no catch-all handler for %s", m), ErrNoHandler,
			)
		}
	}
	c := &Chain{providers: providers}
	c.mu.resolved = make(map[resolveKey]HandlerFunc)
	c.mu.generation = plan.Generation()
	return c, nil
}

// MustNewChain is like NewChain but panics on error.
func MustNewChain(providers ...Provider) *Chain {
	c, err := NewChain(providers...)
	if err != nil {
		panic(err)
	}
	return c
}

func checkSignature(p Provider, m Method, k plan.Kind, h Handler) error {
	def := m.Def()
	args, res := h.Signature()
	ok := res == def.Result && len(args) == len(def.Args)
	for i := 0; ok && i < len(args); i++ {
		ok = args[i] == def.Args[i]
	}
	if ok {
		return nil
	}
	return errors.Mark(errors.AssertionFailedf(
		"%s: handler for %s on %s has signature %v -> %v, expected %v -> %v",
		p.Name(), m, k, args, res, def.Args, def.Result,
	), ErrMalformedHandler)
}

// Providers returns the providers of the chain in priority order.
func (c *Chain) Providers() []Provider { return c.providers }

// Apply returns the handler of m for nodes of kind k. The result is cached
// until a new node kind is registered.
func (c *Chain) Apply(m Method, k plan.Kind) (HandlerFunc, error) {
	gen := plan.Generation()
	c.mu.RLock()
	fn, ok := c.mu.resolved[resolveKey{m, k}]
	stale := c.mu.generation != gen
	c.mu.RUnlock()
	if ok && !stale {
		return fn, nil
	}

	fn, err := c.resolve(m, k)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.generation != gen {
		c.mu.resolved = make(map[resolveKey]HandlerFunc)
		c.mu.generation = gen
	}
	c.mu.resolved[resolveKey{m, k}] = fn
	return fn, nil
}

func (c *Chain) resolve(m Method, k plan.Kind) (HandlerFunc, error) {
	var fns []HandlerFunc
	for _, p := range c.providers {
		if h, ok := p.Apply(m, k); ok {
			fns = append(fns, h.fn)
		}
	}
	switch len(fns) {
	case 0:
		return nil, errors.Mark(
			errors.AssertionFailedf("no handler for %s on %s", m, k), ErrNoHandler,
		)
	case 1:
		return fns[0], nil
	}
	return func(q *Query, n plan.Node, args []any) (any, error) {
		for _, fn := range fns {
			v, err := fn(q, n, args)
			if err != nil {
				if errors.Is(err, ErrCyclicMetadata) {
					continue
				}
				return nil, err
			}
			if v != nil {
				return v, nil
			}
		}
		return nil, nil
	}, nil
}

// NumResolved returns the number of cached resolutions.
func (c *Chain) NumResolved() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.mu.generation != plan.Generation() {
		return 0
	}
	return len(c.mu.resolved)
}
