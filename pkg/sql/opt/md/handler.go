// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package md

import (
	"reflect"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
)

// HandlerFunc computes a method for a node. A nil result with a nil error
// means the answer is unknown.
type HandlerFunc func(q *Query, n plan.Node, args []any) (any, error)

// Handler is a HandlerFunc together with the signature it was written for.
// Handlers are built with Func0, Func1 and Func2 so that the signature can be
// checked against the method when providers are assembled into a chain.
type Handler struct {
	fn     HandlerFunc
	node   reflect.Type
	args   []reflect.Type
	result reflect.Type
}

// Signature returns the argument and result types the handler was written
// for.
func (h Handler) Signature() (args []reflect.Type, result reflect.Type) {
	return h.args, h.result
}

func (h Handler) valid() bool { return h.fn != nil }

// Func0 builds a handler for a method without extra arguments. N is the node
// type the handler expects; use plan.Node for catch-all handlers. The
// handler returns ok=false when the answer is unknown.
func Func0[N plan.Node, R any](fn func(q *Query, n N) (R, bool, error)) Handler {
	return Handler{
		node:   typeOf[N](),
		result: typeOf[R](),
		fn: func(q *Query, n plan.Node, args []any) (any, error) {
			node, err := nodeAs[N](n)
			if err != nil {
				return nil, err
			}
			return result(fn(q, node))
		},
	}
}

// Func1 builds a handler for a method with one extra argument.
func Func1[N plan.Node, A, R any](fn func(q *Query, n N, a A) (R, bool, error)) Handler {
	return Handler{
		node:   typeOf[N](),
		args:   []reflect.Type{typeOf[A]()},
		result: typeOf[R](),
		fn: func(q *Query, n plan.Node, args []any) (any, error) {
			node, err := nodeAs[N](n)
			if err != nil {
				return nil, err
			}
			if len(args) != 1 {
				return nil, errors.AssertionFailedf("expected 1 argument, got %d", len(args))
			}
			a, err := argAs[A](args[0])
			if err != nil {
				return nil, err
			}
			return result(fn(q, node, a))
		},
	}
}

// Func2 builds a handler for a method with two extra arguments.
func Func2[N plan.Node, A, B, R any](fn func(q *Query, n N, a A, b B) (R, bool, error)) Handler {
	return Handler{
		node:   typeOf[N](),
		args:   []reflect.Type{typeOf[A](), typeOf[B]()},
		result: typeOf[R](),
		fn: func(q *Query, n plan.Node, args []any) (any, error) {
			node, err := nodeAs[N](n)
			if err != nil {
				return nil, err
			}
			if len(args) != 2 {
				return nil, errors.AssertionFailedf("expected 2 arguments, got %d", len(args))
			}
			a, err := argAs[A](args[0])
			if err != nil {
				return nil, err
			}
			b, err := argAs[B](args[1])
			if err != nil {
				return nil, err
			}
			return result(fn(q, node, a, b))
		},
	}
}

func nodeAs[N plan.Node](n plan.Node) (N, error) {
	node, ok := n.(N)
	if !ok {
		return node, errors.AssertionFailedf("handler for %T applied to %T", node, n)
	}
	return node, nil
}

// argAs converts an argument. A nil argument becomes the zero value, which
// is how an absent predicate reaches handlers.
func argAs[A any](v any) (A, error) {
	var zero A
	if v == nil {
		return zero, nil
	}
	a, ok := v.(A)
	if !ok {
		return zero, errors.AssertionFailedf("argument of type %T, expected %T", v, zero)
	}
	return a, nil
}

func result[R any](v R, ok bool, err error) (any, error) {
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

// Provider supplies handlers for methods and node kinds.
type Provider interface {
	// Name identifies the provider in errors and logs.
	Name() string
	// Apply returns the handler that applies to nodes of the given kind,
	// found by walking the kind's ancestors.
	Apply(m Method, k plan.Kind) (Handler, bool)
	// Handlers calls fn for every registered handler.
	Handlers(fn func(m Method, k plan.Kind, h Handler))
}

// Table is a Provider backed by a map of handlers registered per method and
// node kind. A table must not be modified once it is part of a chain.
type Table struct {
	name     string
	handlers map[Method]map[plan.Kind]Handler
}

var _ Provider = (*Table)(nil)

// NewTable returns an empty handler table.
func NewTable(name string) *Table {
	return &Table{name: name, handlers: make(map[Method]map[plan.Kind]Handler)}
}

// Register adds the handler of m for nodes of kind k and their descendants.
// Registering on plan.RelKind makes the handler the catch-all of the method.
// A later registration for the same method and kind replaces the earlier one.
func (t *Table) Register(m Method, k plan.Kind, h Handler) *Table {
	if !h.valid() {
		panic(errors.AssertionFailedf("%s: empty handler for %s on %s", t.name, m, k))
	}
	byKind, ok := t.handlers[m]
	if !ok {
		byKind = make(map[plan.Kind]Handler)
		t.handlers[m] = byKind
	}
	byKind[k] = h
	return t
}

// Name is part of the Provider interface.
func (t *Table) Name() string { return t.name }

// Apply is part of the Provider interface. Resolution tries the kind itself,
// then its traits with the most recently declared first, then its parent,
// recursively.
func (t *Table) Apply(m Method, k plan.Kind) (Handler, bool) {
	byKind, ok := t.handlers[m]
	if !ok {
		return Handler{}, false
	}
	for _, a := range k.Ancestors() {
		if h, ok := byKind[a]; ok {
			return h, true
		}
	}
	return Handler{}, false
}

// Handlers is part of the Provider interface. Handlers are visited in a
// deterministic order.
func (t *Table) Handlers(fn func(m Method, k plan.Kind, h Handler)) {
	ms := make([]Method, 0, len(t.handlers))
	for m := range t.handlers {
		ms = append(ms, m)
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i] < ms[j] })
	for _, m := range ms {
		ks := make([]plan.Kind, 0, len(t.handlers[m]))
		for k := range t.handlers[m] {
			ks = append(ks, k)
		}
		sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })
		for _, k := range ks {
			fn(m, k, t.handlers[m][k])
		}
	}
}

// UnknownHandler returns a handler with the signature of m that always
// answers unknown. It is used to fill in catch-alls for methods a provider
// does not otherwise know about.
func UnknownHandler(m Method) Handler {
	def := m.Def()
	return Handler{
		node:   typeOf[plan.Node](),
		args:   def.Args,
		result: def.Result,
		fn: func(*Query, plan.Node, []any) (any, error) {
			return nil, nil
		},
	}
}
