// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package plan

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/util/syncutil"
	"github.com/cockroachdb/redact"
)

// Kind identifies a node kind in the process-wide kind hierarchy. Kinds are
// registered once and never removed. The zero Kind is invalid.
type Kind uint16

// KindDef describes a kind to register.
type KindDef struct {
	// Name must be unique.
	Name string
	// Parent is the kind this kind specializes. It is zero only for the root
	// kind and for traits.
	Parent Kind
	// Traits lists the trait kinds carried by this kind, in declaration
	// order. Handlers registered on a trait apply to every kind carrying it.
	Traits []Kind
	// Abstract kinds have no nodes of their own.
	Abstract bool
	// Trait marks a capability kind rather than a node kind.
	Trait bool
}

type kindInfo struct {
	KindDef
	// ancestors is the resolution order used by handler lookup: the kind
	// itself, its traits (most recently declared first) and then the same for
	// the parent, recursively.
	ancestors []Kind
}

// kindRegistry is the append-only set of known kinds. Readers take the read
// lock; registration takes the write lock and bumps the generation so that
// caches derived from the kind list can detect growth.
type kindRegistry struct {
	mu struct {
		syncutil.RWMutex
		kinds  []kindInfo
		byName map[string]Kind
	}
	generation atomic.Uint64
}

func newKindRegistry() *kindRegistry {
	r := &kindRegistry{}
	// Index 0 is the invalid kind.
	r.mu.kinds = []kindInfo{{KindDef: KindDef{Name: "invalid"}}}
	r.mu.byName = make(map[string]Kind)
	return r
}

var registry = newKindRegistry()

// RegisterKind adds a kind to the hierarchy and returns its identifier.
func RegisterKind(def KindDef) (Kind, error) {
	return registry.register(def)
}

// MustRegisterKind is like RegisterKind but panics on error. It is meant for
// package-level kind declarations.
func MustRegisterKind(def KindDef) Kind {
	k, err := RegisterKind(def)
	if err != nil {
		panic(err)
	}
	return k
}

// Generation returns a counter that increases every time a kind is
// registered.
func Generation() uint64 {
	return registry.generation.Load()
}

// LookupKind returns the kind with the given name.
func LookupKind(name string) (Kind, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	k, ok := registry.mu.byName[name]
	return k, ok
}

// NumKinds returns the number of registered kinds.
func NumKinds() int {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return len(registry.mu.kinds) - 1
}

func (r *kindRegistry) register(def KindDef) (Kind, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if def.Name == "" {
		return 0, errors.AssertionFailedf("kind name must not be empty")
	}
	if _, ok := r.mu.byName[def.Name]; ok {
		return 0, errors.AssertionFailedf("kind %q already registered", def.Name)
	}
	n := Kind(len(r.mu.kinds))
	if def.Parent != 0 && int(def.Parent) >= len(r.mu.kinds) {
		return 0, errors.AssertionFailedf("kind %q: unknown parent %d", def.Name, def.Parent)
	}
	if def.Trait && def.Parent != 0 {
		return 0, errors.AssertionFailedf("trait %q cannot have a parent", def.Name)
	}
	for _, t := range def.Traits {
		if int(t) >= len(r.mu.kinds) || t == 0 || !r.mu.kinds[t].Trait {
			return 0, errors.AssertionFailedf("kind %q: %d is not a trait", def.Name, t)
		}
	}
	def.Traits = append([]Kind(nil), def.Traits...)

	ancestors := []Kind{n}
	for i := len(def.Traits) - 1; i >= 0; i-- {
		ancestors = append(ancestors, def.Traits[i])
	}
	if def.Parent != 0 {
		for _, a := range r.mu.kinds[def.Parent].ancestors {
			if !containsKind(ancestors, a) {
				ancestors = append(ancestors, a)
			}
		}
	}
	r.mu.kinds = append(r.mu.kinds, kindInfo{KindDef: def, ancestors: ancestors})
	r.mu.byName[def.Name] = n
	r.generation.Add(1)
	return n, nil
}

func (r *kindRegistry) info(k Kind) *kindInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(k) >= len(r.mu.kinds) {
		return &r.mu.kinds[0]
	}
	return &r.mu.kinds[k]
}

func containsKind(list []Kind, k Kind) bool {
	for _, x := range list {
		if x == k {
			return true
		}
	}
	return false
}

// Name returns the registered name of the kind.
func (k Kind) Name() string { return registry.info(k).Name }

// String implements fmt.Stringer.
func (k Kind) String() string { return k.Name() }

// SafeValue implements redact.SafeValue.
func (k Kind) SafeValue() {}

var _ redact.SafeValue = Kind(0)

// Parent returns the parent kind, or false for the root kind and for traits.
func (k Kind) Parent() (Kind, bool) {
	p := registry.info(k).Parent
	return p, p != 0
}

// Traits returns the traits declared by the kind itself.
func (k Kind) Traits() []Kind { return registry.info(k).Traits }

// IsTrait returns true for capability kinds.
func (k Kind) IsTrait() bool { return registry.info(k).Trait }

// IsAbstract returns true for kinds without nodes of their own.
func (k Kind) IsAbstract() bool { return registry.info(k).Abstract }

// Ancestors returns the resolution order for handlers of the kind: the kind
// itself, then its traits with the most recently declared first, then the
// ancestors of its parent. The returned slice must not be modified.
func (k Kind) Ancestors() []Kind { return registry.info(k).ancestors }

// IsA returns true if k is other, carries trait other or descends from it.
func (k Kind) IsA(other Kind) bool {
	return containsKind(k.Ancestors(), other)
}

// Built-in kinds.
var (
	// RelKind is the root of the hierarchy. Catch-all handlers are
	// registered on it.
	RelKind = MustRegisterKind(KindDef{Name: "rel", Abstract: true})

	// ConverterTrait is carried by nodes that only change physical
	// properties of their input.
	ConverterTrait = MustRegisterKind(KindDef{Name: "converter", Trait: true})

	ScanKind        = MustRegisterKind(KindDef{Name: "scan", Parent: RelKind})
	ValuesKind      = MustRegisterKind(KindDef{Name: "values", Parent: RelKind})
	SingleInputKind = MustRegisterKind(KindDef{Name: "single-input", Parent: RelKind, Abstract: true})
	FilterKind      = MustRegisterKind(KindDef{Name: "filter", Parent: SingleInputKind})
	ProjectKind     = MustRegisterKind(KindDef{Name: "project", Parent: SingleInputKind})
	AggregateKind   = MustRegisterKind(KindDef{Name: "aggregate", Parent: SingleInputKind})
	SortKind        = MustRegisterKind(KindDef{Name: "sort", Parent: SingleInputKind})
	ExchangeKind    = MustRegisterKind(KindDef{
		Name: "exchange", Parent: SingleInputKind, Traits: []Kind{ConverterTrait},
	})
	SortExchangeKind = MustRegisterKind(KindDef{Name: "sort-exchange", Parent: ExchangeKind})
	ConvertKind      = MustRegisterKind(KindDef{
		Name: "convert", Parent: SingleInputKind, Traits: []Kind{ConverterTrait},
	})

	JoinKind           = MustRegisterKind(KindDef{Name: "join", Parent: RelKind, Abstract: true})
	HashJoinKind       = MustRegisterKind(KindDef{Name: "hash-join", Parent: JoinKind})
	MergeJoinKind      = MustRegisterKind(KindDef{Name: "merge-join", Parent: JoinKind})
	NestedLoopJoinKind = MustRegisterKind(KindDef{Name: "nested-loop-join", Parent: JoinKind})

	SetOpKind     = MustRegisterKind(KindDef{Name: "set-op", Parent: RelKind, Abstract: true})
	UnionKind     = MustRegisterKind(KindDef{Name: "union", Parent: SetOpKind})
	IntersectKind = MustRegisterKind(KindDef{Name: "intersect", Parent: SetOpKind})
	MinusKind     = MustRegisterKind(KindDef{Name: "minus", Parent: SetOpKind})

	SubsetKind = MustRegisterKind(KindDef{Name: "subset", Parent: RelKind})
	VertexKind = MustRegisterKind(KindDef{Name: "vertex", Parent: RelKind})
)
