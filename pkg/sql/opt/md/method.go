// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package md

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/props"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optmd/pkg/util/syncutil"
	"github.com/cockroachdb/redact"
)

// Kind is a category of metadata, such as row count or size. A kind groups
// one or more methods.
type Kind uint8

// Method is one metadata question with a fixed signature. The zero Method is
// invalid.
type Method uint16

// MethodDef declares a method. Args lists the types of the extra arguments
// after the node; Result is the type of a known answer. Defaults supplies
// the arguments used when the method is described without explicit
// arguments.
type MethodDef struct {
	Name     string
	Kind     Kind
	Args     []reflect.Type
	Result   reflect.Type
	Defaults func(n int) []any
}

type methodRegistry struct {
	mu struct {
		syncutil.RWMutex
		kinds   []string
		methods []MethodDef
		byName  map[string]Method
	}
}

func newMethodRegistry() *methodRegistry {
	r := &methodRegistry{}
	r.mu.methods = []MethodDef{{Name: "invalid"}}
	r.mu.byName = make(map[string]Method)
	return r
}

var methods = newMethodRegistry()

// RegisterKind adds a metadata kind.
func RegisterKind(name string) Kind {
	methods.mu.Lock()
	defer methods.mu.Unlock()
	methods.mu.kinds = append(methods.mu.kinds, name)
	return Kind(len(methods.mu.kinds) - 1)
}

// RegisterMethod adds a method to the registry.
func RegisterMethod(def MethodDef) (Method, error) {
	methods.mu.Lock()
	defer methods.mu.Unlock()
	if def.Name == "" || def.Result == nil {
		return 0, errors.AssertionFailedf("method needs a name and a result type")
	}
	if _, ok := methods.mu.byName[def.Name]; ok {
		return 0, errors.AssertionFailedf("method %q already registered", def.Name)
	}
	if int(def.Kind) >= len(methods.mu.kinds) {
		return 0, errors.AssertionFailedf("method %q: unknown kind %d", def.Name, def.Kind)
	}
	def.Args = append([]reflect.Type(nil), def.Args...)
	m := Method(len(methods.mu.methods))
	methods.mu.methods = append(methods.mu.methods, def)
	methods.mu.byName[def.Name] = m
	return m, nil
}

// MustRegisterMethod is like RegisterMethod but panics on error.
func MustRegisterMethod(def MethodDef) Method {
	m, err := RegisterMethod(def)
	if err != nil {
		panic(err)
	}
	return m
}

// Methods returns every registered method in registration order.
func Methods() []Method {
	methods.mu.RLock()
	defer methods.mu.RUnlock()
	res := make([]Method, 0, len(methods.mu.methods)-1)
	for i := 1; i < len(methods.mu.methods); i++ {
		res = append(res, Method(i))
	}
	return res
}

// LookupMethod returns the method with the given name.
func LookupMethod(name string) (Method, bool) {
	methods.mu.RLock()
	defer methods.mu.RUnlock()
	m, ok := methods.mu.byName[name]
	return m, ok
}

// Def returns the declaration of the method.
func (m Method) Def() MethodDef {
	methods.mu.RLock()
	defer methods.mu.RUnlock()
	if int(m) >= len(methods.mu.methods) {
		return methods.mu.methods[0]
	}
	return methods.mu.methods[m]
}

// Name returns the method name.
func (m Method) Name() string { return m.Def().Name }

// Kind returns the metadata kind of the method.
func (m Method) Kind() Kind { return m.Def().Kind }

func (m Method) String() string { return m.Name() }

// SafeValue implements redact.SafeValue.
func (m Method) SafeValue() {}

// Name returns the kind name.
func (k Kind) Name() string {
	methods.mu.RLock()
	defer methods.mu.RUnlock()
	if int(k) >= len(methods.mu.kinds) {
		return "invalid"
	}
	return methods.mu.kinds[k]
}

func (k Kind) String() string { return k.Name() }

// SafeValue implements redact.SafeValue.
func (k Kind) SafeValue() {}

var _ redact.SafeValue = Method(0)
var _ redact.SafeValue = Kind(0)

func typeOf[T any]() reflect.Type { return reflect.TypeFor[T]() }

var (
	colSetType    = typeOf[opt.ColSet]()
	exprType      = typeOf[scalar.Expr]()
	boolType      = typeOf[bool]()
	float64Type   = typeOf[float64]()
	explainType   = typeOf[props.ExplainLevel]()
	predicateType = typeOf[*props.PredicateList]()
)

func noArgs(int) []any { return nil }

// Built-in metadata kinds.
var (
	RowCountKind          = RegisterKind("row-count")
	MaxRowCountKind       = RegisterKind("max-row-count")
	MinRowCountKind       = RegisterKind("min-row-count")
	DistinctRowCountKind  = RegisterKind("distinct-row-count")
	SelectivityKind       = RegisterKind("selectivity")
	ColumnUniquenessKind  = RegisterKind("column-uniqueness")
	UniqueKeysKind        = RegisterKind("unique-keys")
	PopulationSizeKind    = RegisterKind("population-size")
	CollationKind         = RegisterKind("collation")
	DistributionKind      = RegisterKind("distribution")
	PredicatesKind        = RegisterKind("predicates")
	AllPredicatesKind     = RegisterKind("all-predicates")
	TableReferencesKind   = RegisterKind("table-references")
	ExpressionLineageKind = RegisterKind("expression-lineage")
	NodeTypesKind         = RegisterKind("node-types")
	SizeKind              = RegisterKind("size")
	MemoryKind            = RegisterKind("memory")
	ParallelismKind       = RegisterKind("parallelism")
	ExplainVisibilityKind = RegisterKind("explain-visibility")
)

// allColumns returns the set of all n output columns.
func allColumns(n int) []any { return []any{opt.MakeColSetRange(0, n)} }

// Built-in methods.
var (
	RowCount = MustRegisterMethod(MethodDef{
		Name: "row-count", Kind: RowCountKind, Result: float64Type, Defaults: noArgs,
	})
	MaxRowCount = MustRegisterMethod(MethodDef{
		Name: "max-row-count", Kind: MaxRowCountKind, Result: float64Type, Defaults: noArgs,
	})
	MinRowCount = MustRegisterMethod(MethodDef{
		Name: "min-row-count", Kind: MinRowCountKind, Result: float64Type, Defaults: noArgs,
	})
	DistinctRowCount = MustRegisterMethod(MethodDef{
		Name: "distinct-row-count", Kind: DistinctRowCountKind,
		Args: []reflect.Type{colSetType, exprType}, Result: float64Type,
		Defaults: func(n int) []any { return []any{opt.MakeColSetRange(0, n), nil} },
	})
	Selectivity = MustRegisterMethod(MethodDef{
		Name: "selectivity", Kind: SelectivityKind,
		Args: []reflect.Type{exprType}, Result: float64Type,
		Defaults: func(int) []any { return []any{nil} },
	})
	ColumnUniqueness = MustRegisterMethod(MethodDef{
		Name: "column-uniqueness", Kind: ColumnUniquenessKind,
		Args: []reflect.Type{colSetType, boolType}, Result: boolType,
		Defaults: func(n int) []any { return []any{opt.MakeColSetRange(0, n), false} },
	})
	UniqueKeys = MustRegisterMethod(MethodDef{
		Name: "unique-keys", Kind: UniqueKeysKind,
		Args: []reflect.Type{boolType}, Result: typeOf[[]opt.ColSet](),
		Defaults: func(int) []any { return []any{false} },
	})
	PopulationSize = MustRegisterMethod(MethodDef{
		Name: "population-size", Kind: PopulationSizeKind,
		Args: []reflect.Type{colSetType}, Result: float64Type, Defaults: allColumns,
	})
	Collations = MustRegisterMethod(MethodDef{
		Name: "collations", Kind: CollationKind, Result: typeOf[[]opt.Ordering](), Defaults: noArgs,
	})
	Distribution = MustRegisterMethod(MethodDef{
		Name: "distribution", Kind: DistributionKind, Result: typeOf[opt.Distribution](), Defaults: noArgs,
	})
	PulledUpPredicates = MustRegisterMethod(MethodDef{
		Name: "predicates", Kind: PredicatesKind, Result: predicateType, Defaults: noArgs,
	})
	AllPredicates = MustRegisterMethod(MethodDef{
		Name: "all-predicates", Kind: AllPredicatesKind, Result: predicateType, Defaults: noArgs,
	})
	TableReferences = MustRegisterMethod(MethodDef{
		Name: "table-references", Kind: TableReferencesKind, Result: typeOf[props.TableRefs](), Defaults: noArgs,
	})
	ExpressionLineage = MustRegisterMethod(MethodDef{
		Name: "expression-lineage", Kind: ExpressionLineageKind,
		Args: []reflect.Type{exprType}, Result: typeOf[[]scalar.Expr](),
		Defaults: func(int) []any { return []any{scalar.Col(0)} },
	})
	NodeTypeHistogram = MustRegisterMethod(MethodDef{
		Name: "node-types", Kind: NodeTypesKind, Result: typeOf[props.NodeTypeCounts](), Defaults: noArgs,
	})
	AverageRowSize = MustRegisterMethod(MethodDef{
		Name: "average-row-size", Kind: SizeKind, Result: float64Type, Defaults: noArgs,
	})
	AverageColumnSizes = MustRegisterMethod(MethodDef{
		Name: "average-column-sizes", Kind: SizeKind, Result: typeOf[props.ColumnSizes](), Defaults: noArgs,
	})
	Memory = MustRegisterMethod(MethodDef{
		Name: "memory", Kind: MemoryKind, Result: float64Type, Defaults: noArgs,
	})
	CumulativeMemoryWithinPhase = MustRegisterMethod(MethodDef{
		Name: "cumulative-memory", Kind: MemoryKind, Result: float64Type, Defaults: noArgs,
	})
	CumulativeMemoryWithinPhaseSplit = MustRegisterMethod(MethodDef{
		Name: "cumulative-memory-split", Kind: MemoryKind, Result: float64Type, Defaults: noArgs,
	})
	IsPhaseTransition = MustRegisterMethod(MethodDef{
		Name: "phase-transition", Kind: ParallelismKind, Result: boolType, Defaults: noArgs,
	})
	SplitCount = MustRegisterMethod(MethodDef{
		Name: "split-count", Kind: ParallelismKind, Result: typeOf[int](), Defaults: noArgs,
	})
	ExplainVisibility = MustRegisterMethod(MethodDef{
		Name: "explain-visibility", Kind: ExplainVisibilityKind,
		Args: []reflect.Type{explainType}, Result: boolType,
		Defaults: func(int) []any { return []any{props.ExpPlanAttributes} },
	})
)
