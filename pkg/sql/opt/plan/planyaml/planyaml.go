// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package planyaml reads plans from YAML documents. A document lists the
// catalog tables and the root node:
//
//	tables:
//	  - name: t
//	    columns: [{name: a, type: int}, {name: b, type: int, nullable: true}]
//	    rows: 1000
//	    distinct: {a: 10}
//	    keys: [[a]]
//	root:
//	  op: filter
//	  condition: $0 > 5
//	  input: {op: scan, table: t}
//
// A node with an id can be referenced later in the document with ref. A
// subset is registered before its members are read, so members may refer
// back to the subset that contains them.
package planyaml

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optmd/pkg/sql/types"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Document is the YAML form of a plan.
type Document struct {
	Tables []TableSpec `yaml:"tables"`
	Root   *NodeSpec   `yaml:"root"`
}

// TableSpec describes a catalog table.
type TableSpec struct {
	Name         string             `yaml:"name"`
	Columns      []ColumnSpec       `yaml:"columns"`
	Rows         *float64           `yaml:"rows"`
	Distinct     map[string]float64 `yaml:"distinct"`
	Keys         [][]string         `yaml:"keys"`
	Collations   []string           `yaml:"collations"`
	Distribution string             `yaml:"distribution"`
}

// ColumnSpec describes a column of a table or of a values node.
type ColumnSpec struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
}

// AggSpec describes an aggregate call.
type AggSpec struct {
	Func     string `yaml:"func"`
	Args     []int  `yaml:"args"`
	Distinct bool   `yaml:"distinct"`
	Name     string `yaml:"name"`
}

// NodeSpec describes a plan node. Op selects which of the other fields
// apply.
type NodeSpec struct {
	Op  string `yaml:"op"`
	ID  string `yaml:"id"`
	Ref string `yaml:"ref"`

	// Single input and join inputs.
	Input  *NodeSpec   `yaml:"input"`
	Inputs []*NodeSpec `yaml:"inputs"`

	// scan
	Table string `yaml:"table"`

	// values
	Columns []ColumnSpec `yaml:"columns"`
	Tuples  [][]any      `yaml:"tuples"`

	// filter and join
	Condition string `yaml:"condition"`

	// project
	Exprs []string `yaml:"exprs"`

	// aggregate
	Group []int     `yaml:"group"`
	Sets  [][]int   `yaml:"sets"`
	Aggs  []AggSpec `yaml:"aggs"`

	// sort, exchange
	Ordering     string `yaml:"ordering"`
	Offset       string `yaml:"offset"`
	Fetch        string `yaml:"fetch"`
	Distribution string `yaml:"distribution"`
	Partitions   int    `yaml:"partitions"`

	// join and set operations
	Type      string `yaml:"type"`
	Algorithm string `yaml:"algorithm"`
	All       bool   `yaml:"all"`

	// subset
	Members    []*NodeSpec `yaml:"members"`
	Best       *NodeSpec   `yaml:"best"`
	Original   *NodeSpec   `yaml:"original"`
	Collations []string    `yaml:"collations"`

	// vertex
	Current *NodeSpec `yaml:"current"`
}

// Plan is a loaded plan.
type Plan struct {
	Tables map[string]*plan.Table
	Root   plan.Node
	// Nodes maps node ids to nodes.
	Nodes map[string]plan.Node
}

// Option configures how a document is turned into a plan.
type Option func(p *Plan)

// WithTables makes the given tables available to scans. Tables defined in
// the document take precedence.
func WithTables(tables map[string]*plan.Table) Option {
	return func(p *Plan) {
		for name, t := range tables {
			p.Tables[name] = t
		}
	}
}

// Parse decodes a plan document. Unknown fields are rejected.
func Parse(data []byte, opts ...Option) (*Plan, error) {
	return Decode(bytes.NewReader(data), opts...)
}

// ReadFile loads a plan document from a file.
func ReadFile(path string, opts ...Option) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := Decode(f, opts...)
	return p, errors.Wrapf(err, "%s", path)
}

// Decode reads a plan document from r.
func Decode(r io.Reader, opts ...Option) (*Plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decoding plan")
	}
	return Build(&doc, opts...)
}

// Build turns a document into plan nodes.
func Build(doc *Document, opts ...Option) (*Plan, error) {
	b := builder{p: &Plan{
		Tables: make(map[string]*plan.Table),
		Nodes:  make(map[string]plan.Node),
	}}
	for _, o := range opts {
		o(b.p)
	}
	defined := make(map[string]struct{}, len(doc.Tables))
	for i := range doc.Tables {
		t, err := buildTable(&doc.Tables[i])
		if err != nil {
			return nil, err
		}
		if _, ok := defined[t.Name]; ok {
			return nil, errors.Newf("table %q defined twice", t.Name)
		}
		defined[t.Name] = struct{}{}
		b.p.Tables[t.Name] = t
	}
	if doc.Root == nil {
		return b.p, nil
	}
	root, err := b.node(doc.Root)
	if err != nil {
		return nil, err
	}
	b.p.Root = root
	return b.p, nil
}

func buildTable(spec *TableSpec) (*plan.Table, error) {
	if spec.Name == "" {
		return nil, errors.New("table without name")
	}
	t := &plan.Table{Name: spec.Name}
	for _, c := range spec.Columns {
		col, err := buildColumn(c)
		if err != nil {
			return nil, errors.Wrapf(err, "table %s", spec.Name)
		}
		t.Cols = append(t.Cols, col)
	}
	if spec.Rows != nil {
		t.Stats.RowCount, t.Stats.HasRowCount = *spec.Rows, true
	}
	if len(spec.Distinct) > 0 {
		t.Stats.DistinctCounts = make(map[int]float64, len(spec.Distinct))
		for name, d := range spec.Distinct {
			ord, ok := t.ColumnOrdinal(name)
			if !ok {
				return nil, errors.Newf("table %s: unknown column %q", spec.Name, name)
			}
			t.Stats.DistinctCounts[ord] = d
		}
	}
	for _, key := range spec.Keys {
		var cols opt.ColSet
		for _, name := range key {
			ord, ok := t.ColumnOrdinal(name)
			if !ok {
				return nil, errors.Newf("table %s: unknown key column %q", spec.Name, name)
			}
			cols.Add(ord)
		}
		t.Keys = append(t.Keys, cols)
	}
	var err error
	if t.Collations, err = parseOrderings(spec.Collations); err != nil {
		return nil, errors.Wrapf(err, "table %s", spec.Name)
	}
	if t.Distribution, err = opt.ParseDistribution(spec.Distribution); err != nil {
		return nil, errors.Wrapf(err, "table %s", spec.Name)
	}
	return t, nil
}

func buildColumn(spec ColumnSpec) (plan.Column, error) {
	typ, err := types.Parse(spec.Type)
	if err != nil {
		return plan.Column{}, errors.Wrapf(err, "column %s", spec.Name)
	}
	return plan.Column{Name: spec.Name, Type: typ, Nullable: spec.Nullable}, nil
}

func parseOrderings(specs []string) ([]opt.Ordering, error) {
	var res []opt.Ordering
	for _, s := range specs {
		o, err := opt.ParseOrdering(s)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, nil
}

func parseExpr(s string) (scalar.Expr, error) {
	if s == "" {
		return nil, nil
	}
	return scalar.Parse(s)
}

type builder struct {
	p *Plan
}

func (b *builder) register(id string, n plan.Node) error {
	if id == "" {
		return nil
	}
	if _, ok := b.p.Nodes[id]; ok {
		return errors.Newf("node id %q defined twice", id)
	}
	b.p.Nodes[id] = n
	return nil
}

func (b *builder) nodes(specs []*NodeSpec) ([]plan.Node, error) {
	res := make([]plan.Node, len(specs))
	for i, s := range specs {
		n, err := b.node(s)
		if err != nil {
			return nil, err
		}
		res[i] = n
	}
	return res, nil
}

func (b *builder) input(spec *NodeSpec) (plan.Node, error) {
	switch {
	case spec.Input != nil:
		return b.node(spec.Input)
	case len(spec.Inputs) == 1:
		return b.node(spec.Inputs[0])
	}
	return nil, errors.Newf("%s: expected one input", spec.Op)
}

func (b *builder) node(spec *NodeSpec) (plan.Node, error) {
	if spec == nil {
		return nil, nil
	}
	if spec.Ref != "" {
		n, ok := b.p.Nodes[spec.Ref]
		if !ok {
			return nil, errors.Newf("reference to undefined node %q", spec.Ref)
		}
		return n, nil
	}
	if spec.Op == "subset" {
		return b.subset(spec)
	}
	n, err := b.build(spec)
	if err != nil {
		if spec.ID != "" {
			return nil, errors.Wrapf(err, "node %s", spec.ID)
		}
		return nil, err
	}
	if err := b.register(spec.ID, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (b *builder) build(spec *NodeSpec) (plan.Node, error) {
	switch spec.Op {
	case "scan":
		t, ok := b.p.Tables[spec.Table]
		if !ok {
			return nil, errors.Newf("scan of unknown table %q", spec.Table)
		}
		return &plan.Scan{Table: t}, nil

	case "values":
		return buildValues(spec)

	case "filter":
		in, err := b.input(spec)
		if err != nil {
			return nil, err
		}
		cond, err := parseExpr(spec.Condition)
		if err != nil {
			return nil, err
		}
		return &plan.Filter{Input: in, Condition: cond}, nil

	case "project":
		in, err := b.input(spec)
		if err != nil {
			return nil, err
		}
		exprs := make([]scalar.Expr, len(spec.Exprs))
		for i, s := range spec.Exprs {
			if exprs[i], err = scalar.Parse(s); err != nil {
				return nil, err
			}
		}
		return plan.NewProject(in, exprs...), nil

	case "aggregate":
		in, err := b.input(spec)
		if err != nil {
			return nil, err
		}
		agg := &plan.Aggregate{Input: in, GroupKey: opt.MakeColSet(spec.Group...)}
		for _, s := range spec.Sets {
			agg.GroupingSets = append(agg.GroupingSets, opt.MakeColSet(s...))
		}
		for _, a := range spec.Aggs {
			agg.Aggs = append(agg.Aggs, plan.AggCall{
				Func: a.Func, Args: a.Args, Distinct: a.Distinct, Name: a.Name,
			})
		}
		return agg, nil

	case "sort", "limit":
		in, err := b.input(spec)
		if err != nil {
			return nil, err
		}
		s := &plan.Sort{Input: in}
		if s.Ordering, err = opt.ParseOrdering(spec.Ordering); err != nil {
			return nil, err
		}
		if s.Offset, err = parseExpr(spec.Offset); err != nil {
			return nil, err
		}
		if s.Fetch, err = parseExpr(spec.Fetch); err != nil {
			return nil, err
		}
		return s, nil

	case "exchange", "sort-exchange":
		in, err := b.input(spec)
		if err != nil {
			return nil, err
		}
		e := &plan.Exchange{Input: in, Partitions: spec.Partitions}
		if e.Distribution, err = opt.ParseDistribution(spec.Distribution); err != nil {
			return nil, err
		}
		if e.Ordering, err = opt.ParseOrdering(spec.Ordering); err != nil {
			return nil, err
		}
		if spec.Op == "sort-exchange" && e.Ordering == nil {
			e.Ordering = opt.Ordering{}
		}
		return e, nil

	case "convert":
		in, err := b.input(spec)
		if err != nil {
			return nil, err
		}
		return &plan.Convert{Input: in}, nil

	case "join", "hash-join", "merge-join", "nested-loop-join":
		return b.join(spec)

	case "union", "intersect", "minus":
		children, err := b.nodes(spec.Inputs)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return nil, errors.Newf("%s without inputs", spec.Op)
		}
		s := &plan.SetOp{Children: children, All: spec.All}
		switch spec.Op {
		case "intersect":
			s.Type = plan.IntersectOp
		case "minus":
			s.Type = plan.MinusOp
		default:
			s.Type = plan.UnionOp
		}
		return s, nil

	case "vertex":
		cur, err := b.node(spec.Current)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return nil, errors.New("vertex without current node")
		}
		return &plan.Vertex{Current: cur}, nil
	}
	return nil, errors.Newf("unknown operator %q", spec.Op)
}

func (b *builder) join(spec *NodeSpec) (plan.Node, error) {
	if len(spec.Inputs) != 2 {
		return nil, errors.Newf("%s: expected two inputs", spec.Op)
	}
	inputs, err := b.nodes(spec.Inputs)
	if err != nil {
		return nil, err
	}
	j := &plan.Join{Left: inputs[0], Right: inputs[1]}
	if spec.Type != "" {
		if j.Type, err = plan.ParseJoinType(spec.Type); err != nil {
			return nil, err
		}
	}
	algo := spec.Algorithm
	if spec.Op != "join" {
		algo = spec.Op
	}
	switch algo {
	case "", "hash", "hash-join":
		j.Algorithm = plan.HashJoinAlgo
	case "merge", "merge-join":
		j.Algorithm = plan.MergeJoinAlgo
	case "nested-loop", "nested-loop-join":
		j.Algorithm = plan.NestedLoopJoinAlgo
	default:
		return nil, errors.Newf("unknown join algorithm %q", algo)
	}
	if j.Condition, err = parseExpr(spec.Condition); err != nil {
		return nil, err
	}
	if j.Condition == nil {
		j.Condition = scalar.True
	}
	return j, nil
}

func (b *builder) subset(spec *NodeSpec) (plan.Node, error) {
	s := &plan.Subset{Name: spec.ID}
	if err := b.register(spec.ID, s); err != nil {
		return nil, err
	}
	var err error
	if s.Members, err = b.nodes(spec.Members); err != nil {
		return nil, errors.Wrapf(err, "subset %s", spec.ID)
	}
	if s.Best, err = b.node(spec.Best); err != nil {
		return nil, errors.Wrapf(err, "subset %s", spec.ID)
	}
	if s.Original, err = b.node(spec.Original); err != nil {
		return nil, errors.Wrapf(err, "subset %s", spec.ID)
	}
	if s.Collations, err = parseOrderings(spec.Collations); err != nil {
		return nil, errors.Wrapf(err, "subset %s", spec.ID)
	}
	if s.Distribution, err = opt.ParseDistribution(spec.Distribution); err != nil {
		return nil, errors.Wrapf(err, "subset %s", spec.ID)
	}
	if s.Representative() == nil {
		return nil, errors.Newf("subset %s has no members", spec.ID)
	}
	return s, nil
}

func buildValues(spec *NodeSpec) (plan.Node, error) {
	v := &plan.Values{}
	for _, c := range spec.Columns {
		col, err := buildColumn(c)
		if err != nil {
			return nil, err
		}
		v.Cols = append(v.Cols, col)
	}
	for i, tuple := range spec.Tuples {
		if len(tuple) != len(v.Cols) {
			return nil, errors.Newf("values row %d has %d columns, expected %d", i, len(tuple), len(v.Cols))
		}
		row := make([]scalar.Datum, len(tuple))
		for j, raw := range tuple {
			d, err := ConvertDatum(raw, v.Cols[j].Type)
			if err != nil {
				return nil, errors.Wrapf(err, "values row %d column %s", i, v.Cols[j].Name)
			}
			row[j] = d
		}
		v.Tuples = append(v.Tuples, row)
	}
	return v, nil
}

// Date and timestamp datums are kept in their literal form.
const (
	dateFormat      = "2006-01-02"
	timestampFormat = "2006-01-02 15:04:05"
)

// ConvertDatum converts a decoded YAML scalar to the datum representation of
// type t. A nil value is NULL.
func ConvertDatum(v any, t types.T) (scalar.Datum, error) {
	if v == nil {
		return nil, nil
	}
	switch t.Family {
	case types.BoolFamily:
		return cast.ToBoolE(v)
	case types.IntFamily:
		return cast.ToInt64E(v)
	case types.FloatFamily, types.DecimalFamily:
		return cast.ToFloat64E(v)
	case types.StringFamily, types.BytesFamily:
		return cast.ToStringE(v)
	case types.DateFamily:
		tm, err := cast.ToTimeE(v)
		if err != nil {
			return nil, err
		}
		return tm.Format(dateFormat), nil
	case types.TimestampFamily:
		tm, err := cast.ToTimeE(v)
		if err != nil {
			return nil, err
		}
		return tm.UTC().Format(timestampFormat), nil
	}
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case time.Time:
		return t.UTC().Format(timestampFormat), nil
	case int64, float64, string, bool:
		return t, nil
	}
	return nil, errors.Newf("unsupported literal %v of type %T", v, v)
}
