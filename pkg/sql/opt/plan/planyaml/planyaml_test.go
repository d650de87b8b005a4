// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package planyaml_test

import (
	"testing"

	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan/planyaml"
	"github.com/cockroachdb/optmd/pkg/sql/types"
	"github.com/stretchr/testify/require"
)

const joinPlan = `
tables:
  - name: t
    columns:
      - {name: a, type: int}
      - {name: b, type: varchar(10), nullable: true}
    rows: 1000
    distinct: {a: 1000, b: 20}
    keys: [[a]]
    collations: ["+0"]
    distribution: hash(0)
root:
  op: project
  exprs: [$0, $3]
  input:
    op: merge-join
    type: left
    condition: $0 = $2
    inputs:
      - {op: filter, id: f, condition: $0 > 5, input: {op: scan, table: t}}
      - op: values
        columns: [{name: x, type: int}, {name: d, type: date, nullable: true}]
        tuples:
          - [1, 2024-01-31]
          - ["2", null]
`

func TestParse(t *testing.T) {
	p, err := planyaml.Parse([]byte(joinPlan))
	require.NoError(t, err)

	tab := p.Tables["t"]
	require.NotNil(t, tab)
	require.Equal(t, []plan.Column{
		{Name: "a", Type: types.Int},
		{Name: "b", Type: types.MakeString(10), Nullable: true},
	}, tab.Cols)
	require.Equal(t, plan.TableStats{
		RowCount: 1000, HasRowCount: true, DistinctCounts: map[int]float64{0: 1000, 1: 20},
	}, tab.Stats)
	require.True(t, tab.IsKey(opt.MakeColSet(0)))
	require.Equal(t, "+0", tab.Collations[0].String())
	require.Equal(t, opt.HashDist(0), tab.Distribution)

	proj, ok := p.Root.(*plan.Project)
	require.True(t, ok)
	join, ok := proj.Input.(*plan.Join)
	require.True(t, ok)
	require.Equal(t, plan.MergeJoinKind, join.Kind())
	require.Equal(t, plan.LeftJoin, join.Type)
	require.Equal(t, "$0 = $2", join.Condition.String())
	require.Same(t, p.Nodes["f"], join.Left)

	vals, ok := join.Right.(*plan.Values)
	require.True(t, ok)
	require.Equal(t, [][]any{{int64(1), "2024-01-31"}, {int64(2), nil}}, vals.Tuples)
}

func TestSubsetCycle(t *testing.T) {
	const doc = `
tables:
  - {name: t, columns: [{name: a, type: int}]}
root:
  op: subset
  id: g
  members:
    - {op: scan, id: s, table: t}
    - {op: filter, condition: $0 > 1, input: {ref: g}}
  best: {ref: s}
  collations: ["+0"]
`
	p, err := planyaml.Parse([]byte(doc))
	require.NoError(t, err)
	s, ok := p.Root.(*plan.Subset)
	require.True(t, ok)
	require.Equal(t, "g", s.Name)
	require.Len(t, s.Members, 2)
	require.Same(t, p.Nodes["s"], s.Best)
	filter := s.Members[1].(*plan.Filter)
	require.Same(t, plan.Node(s), filter.Input)
}

func TestErrors(t *testing.T) {
	for _, tc := range []struct {
		doc string
		err string
	}{
		{`root: {op: scan, table: missing}`, `scan of unknown table "missing"`},
		{`root: {op: frobnicate}`, `unknown operator "frobnicate"`},
		{`root: {ref: nowhere}`, `reference to undefined node "nowhere"`},
		{`root: {op: scan, tabel: t}`, `field tabel not found`},
		{
			"tables: [{name: t, columns: [{name: a, type: int}]}]\n" +
				"root: {op: values, columns: [{name: a, type: int}], tuples: [[1, 2]]}",
			`values row 0 has 2 columns, expected 1`,
		},
		{
			"root: {op: values, columns: [{name: a, type: int}], tuples: [[abc]]}",
			`values row 0 column a`,
		},
		{`root: {op: subset, id: g}`, `subset g has no members`},
	} {
		_, err := planyaml.Parse([]byte(tc.doc))
		require.ErrorContains(t, err, tc.err, tc.doc)
	}
}

func TestConvertDatum(t *testing.T) {
	d, err := planyaml.ConvertDatum("true", types.Bool)
	require.NoError(t, err)
	require.Equal(t, true, d)

	d, err = planyaml.ConvertDatum(3, types.Float)
	require.NoError(t, err)
	require.Equal(t, 3.0, d)

	d, err = planyaml.ConvertDatum(42, types.String)
	require.NoError(t, err)
	require.Equal(t, "42", d)

	d, err = planyaml.ConvertDatum("2024-03-01T10:20:30Z", types.Timestamp)
	require.NoError(t, err)
	require.Equal(t, "2024-03-01 10:20:30", d)

	d, err = planyaml.ConvertDatum(nil, types.Int)
	require.NoError(t, err)
	require.Nil(t, d)
}

func TestWithTables(t *testing.T) {
	catalog := map[string]*plan.Table{
		"t": {Name: "t", Cols: []plan.Column{{Name: "x", Type: types.Int}}},
		"u": {Name: "u", Cols: []plan.Column{{Name: "y", Type: types.String}}},
	}
	const doc = `
tables:
  - {name: u, columns: [{name: z, type: int}]}
root:
  op: union
  inputs: [{op: scan, table: t}, {op: scan, table: u}]
`
	p, err := planyaml.Parse([]byte(doc), planyaml.WithTables(catalog))
	require.NoError(t, err)
	require.Same(t, catalog["t"], p.Tables["t"])
	// The document's definition wins.
	require.Equal(t, "z", p.Tables["u"].Cols[0].Name)
	require.Equal(t, "union\n├── scan t\n└── scan u\n", plan.Format(p.Root))
}
