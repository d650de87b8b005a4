// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sqlitecat_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/cat"
	"github.com/cockroachdb/optmd/pkg/sql/opt/cat/sqlitecat"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/types"
	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"
)

const schema = `
CREATE TABLE emp (
	id INTEGER PRIMARY KEY,
	name VARCHAR(20) NOT NULL,
	dept INT,
	email TEXT UNIQUE,
	salary REAL,
	photo BLOB
);
CREATE INDEX emp_dept ON emp (dept);
CREATE UNIQUE INDEX emp_lower_name ON emp (lower(name));
CREATE UNIQUE INDEX emp_partial ON emp (salary) WHERE salary > 100;
CREATE TABLE dept (
	code TEXT,
	region TEXT,
	budget NUMERIC,
	PRIMARY KEY (code, region)
);
`

func open(t *testing.T) (context.Context, *sqlitecat.Catalog) {
	ctx := context.Background()
	c, err := sqlitecat.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	_, err = c.DB().ExecContext(ctx, schema)
	require.NoError(t, err)
	return ctx, c
}

func TestTable(t *testing.T) {
	ctx, c := open(t)

	names, err := c.TableNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"dept", "emp"}, names)

	emp, err := c.Table(ctx, "EMP")
	require.NoError(t, err)
	require.Equal(t, "emp", emp.Name)
	require.Equal(t, []plan.Column{
		{Name: "id", Type: types.Int},
		{Name: "name", Type: types.MakeString(20)},
		{Name: "dept", Type: types.Int, Nullable: true},
		{Name: "email", Type: types.String, Nullable: true},
		{Name: "salary", Type: types.Float, Nullable: true},
		{Name: "photo", Type: types.Bytes, Nullable: true},
	}, emp.Cols)
	require.Equal(t, []opt.ColSet{opt.MakeColSet(0), opt.MakeColSet(3)}, emp.Keys)
	require.Len(t, emp.Collations, 1)
	require.Equal(t, "+0", emp.Collations[0].String())
	require.Equal(t, opt.Singleton, emp.Distribution)
	// Nothing has been analyzed yet.
	require.False(t, emp.Stats.HasRowCount)
	require.Nil(t, emp.Stats.DistinctCounts)

	dept, err := c.Table(ctx, "dept")
	require.NoError(t, err)
	require.Equal(t, []opt.ColSet{opt.MakeColSet(0, 1)}, dept.Keys)
	require.False(t, dept.Cols[0].Nullable)
	require.Equal(t, types.Decimal, dept.Cols[2].Type)
	require.Empty(t, dept.Collations)

	_, err = c.Table(ctx, "nope")
	require.True(t, errors.Is(err, cat.ErrUnknownTable))
}

func TestStats(t *testing.T) {
	ctx, c := open(t)
	for i := 0; i < 10; i++ {
		_, err := c.DB().ExecContext(ctx,
			`INSERT INTO emp (name, dept, email) VALUES (?, ?, ?)`,
			fmt.Sprintf("e%d", i), i%2, fmt.Sprintf("e%d@example.com", i))
		require.NoError(t, err)
	}
	_, err := c.DB().ExecContext(ctx, `ANALYZE`)
	require.NoError(t, err)

	emp, err := c.Table(ctx, "emp")
	require.NoError(t, err)
	// The expression and partial indexes contribute nothing.
	exp := plan.TableStats{
		RowCount:       10,
		HasRowCount:    true,
		DistinctCounts: map[int]float64{2: 2, 3: 10},
	}
	if diff := pretty.Diff(exp, emp.Stats); len(diff) > 0 {
		t.Fatalf("unexpected stats:\n%s", strings.Join(diff, "\n"))
	}

	tables, err := cat.LoadTables(ctx, c)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	require.Equal(t, emp.Stats, tables["emp"].Stats)
}

func TestColumnType(t *testing.T) {
	for decl, exp := range map[string]types.T{
		"INTEGER":           types.Int,
		"BIGINT":            types.Int,
		"UNSIGNED BIG INT":  types.Int,
		"NVARCHAR(100)":     types.String,
		"VARCHAR(5)":        types.MakeString(5),
		"DOUBLE":            types.Float,
		"REAL":              types.Float,
		"BLOB":              types.Bytes,
		"DATETIME":          types.Timestamp,
		"DECIMAL(10,5)":     {Family: types.DecimalFamily, Width: 10},
		"BOOLEAN":           types.Bool,
		"":                  types.Unknown,
		"WHATEVER":          types.Decimal,
		"CHARACTER VARYING": types.String,
	} {
		require.Equal(t, exp, sqlitecat.ColumnType(decl), decl)
	}
}
