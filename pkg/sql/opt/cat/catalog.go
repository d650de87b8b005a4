// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cat contains the interface the optimizer uses to look up catalog
// tables and their statistics.
package cat

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
)

// ErrUnknownTable is returned for a table the catalog does not have.
var ErrUnknownTable = errors.New("unknown table")

// Catalog is a source of table definitions.
type Catalog interface {
	// TableNames lists the tables of the catalog in sorted order.
	TableNames(ctx context.Context) ([]string, error)

	// Table returns the definition of the named table, including whatever
	// statistics the catalog keeps. It returns an error marked with
	// ErrUnknownTable if there is no such table.
	Table(ctx context.Context, name string) (*plan.Table, error)
}

// LoadTables returns every table of the catalog, keyed by name.
func LoadTables(ctx context.Context, c Catalog) (map[string]*plan.Table, error) {
	names, err := c.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	res := make(map[string]*plan.Table, len(names))
	for _, name := range names {
		t, err := c.Table(ctx, name)
		if err != nil {
			return nil, err
		}
		res[name] = t
	}
	return res, nil
}
