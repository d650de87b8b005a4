// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package mdprovider assembles the built-in metadata providers into the
// default chain.
package mdprovider

import (
	"sync"

	"github.com/cockroachdb/optmd/pkg/sql/opt/cardinality"
	"github.com/cockroachdb/optmd/pkg/sql/opt/distribution"
	"github.com/cockroachdb/optmd/pkg/sql/opt/explain"
	"github.com/cockroachdb/optmd/pkg/sql/opt/lineage"
	"github.com/cockroachdb/optmd/pkg/sql/opt/md"
	"github.com/cockroachdb/optmd/pkg/sql/opt/ordering"
	"github.com/cockroachdb/optmd/pkg/sql/opt/predicates"
	"github.com/cockroachdb/optmd/pkg/sql/opt/size"
	"github.com/cockroachdb/optmd/pkg/sql/opt/uniqueness"
)

// Builtin returns the built-in providers in priority order.
func Builtin() []md.Provider {
	return []md.Provider{
		predicates.Provider,
		lineage.Provider,
		uniqueness.Provider,
		cardinality.Provider,
		ordering.Provider,
		distribution.Provider,
		size.Provider,
		explain.Provider,
	}
}

var defaultChain struct {
	once  sync.Once
	chain *md.Chain
}

// Default returns the chain of built-in providers. It is built once and
// shared; the chain is safe for concurrent use.
func Default() *md.Chain {
	defaultChain.once.Do(func() {
		defaultChain.chain = md.MustNewChain(Builtin()...)
	})
	return defaultChain.chain
}

// New returns a chain in which the extra providers take precedence over the
// built-in ones. A provider for a new operator family only needs handlers for
// its own kinds; the built-in catch-alls answer everything else.
func New(extra ...md.Provider) (*md.Chain, error) {
	if len(extra) == 0 {
		return Default(), nil
	}
	providers := append(append([]md.Provider(nil), extra...), Builtin()...)
	return md.NewChain(providers...)
}
