// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package md

import (
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/util/syncutil"
	"github.com/google/btree"
)

// LazyCache is the cross-epoch cache tier. Entries are keyed by node,
// method, arguments and the planner timestamp of the node when the value was
// computed, so an entry is only found again while the node's timestamp is
// unchanged. Entries are indexed by timestamp to prune old ones and to evict
// the oldest when the cache is full.
//
// A LazyCache may be shared by Queries running on different goroutines.
type LazyCache struct {
	maxEntries int

	mu struct {
		syncutil.Mutex
		entries map[lazyKey]lazyEntry
		byTS    *btree.BTreeG[lazyItem]
		seq     uint64
	}
}

type lazyKey struct {
	cacheKey
	ts uint64
}

type lazyEntry struct {
	value any
	seq   uint64
}

// lazyItem orders entries by timestamp and then by insertion.
type lazyItem struct {
	ts  uint64
	seq uint64
	key lazyKey
}

func lazyItemLess(a, b lazyItem) bool {
	if a.ts != b.ts {
		return a.ts < b.ts
	}
	return a.seq < b.seq
}

// NewLazyCache returns a cache holding at most maxEntries values; zero means
// no limit.
func NewLazyCache(maxEntries int) *LazyCache {
	c := &LazyCache{maxEntries: maxEntries}
	c.mu.entries = make(map[lazyKey]lazyEntry)
	c.mu.byTS = btree.NewG[lazyItem](8, lazyItemLess)
	return c
}

func (c *LazyCache) get(k lazyKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.mu.entries[k]
	return e.value, ok
}

func (c *LazyCache) put(k lazyKey, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.mu.entries[k]; ok {
		c.mu.byTS.Delete(lazyItem{ts: k.ts, seq: old.seq})
	}
	c.mu.seq++
	c.mu.entries[k] = lazyEntry{value: v, seq: c.mu.seq}
	c.mu.byTS.ReplaceOrInsert(lazyItem{ts: k.ts, seq: c.mu.seq, key: k})
	for c.maxEntries > 0 && c.mu.byTS.Len() > c.maxEntries {
		item, _ := c.mu.byTS.DeleteMin()
		delete(c.mu.entries, item.key)
	}
}

func (c *LazyCache) clearNode(n plan.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.mu.entries {
		if k.node == n {
			c.mu.byTS.Delete(lazyItem{ts: k.ts, seq: e.seq})
			delete(c.mu.entries, k)
		}
	}
}

// Prune removes the entries recorded at a timestamp before ts and returns
// how many were removed.
func (c *LazyCache) Prune(ts uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var stale []lazyItem
	c.mu.byTS.AscendLessThan(lazyItem{ts: ts}, func(item lazyItem) bool {
		stale = append(stale, item)
		return true
	})
	for _, item := range stale {
		c.mu.byTS.Delete(item)
		delete(c.mu.entries, item.key)
	}
	return len(stale)
}

// Len returns the number of cached values.
func (c *LazyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mu.entries)
}

// Clear removes every entry.
func (c *LazyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.entries = make(map[lazyKey]lazyEntry)
	c.mu.byTS.Clear(false)
}
