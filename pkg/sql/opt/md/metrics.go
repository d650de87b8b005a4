// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package md

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts metadata cache activity. A nil *Metrics counts nothing.
type Metrics struct {
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	Cycles      prometheus.Counter
	LazyHits    prometheus.Counter
	LazyMisses  prometheus.Counter
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "optmd",
		Subsystem: "metadata",
		Name:      name,
		Help:      help,
	})
}

// NewMetrics returns unregistered counters.
func NewMetrics() *Metrics {
	return &Metrics{
		CacheHits:   newCounter("cache_hits_total", "Metadata requests answered from the query cache."),
		CacheMisses: newCounter("cache_misses_total", "Metadata requests computed by a handler."),
		Cycles:      newCounter("cycles_total", "Metadata requests that found their own computation in flight."),
		LazyHits:    newCounter("lazy_hits_total", "Metadata requests answered from the lazy cache tier."),
		LazyMisses:  newCounter("lazy_misses_total", "Metadata requests not found in the lazy cache tier."),
	}
}

// Register registers every counter with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.CacheHits, m.CacheMisses, m.Cycles, m.LazyHits, m.LazyMisses} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) hit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) cycle() {
	if m != nil {
		m.Cycles.Inc()
	}
}

func (m *Metrics) lazyHit() {
	if m != nil {
		m.LazyHits.Inc()
	}
}

func (m *Metrics) lazyMiss() {
	if m != nil {
		m.LazyMisses.Inc()
	}
}
