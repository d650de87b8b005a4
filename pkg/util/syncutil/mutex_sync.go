// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

//go:build !deadlock

package syncutil

import (
	"sync"
	"sync/atomic"
)

// A Mutex is a mutual exclusion lock that tracks whether it is held so that
// callers can assert the locking discipline of the state it guards.
type Mutex struct {
	mu   sync.Mutex
	held atomic.Bool
}

// Lock locks m.
func (m *Mutex) Lock() {
	m.mu.Lock()
	m.held.Store(true)
}

// Unlock unlocks m.
func (m *Mutex) Unlock() {
	m.held.Store(false)
	m.mu.Unlock()
}

// AssertHeld panics if the mutex is not locked. It does not verify that the
// calling goroutine is the one holding the lock.
func (m *Mutex) AssertHeld() {
	if !m.held.Load() {
		panic("mutex is not write locked")
	}
}

// An RWMutex is a reader/writer mutual exclusion lock.
type RWMutex struct {
	mu      sync.RWMutex
	writer  atomic.Bool
	readers atomic.Int32
}

// Lock locks rw for writing.
func (rw *RWMutex) Lock() {
	rw.mu.Lock()
	rw.writer.Store(true)
}

// Unlock unlocks rw for writing.
func (rw *RWMutex) Unlock() {
	rw.writer.Store(false)
	rw.mu.Unlock()
}

// RLock locks rw for reading.
func (rw *RWMutex) RLock() {
	rw.mu.RLock()
	rw.readers.Add(1)
}

// RUnlock undoes a single RLock call.
func (rw *RWMutex) RUnlock() {
	rw.readers.Add(-1)
	rw.mu.RUnlock()
}

// AssertHeld panics if rw is not locked for writing.
func (rw *RWMutex) AssertHeld() {
	if !rw.writer.Load() {
		panic("mutex is not write locked")
	}
}

// AssertRHeld panics if rw is locked neither for reading nor for writing.
func (rw *RWMutex) AssertRHeld() {
	if !rw.writer.Load() && rw.readers.Load() == 0 {
		panic("mutex is not read locked")
	}
}
