// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package keylock provides per-key non-blocking locks. The request service
// uses one lock per ASIN so that concurrent dispatch attempts for the same
// book collapse into a single query while the others observe "querying".
package keylock

import (
	"sync"
	"time"
)

// Table holds one lock per key. Locks are created lazily and reused; idle
// entries are cheap (a buffered channel of capacity one).
type Table struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// New creates an empty lock table.
func New() *Table {
	return &Table{locks: make(map[string]chan struct{})}
}

func (t *Table) get(key string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		t.locks[key] = ch
	}
	return ch
}

// TryAcquire attempts to take the lock for key, waiting at most timeout.
// It returns false without blocking further when the lock is held.
func (t *Table) TryAcquire(key string, timeout time.Duration) bool {
	ch := t.get(key)
	select {
	case ch <- struct{}{}:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

// Release frees the lock for key. Releasing an unheld lock is a no-op.
func (t *Table) Release(key string) {
	ch := t.get(key)
	select {
	case <-ch:
	default:
	}
}

// Held reports whether the lock for key is currently taken.
func (t *Table) Held(key string) bool {
	return len(t.get(key)) > 0
}
