// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package memcache provides the in-memory TTL cache backing search results,
// metadata lookups, and sources. Values carry their insertion time so
// callers can apply their own, shorter TTL per lookup; the underlying
// ttlcache reaps entries past the retention ceiling.
package memcache

import (
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Cache maps a comparable key to a timestamped value.
type Cache[K comparable, V any] struct {
	inner *ttlcache.Cache[K, entry[V]]
	now   func() time.Time
}

// New creates a cache whose entries are retained at most maxRetention,
// regardless of the TTL callers pass to Lookup.
func New[K comparable, V any](maxRetention time.Duration) *Cache[K, V] {
	opts := ttlcache.Options[K, entry[V]]{}.SetDefaultTTL(maxRetention)
	return &Cache[K, V]{
		inner: ttlcache.New(opts),
		now:   time.Now,
	}
}

// Lookup returns the cached value if it was inserted within ttl of now.
func (c *Cache[K, V]) Lookup(key K, ttl time.Duration) (V, bool) {
	var zero V
	e, ok := c.inner.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.insertedAt) > ttl {
		return zero, false
	}
	return e.value, true
}

// Insert writes value unconditionally, stamped with the current time.
func (c *Cache[K, V]) Insert(key K, value V) {
	c.inner.Set(key, entry[V]{value: value, insertedAt: c.now()}, ttlcache.DefaultTTL)
}

// Delete removes a single entry.
func (c *Cache[K, V]) Delete(key K) {
	c.inner.Delete(key)
}

// Close releases the reaper goroutine of the underlying cache.
func (c *Cache[K, V]) Close() {
	c.inner.Close()
}

// SetNowFunc overrides the clock. Tests only.
func (c *Cache[K, V]) SetNowFunc(now func() time.Time) {
	c.now = now
}
