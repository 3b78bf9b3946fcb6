// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
)

const defaultNormalizerTTL = 5 * time.Minute

// TransformFunc produces the canonical form of a string.
type TransformFunc func(string) string

// Normalizer caches transformed results so we do not repeatedly transform
// the same inputs. The import matcher normalizes the same titles and author
// names over and over across candidate queries; caching keeps that cheap.
type Normalizer struct {
	cache     *ttlcache.Cache[string, string]
	transform TransformFunc
}

// NewNormalizer returns a normalizer with the provided TTL and transform
// function. The transform is only called once per unique input until the TTL
// expires, so it should intern its result to avoid duplicate allocations.
func NewNormalizer(ttl time.Duration, transform TransformFunc) *Normalizer {
	cache := ttlcache.New(ttlcache.Options[string, string]{}.
		SetDefaultTTL(ttl))
	return &Normalizer{
		cache:     cache,
		transform: transform,
	}
}

// Normalize returns the transformed value, consulting the cache first.
func (n *Normalizer) Normalize(key string) string {
	if cached, ok := n.cache.Get(key); ok {
		return cached
	}

	transformed := n.transform(key)
	n.cache.Set(key, transformed, ttlcache.DefaultTTL)
	return transformed
}

// Clear removes a cached entry.
func (n *Normalizer) Clear(key string) {
	n.cache.Delete(key)
}
