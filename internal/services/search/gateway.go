// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package search is the indexer gateway: one keyword query per book against
// the Prowlarr aggregator, cached with the configured source TTL and
// coalesced so concurrent misses trigger a single upstream call.
package search

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/internal/memcache"
	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/pkg/prowlarr"
	"github.com/autobrr/audiobrr/pkg/stringutils"
)

// maxSourceRetention caps how long sources can sit in the cache no matter
// what source TTL is configured.
const maxSourceRetention = 7 * 24 * time.Hour

// QueryOptions control cache behavior for one query.
type QueryOptions struct {
	// ForceRefresh bypasses the cache read; the result is still written.
	ForceRefresh bool
	// OnlyCached never queries upstream; a miss returns (nil, false, nil).
	OnlyCached bool
}

// Gateway queries the aggregator and caches the results.
type Gateway struct {
	settings   *models.SettingsStore
	cache      *memcache.Cache[string, []prowlarr.Source]
	group      singleflight.Group
	httpClient *http.Client

	// newClient builds the aggregator client; swapped in tests.
	newClient func(models.ProwlarrSettings) *prowlarr.Client
}

func NewGateway(settings *models.SettingsStore) *Gateway {
	g := &Gateway{
		settings: settings,
		cache:    memcache.New[string, []prowlarr.Source](maxSourceRetention),
	}
	g.newClient = func(cfg models.ProwlarrSettings) *prowlarr.Client {
		return prowlarr.NewClient(prowlarr.Config{
			Host:       cfg.BaseURL,
			APIKey:     cfg.APIKey,
			HTTPClient: g.httpClient,
		})
	}
	return g
}

// Close releases the cache reaper.
func (g *Gateway) Close() {
	g.cache.Close()
}

// cacheKey canonicalizes and interns the query; the same few book titles
// key the cache, the singleflight group and the querying set.
func cacheKey(query string) string {
	return stringutils.InternNormalized(query)
}

// QuerySources searches sources for book. The bool reports whether the
// result came from (or is now in) the cache; with OnlyCached a miss is
// (nil, false, nil). Upstream failures yield an empty slice, not an error.
func (g *Gateway) QuerySources(ctx context.Context, book *domain.Book, opts QueryOptions) ([]prowlarr.Source, bool, error) {
	cfg := g.settings.GetProwlarrSettings(ctx)
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}

	query := book.Title
	key := cacheKey(query)

	if !opts.ForceRefresh {
		if sources, ok := g.cache.Lookup(key, cfg.SourceTTL); ok {
			return sources, true, nil
		}
	}
	if opts.OnlyCached {
		return nil, false, nil
	}

	// Concurrent misses for the same query coalesce into one upstream call.
	result, err, _ := g.group.Do(key, func() (any, error) {
		sources := g.fetch(ctx, cfg, query)
		g.cache.Insert(key, sources)
		return sources, nil
	})
	if err != nil {
		// The fetch never returns an error; keep the invariant obvious.
		return nil, false, fmt.Errorf("source query failed: %w", err)
	}
	return result.([]prowlarr.Source), false, nil
}

// Invalidate drops the cached sources for a book title.
func (g *Gateway) Invalidate(title string) {
	g.cache.Delete(cacheKey(title))
}

func (g *Gateway) fetch(ctx context.Context, cfg models.ProwlarrSettings, query string) []prowlarr.Source {
	client := g.newClient(cfg)

	sources, err := client.Search(ctx, query, prowlarr.SearchOptions{
		Categories: cfg.Categories,
		IndexerIDs: cfg.Indexers,
	})
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("[SEARCH] aggregator query failed")
		return []prowlarr.Source{}
	}

	log.Debug().Str("query", query).Int("sources", len(sources)).Msg("[SEARCH] aggregator query complete")
	return sources
}
