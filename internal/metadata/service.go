// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metadata resolves book records from the external providers:
// audimeta first, audnexus as fallback, the audible catalog for search.
package metadata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/internal/memcache"
	"github.com/autobrr/audiobrr/pkg/stringutils"
)

const (
	// refetchTTL bounds how long search results and suggestions stay valid.
	refetchTTL = 7 * 24 * time.Hour

	providerTimeout = 180 * time.Second

	searchFanOut     = 10
	defaultPageSize  = 20
	maxSearchResults = 50
)

// BookStorer is the slice of models.BookStore the service needs.
type BookStorer interface {
	GetExisting(ctx context.Context, asins []string, ttl time.Duration) (map[string]*domain.Book, error)
	UpsertMany(ctx context.Context, books []*domain.Book) ([]*domain.Book, error)
}

// Service fetches and caches book metadata.
type Service struct {
	httpClient *http.Client
	books      BookStorer
	userAgent  string

	audimetaBase string
	audnexusBase string
	audibleBase  string

	searchCache      *memcache.Cache[string, []string]
	suggestionsCache *memcache.Cache[string, []string]
}

// Option tweaks a Service; used by tests to point at local servers.
type Option func(*Service)

func WithBaseURLs(audimeta, audnexus, audible string) Option {
	return func(s *Service) {
		if audimeta != "" {
			s.audimetaBase = strings.TrimRight(audimeta, "/")
		}
		if audnexus != "" {
			s.audnexusBase = strings.TrimRight(audnexus, "/")
		}
		if audible != "" {
			s.audibleBase = strings.TrimRight(audible, "/")
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		s.httpClient = c
	}
}

func NewService(books BookStorer, opts ...Option) *Service {
	s := &Service{
		httpClient:       &http.Client{Timeout: providerTimeout},
		books:            books,
		userAgent:        "audiobrr",
		audimetaBase:     defaultAudimetaBase,
		audnexusBase:     defaultAudnexusBase,
		audibleBase:      defaultAudibleBase,
		searchCache:      memcache.New[string, []string](refetchTTL),
		suggestionsCache: memcache.New[string, []string](refetchTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the cache reapers.
func (s *Service) Close() {
	s.searchCache.Close()
	s.suggestionsCache.Close()
}

// GetBook fetches one book, audimeta first then audnexus. Provider misses
// and malformed bodies are soft: the result is (nil, nil).
func (s *Service) GetBook(ctx context.Context, asin, region string) (*domain.Book, error) {
	region = domain.NormalizeRegion(region)

	book, err := s.audimetaBook(ctx, asin, region)
	if err != nil {
		log.Warn().Err(err).Str("asin", asin).Msg("audimeta lookup failed")
	}
	if book != nil {
		return book, nil
	}

	book, err = s.audnexusBook(ctx, asin, region)
	if err != nil {
		log.Warn().Err(err).Str("asin", asin).Msg("audnexus lookup failed")
	}
	if book == nil {
		log.Warn().Str("asin", asin).Str("region", region).Msg("no provider returned the book")
	}
	return book, nil
}

// Search returns ordered ASINs for a keyword query, memoized for a week.
func (s *Service) Search(ctx context.Context, query, region string) ([]string, error) {
	region = domain.NormalizeRegion(region)
	key := fmt.Sprintf("search:%s:%s", region, stringutils.InternNormalized(query))

	if asins, ok := s.searchCache.Lookup(key, refetchTTL); ok {
		return asins, nil
	}

	asins, err := s.audibleCatalogSearch(ctx, query, region, defaultPageSize)
	if err != nil {
		return nil, err
	}
	if len(asins) > maxSearchResults {
		asins = asins[:maxSearchResults]
	}

	s.searchCache.Insert(key, asins)
	return asins, nil
}

// Suggestions returns typeahead titles, memoized for a week.
func (s *Service) Suggestions(ctx context.Context, query, region string) ([]string, error) {
	region = domain.NormalizeRegion(region)
	key := fmt.Sprintf("suggest:%s:%s", region, stringutils.InternNormalized(query))

	if titles, ok := s.suggestionsCache.Lookup(key, refetchTTL); ok {
		return titles, nil
	}

	titles, err := s.audibleSuggestions(ctx, query, region)
	if err != nil {
		return nil, err
	}

	s.suggestionsCache.Insert(key, titles)
	return titles, nil
}

// ResolveBook returns the stored record when fresh, otherwise fetches and
// persists it. The store's freshness gate re-fetches incomplete rows.
func (s *Service) ResolveBook(ctx context.Context, asin, region string) (*domain.Book, error) {
	existing, err := s.books.GetExisting(ctx, []string{asin}, refetchTTL)
	if err != nil {
		return nil, err
	}
	if b, ok := existing[asin]; ok {
		return b, nil
	}

	book, err := s.GetBook(ctx, asin, region)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, domain.ErrNotFound
	}

	merged, err := s.books.UpsertMany(ctx, []*domain.Book{book})
	if err != nil {
		return nil, err
	}
	return merged[0], nil
}

// SearchBooks resolves a keyword query to full book records in catalog
// order. Known-fresh books come from the store; the rest are fetched
// concurrently (bounded fan-out) and persisted.
func (s *Service) SearchBooks(ctx context.Context, query, region string) ([]*domain.Book, error) {
	asins, err := s.Search(ctx, query, region)
	if err != nil {
		return nil, err
	}
	if len(asins) == 0 {
		return nil, nil
	}

	known, err := s.books.GetExisting(ctx, asins, refetchTTL)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, asin := range asins {
		if _, ok := known[asin]; !ok {
			missing = append(missing, asin)
		}
	}

	fetched, err := s.fetchBooks(ctx, missing, region)
	if err != nil {
		return nil, err
	}

	if len(fetched) > 0 {
		merged, err := s.books.UpsertMany(ctx, fetched)
		if err != nil {
			return nil, err
		}
		for _, b := range merged {
			known[b.ASIN] = b
		}
	}

	ordered := make([]*domain.Book, 0, len(asins))
	for _, asin := range asins {
		if b, ok := known[asin]; ok {
			ordered = append(ordered, b)
		}
	}
	return ordered, nil
}

// fetchBooks resolves asins via the providers with at most searchFanOut
// in-flight lookups. Soft misses are dropped.
func (s *Service) fetchBooks(ctx context.Context, asins []string, region string) ([]*domain.Book, error) {
	if len(asins) == 0 {
		return nil, nil
	}

	sem := semaphore.NewWeighted(searchFanOut)
	results := make([]*domain.Book, len(asins))

	var wg sync.WaitGroup
	for i, asin := range asins {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(i int, asin string) {
			defer wg.Done()
			defer sem.Release(1)
			book, err := s.GetBook(ctx, asin, region)
			if err != nil {
				log.Warn().Err(err).Str("asin", asin).Msg("book fetch failed during search")
				return
			}
			results[i] = book
		}(i, asin)
	}
	wg.Wait()

	books := make([]*domain.Book, 0, len(results))
	for _, b := range results {
		if b != nil {
			books = append(books, b)
		}
	}
	return books, nil
}
