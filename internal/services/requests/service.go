// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package requests drives the acquisition pipeline: create a request,
// query and rank sources, and hand the winning source to the torrent
// client. Dispatch runs on a small worker pool so HTTP handlers only
// enqueue.
package requests

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/internal/indexers"
	"github.com/autobrr/audiobrr/internal/metadata"
	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/internal/qbittorrent"
	"github.com/autobrr/audiobrr/internal/ranking"
	"github.com/autobrr/audiobrr/internal/services/search"
	"github.com/autobrr/audiobrr/pkg/keylock"
	"github.com/autobrr/audiobrr/pkg/prowlarr"
)

const (
	// lockTimeout bounds how long a dispatch attempt waits for the per-ASIN
	// lock before reporting "querying".
	lockTimeout = time.Millisecond

	workerCount = 4
	queueSize   = 100
)

// TorrentClient is the slice of the torrent adapter the pipeline needs.
type TorrentClient interface {
	AddTorrent(ctx context.Context, payload qbittorrent.AddPayload) error
	ListByCategory(ctx context.Context, category string) ([]qbt.Torrent, error)
	AddTags(ctx context.Context, hashes []string, tags []string) error
	Delete(ctx context.Context, hashes []string, deleteFiles bool) error
}

// LibraryChecker reports whether a book already sits under the library root.
// The importer's scanner implements it.
type LibraryChecker interface {
	HasASIN(ctx context.Context, root, asin string) bool
}

// ABSChecker probes an Audiobookshelf library for an existing copy.
type ABSChecker interface {
	BookExists(ctx context.Context, libraryID, asin, title string) (bool, error)
}

type Service struct {
	requests *models.RequestStore
	books    *models.BookStore
	settings *models.SettingsStore
	metadata *metadata.Service
	gateway  *search.Gateway
	registry *indexers.Registry
	events   Events

	locks      *keylock.Table
	httpClient *http.Client

	// newTorrentClient and newABSClient build per-call clients from current
	// settings; tests swap them for fakes.
	newTorrentClient func(models.QbitSettings) (TorrentClient, error)
	newABSClient     func(models.ABSSettings) ABSChecker
	library          LibraryChecker

	workerCtx    context.Context
	workerCancel context.CancelFunc
	workerWg     sync.WaitGroup
	workers      int
	queue        chan job
}

type job struct {
	asin     string
	username string
}

type Option func(*Service)

// WithEvents replaces the default log-only event sink.
func WithEvents(e Events) Option {
	return func(s *Service) { s.events = e }
}

// WithTorrentClientFactory swaps the torrent adapter constructor.
func WithTorrentClientFactory(f func(models.QbitSettings) (TorrentClient, error)) Option {
	return func(s *Service) { s.newTorrentClient = f }
}

// WithABSClientFactory swaps the Audiobookshelf client constructor.
func WithABSClientFactory(f func(models.ABSSettings) ABSChecker) Option {
	return func(s *Service) { s.newABSClient = f }
}

// WithLibraryChecker wires the on-disk existence check.
func WithLibraryChecker(c LibraryChecker) Option {
	return func(s *Service) { s.library = c }
}

// WithHTTPClient replaces the client used for .torrent downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// WithWorkerCount overrides the dispatch pool size.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func NewService(
	requestStore *models.RequestStore,
	bookStore *models.BookStore,
	settings *models.SettingsStore,
	meta *metadata.Service,
	gateway *search.Gateway,
	registry *indexers.Registry,
	opts ...Option,
) *Service {
	s := &Service{
		requests: requestStore,
		books:    bookStore,
		settings: settings,
		metadata: meta,
		gateway:  gateway,
		registry: registry,
		events:   LogEvents{},
		locks:    keylock.New(),
		workers:  workerCount,
		queue:    make(chan job, queueSize),
	}
	s.newTorrentClient = func(cfg models.QbitSettings) (TorrentClient, error) {
		return qbittorrent.NewClient(cfg)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create resolves the book, rejects duplicates and already-owned titles, and
// inserts a pending request. With auto download on, dispatch is enqueued in
// the background.
func (s *Service) Create(ctx context.Context, asin, username, region string) (*domain.Request, error) {
	if region == "" {
		region = s.settings.GetDefaultRegion(ctx)
	}

	book, err := s.metadata.ResolveBook(ctx, asin, region)
	if err != nil {
		return nil, err
	}

	if reason := s.alreadyOwned(ctx, book); reason != "" {
		return nil, fmt.Errorf("%s: %w", reason, domain.ErrAlreadyDownloaded)
	}

	r, err := s.requests.Create(ctx, book.ASIN, username)
	if err != nil {
		return nil, err
	}
	r.Book = book
	s.events.RequestCreated(r)

	if s.settings.GetAutoDownload(ctx) {
		s.enqueue(book.ASIN, username)
	}
	return r, nil
}

// alreadyOwned returns a human-readable reason when the book is already in
// the library, or "".
func (s *Service) alreadyOwned(ctx context.Context, book *domain.Book) string {
	if book.Downloaded {
		return "book is already marked downloaded"
	}

	media := s.settings.GetMediaSettings(ctx)
	if s.library != nil && media.LibraryPath != "" {
		if s.library.HasASIN(ctx, media.LibraryPath, book.ASIN) {
			return "book is already present in the library"
		}
	}

	abs := s.settings.GetABSSettings(ctx)
	if abs.CheckDownloaded && abs.BaseURL != "" && s.newABSClient != nil {
		exists, err := s.newABSClient(abs).BookExists(ctx, abs.LibraryID, book.ASIN, book.Title)
		if err != nil {
			log.Warn().Err(err).Str("asin", book.ASIN).
				Msg("[REQUEST] audiobookshelf existence check failed")
		} else if exists {
			return "book already exists in audiobookshelf"
		}
	}
	return ""
}

// QueryState tells the caller what happened to a source query.
type QueryState string

const (
	StateOK       QueryState = "ok"
	StateQuerying QueryState = "querying"
	StateUncached QueryState = "uncached"
)

// QueryOptions control one QueryAndDispatch call.
type QueryOptions struct {
	// ForceRefresh bypasses the source cache.
	ForceRefresh bool
	// OnlyCached answers from the cache or reports StateUncached.
	OnlyCached bool
	// Dispatch sends the top-ranked source to the torrent client.
	Dispatch bool
}

// QueryResult carries the ranked sources (when State is ok) and the book.
type QueryResult struct {
	State   QueryState             `json:"state"`
	Book    *domain.Book           `json:"book"`
	Sources []ranking.RankedSource `json:"sources,omitempty"`
	Cached  bool                   `json:"cached"`
}

// QueryAndDispatch queries, enriches, and ranks sources for a known book.
// Concurrent calls for the same ASIN collapse: the losers observe
// StateQuerying without touching upstream. With Dispatch set, the best
// source is handed to the torrent client and the request row is stamped.
func (s *Service) QueryAndDispatch(ctx context.Context, asin, username string, opts QueryOptions) (*QueryResult, error) {
	book, err := s.books.Get(ctx, asin)
	if err != nil {
		return nil, err
	}

	if !s.locks.TryAcquire(asin, lockTimeout) {
		return &QueryResult{State: StateQuerying, Book: book}, nil
	}
	defer s.locks.Release(asin)

	if err := s.settings.GetProwlarrSettings(ctx).Validate(); err != nil {
		return nil, err
	}

	sources, cached, err := s.gateway.QuerySources(ctx, book, search.QueryOptions{
		ForceRefresh: opts.ForceRefresh,
		OnlyCached:   opts.OnlyCached,
	})
	if err != nil {
		return nil, err
	}
	if sources == nil {
		return &QueryResult{State: StateUncached, Book: book}, nil
	}

	// The cache hands back a shared slice; enrich a copy.
	work := make([]prowlarr.Source, len(sources))
	copy(work, sources)
	s.registry.EnrichAll(ctx, book, work)

	ranked := ranking.Rank(work, book, s.settings.GetRankingSettings(ctx))
	result := &QueryResult{State: StateOK, Book: book, Sources: ranked, Cached: cached}

	if !opts.Dispatch {
		return result, nil
	}
	if len(ranked) == 0 {
		log.Info().Str("asin", asin).Msg("[REQUEST] no usable sources to dispatch")
		return result, nil
	}

	r, err := s.requests.GetByASINUser(ctx, asin, username)
	if err != nil {
		return nil, fmt.Errorf("no active request to dispatch for: %w", err)
	}
	if err := s.dispatch(ctx, r, book, ranked[0]); err != nil {
		reason := err.Error()
		if setErr := s.requests.SetStatus(ctx, r.ID, domain.StatusFailed(reason)); setErr != nil {
			log.Error().Err(setErr).Int64("requestID", r.ID).
				Msg("[REQUEST] failed to record dispatch failure")
		}
		s.events.DownloadFailed(r, reason)
		return result, err
	}
	return result, nil
}

// dispatch adds the source to the torrent client and stamps the request.
// Magnet links are preferred; otherwise the .torrent is fetched through the
// aggregator and validated before upload.
func (s *Service) dispatch(ctx context.Context, r *domain.Request, book *domain.Book, src ranking.RankedSource) error {
	qcfg := s.settings.GetQbitSettings(ctx)
	if !qcfg.Enabled {
		return fmt.Errorf("torrent client is disabled: %w", domain.ErrMisconfigured)
	}

	client, err := s.newTorrentClient(qcfg)
	if err != nil {
		return fmt.Errorf("torrent client unavailable: %w", err)
	}

	payload := qbittorrent.AddPayload{
		Category: qcfg.Category,
		SavePath: qcfg.SavePath,
		Tags:     []string{asinTag(book.ASIN)},
	}

	var hash string
	if src.MagnetURL != "" {
		payload.MagnetURL = src.MagnetURL
		hash, _ = hashFromMagnet(src.MagnetURL)
	} else {
		data, err := s.fetchTorrent(ctx, src.DownloadURL)
		if err != nil {
			return err
		}
		if err := validateTorrent(data); err != nil {
			return err
		}
		payload.TorrentBytes = data
		if hash, err = hashFromTorrent(data); err != nil {
			return err
		}
	}

	if err := client.AddTorrent(ctx, payload); err != nil {
		return fmt.Errorf("failed to add download: %w", err)
	}

	if hash == "" {
		// Magnet without a recognizable btih; the monitor recovers the hash
		// through the asin tag.
		log.Warn().Str("asin", book.ASIN).Str("title", src.Title).
			Msg("[REQUEST] dispatched without info hash")
	}

	if err := s.requests.SetTorrentHash(ctx, r.ID, hash); err != nil {
		return err
	}
	if err := s.requests.SetDownloadProgress(ctx, r.ID, 0, "queued"); err != nil {
		return err
	}

	log.Info().Str("asin", book.ASIN).Str("title", src.Title).
		Str("hash", hash).Float64("score", src.Score).
		Msg("[REQUEST] download dispatched")
	s.events.DownloadStarted(r, src.Title)
	return nil
}

func (s *Service) fetchTorrent(ctx context.Context, downloadURL string) ([]byte, error) {
	cfg := s.settings.GetProwlarrSettings(ctx)
	client := prowlarr.NewClient(prowlarr.Config{
		Host:       cfg.BaseURL,
		APIKey:     cfg.APIKey,
		HTTPClient: s.httpClient,
	})
	return client.DownloadTorrent(ctx, downloadURL)
}

// List returns requests with books attached, all of them or one user's.
func (s *Service) List(ctx context.Context, username string) ([]*domain.Request, error) {
	return s.requests.List(ctx, username)
}

// Delete removes request rows and, best effort, their torrents with files.
// Books stay behind; the janitor reaps unreferenced ones later.
func (s *Service) Delete(ctx context.Context, asin, username string, allUsers bool) error {
	s.removeTorrents(ctx, asin)

	if allUsers {
		n, err := s.requests.DeleteByASIN(ctx, asin)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.ErrRequestNotFound
		}
		return nil
	}

	r, err := s.requests.GetByASINUser(ctx, asin, username)
	if err != nil {
		return err
	}
	return s.requests.Delete(ctx, r.ID)
}

// removeTorrents deletes every torrent tagged with the book's ASIN. Failures
// are logged, not returned, so rows can always be cleaned up.
func (s *Service) removeTorrents(ctx context.Context, asin string) {
	qcfg := s.settings.GetQbitSettings(ctx)
	if !qcfg.Enabled {
		return
	}

	client, err := s.newTorrentClient(qcfg)
	if err != nil {
		log.Warn().Err(err).Str("asin", asin).Msg("[REQUEST] torrent cleanup skipped")
		return
	}

	torrents, err := client.ListByCategory(ctx, qcfg.Category)
	if err != nil {
		log.Warn().Err(err).Str("asin", asin).Msg("[REQUEST] torrent cleanup list failed")
		return
	}

	tag := asinTag(asin)
	var hashes []string
	for _, t := range torrents {
		if hasTag(t.Tags, tag) {
			hashes = append(hashes, t.Hash)
		}
	}
	if len(hashes) == 0 {
		return
	}

	if err := client.Delete(ctx, hashes, true); err != nil {
		log.Warn().Err(err).Str("asin", asin).Strs("hashes", hashes).
			Msg("[REQUEST] torrent cleanup delete failed")
		return
	}
	log.Info().Str("asin", asin).Strs("hashes", hashes).
		Msg("[REQUEST] deleted torrents for removed request")
}

// hasTag reports whether the client's comma-separated tag string contains tag.
func hasTag(tags, tag string) bool {
	for _, t := range strings.Split(tags, ",") {
		if strings.TrimSpace(t) == tag {
			return true
		}
	}
	return false
}

// Retry resets a request to pending and enqueues a fresh dispatch.
func (s *Service) Retry(ctx context.Context, asin, username string) (*domain.Request, error) {
	r, err := s.requests.GetByASINUser(ctx, asin, username)
	if err != nil {
		return nil, err
	}
	if err := s.requests.ResetForRetry(ctx, r.ID); err != nil {
		return nil, err
	}
	s.enqueue(asin, username)
	return s.requests.Get(ctx, r.ID)
}
