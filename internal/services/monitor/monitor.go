// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package monitor watches the torrent client and moves finished downloads
// into the processing pipeline. One loop per process; ticks never overlap.
package monitor

import (
	"context"
	"strings"
	"sync"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/internal/qbittorrent"
)

const defaultInterval = 10 * time.Second

// progressScale leaves headroom above 0.9 for the processor's own phases.
const progressScale = 0.9

// processedTag marks torrents whose payload was imported.
const processedTag = "processed"

// TorrentClient is the slice of the torrent adapter the monitor needs.
type TorrentClient interface {
	ListByCategory(ctx context.Context, category string) ([]qbt.Torrent, error)
	AddTags(ctx context.Context, hashes []string, tags []string) error
	Delete(ctx context.Context, hashes []string, deleteFiles bool) error
}

// Processor imports a finished download into the library.
type Processor interface {
	Process(ctx context.Context, r *domain.Request, downloadPath string, deleteSource bool) error
}

// LibraryNotifier is poked after successful imports; the Audiobookshelf
// scan trigger implements it.
type LibraryNotifier interface {
	NotifyLibraryChanged(ctx context.Context)
}

type Service struct {
	requests  *models.RequestStore
	settings  *models.SettingsStore
	processor Processor
	notifier  LibraryNotifier
	interval  time.Duration

	// newClient builds the torrent adapter per tick; swapped in tests.
	newClient func(models.QbitSettings) (TorrentClient, error)

	mu           sync.Mutex
	lastTick     time.Time
	lastDuration time.Duration

	workerCtx    context.Context
	workerCancel context.CancelFunc
	workerWg     sync.WaitGroup
}

type Option func(*Service)

// WithInterval overrides the tick cadence.
func WithInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTorrentClientFactory swaps the torrent adapter constructor.
func WithTorrentClientFactory(f func(models.QbitSettings) (TorrentClient, error)) Option {
	return func(s *Service) { s.newClient = f }
}

// WithNotifier wires the post-import library notification.
func WithNotifier(n LibraryNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

func NewService(requests *models.RequestStore, settings *models.SettingsStore, processor Processor, opts ...Option) *Service {
	s := &Service{
		requests:  requests,
		settings:  settings,
		processor: processor,
		interval:  defaultInterval,
	}
	s.newClient = func(cfg models.QbitSettings) (TorrentClient, error) {
		return qbittorrent.NewClient(cfg)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the monitor loop.
func (s *Service) Start(ctx context.Context) {
	if s.workerCancel != nil {
		return
	}
	s.workerCtx, s.workerCancel = context.WithCancel(context.WithoutCancel(ctx))

	s.workerWg.Go(func() {
		s.loop()
	})
	log.Info().Dur("interval", s.interval).Msg("[MONITOR] download monitor started")
}

// Stop cancels the loop and waits for an in-flight tick to finish.
func (s *Service) Stop() {
	if s.workerCancel == nil {
		return
	}
	s.workerCancel()
	s.workerWg.Wait()
	s.workerCancel = nil
	log.Info().Msg("[MONITOR] download monitor stopped")
}

// LastTick reports when the last tick completed; zero before the first.
func (s *Service) LastTick() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTick
}

// LastTickDuration reports how long the last tick took.
func (s *Service) LastTickDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDuration
}

func (s *Service) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.workerCtx.Done():
			return
		case <-ticker.C:
			s.Tick(s.workerCtx)
		}
	}
}

// Tick runs one monitor pass. Exported so tests and the health endpoint can
// drive it directly.
func (s *Service) Tick(ctx context.Context) {
	started := time.Now()
	defer func() {
		s.mu.Lock()
		s.lastTick = time.Now()
		s.lastDuration = time.Since(started)
		s.mu.Unlock()
	}()

	qcfg := s.settings.GetQbitSettings(ctx)
	if !qcfg.Enabled {
		return
	}

	client, err := s.newClient(qcfg)
	if err != nil {
		log.Warn().Err(err).Msg("[MONITOR] torrent client unavailable")
		return
	}

	torrents, err := client.ListByCategory(ctx, qcfg.Category)
	if err != nil {
		log.Warn().Err(err).Msg("[MONITOR] failed to list torrents")
		return
	}

	byHash := make(map[string]qbt.Torrent, len(torrents))
	byASIN := make(map[string]qbt.Torrent)
	for _, t := range torrents {
		byHash[strings.ToLower(t.Hash)] = t
		if asin, ok := asinFromTags(t.Tags); ok {
			byASIN[asin] = t
		}
	}

	candidates, err := s.requests.ListCandidates(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("[MONITOR] failed to list candidate requests")
		return
	}

	var imported bool
	for _, r := range candidates {
		if ctx.Err() != nil {
			return
		}
		if s.checkRequest(ctx, client, byHash, byASIN, r) {
			imported = true
		}
	}

	if imported && s.notifier != nil {
		s.notifier.NotifyLibraryChanged(ctx)
	}
}

// checkRequest reconciles one request against the client snapshot and
// reports whether its download was imported this tick.
func (s *Service) checkRequest(ctx context.Context, client TorrentClient, byHash, byASIN map[string]qbt.Torrent, r *domain.Request) bool {
	torrent, ok := byHash[strings.ToLower(r.TorrentHash)]
	if !ok {
		// Hash missing or stale; the asin tag is the fallback identity.
		if healed, found := byASIN[r.ASIN]; found {
			torrent = healed
			if err := s.requests.HealTorrentHash(ctx, r.ID, healed.Hash); err != nil {
				log.Warn().Err(err).Int64("requestID", r.ID).Msg("[MONITOR] hash self-heal failed")
			} else {
				log.Info().Int64("requestID", r.ID).Str("hash", healed.Hash).
					Msg("[MONITOR] recovered torrent hash from asin tag")
			}
		} else {
			if r.TorrentHash != "" && !r.Status.IsTerminal() {
				s.markTorrentMissing(ctx, r)
			}
			return false
		}
	}

	if err := s.requests.SetDownloadProgress(ctx, r.ID,
		torrent.Progress*progressScale, string(torrent.State)); err != nil {
		log.Warn().Err(err).Int64("requestID", r.ID).Msg("[MONITOR] progress update failed")
		return false
	}

	if torrent.Progress < 1.0 {
		return false
	}

	// Re-read before the state transition; the user may have retried or
	// deleted the request since the candidate list was built.
	fresh, err := s.requests.Get(ctx, r.ID)
	if err != nil {
		return false
	}
	if fresh.Status == domain.StatusCompleted || fresh.Status == domain.StatusQueued || fresh.Status.IsFailed() {
		return false
	}

	if err := s.requests.SetStatus(ctx, fresh.ID, domain.StatusQueued); err != nil {
		log.Warn().Err(err).Int64("requestID", fresh.ID).Msg("[MONITOR] failed to queue request")
		return false
	}
	fresh.Status = domain.StatusQueued

	log.Info().Str("asin", fresh.ASIN).Str("name", torrent.Name).
		Msg("[MONITOR] download complete, processing")

	if err := s.processor.Process(ctx, fresh, torrent.ContentPath, false); err != nil {
		log.Error().Err(err).Str("asin", fresh.ASIN).Msg("[MONITOR] processing failed")
		if setErr := s.requests.SetStatus(ctx, fresh.ID, domain.StatusFailed(err.Error())); setErr != nil {
			log.Error().Err(setErr).Int64("requestID", fresh.ID).
				Msg("[MONITOR] failed to record processing failure")
		}
		return false
	}

	if err := client.AddTags(ctx, []string{torrent.Hash}, []string{processedTag}); err != nil {
		log.Warn().Err(err).Str("hash", torrent.Hash).Msg("[MONITOR] failed to tag torrent")
	}
	// Drop the torrent entry but keep its payload on disk.
	if err := client.Delete(ctx, []string{torrent.Hash}, false); err != nil {
		log.Warn().Err(err).Str("hash", torrent.Hash).Msg("[MONITOR] failed to remove torrent")
	}
	return true
}

func (s *Service) markTorrentMissing(ctx context.Context, r *domain.Request) {
	if err := s.requests.SetDownloadProgress(ctx, r.ID, r.DownloadProgress, "torrent_missing"); err != nil {
		log.Warn().Err(err).Int64("requestID", r.ID).Msg("[MONITOR] state update failed")
	}
	if err := s.requests.SetStatus(ctx, r.ID, domain.StatusFailed("torrent missing")); err != nil {
		log.Warn().Err(err).Int64("requestID", r.ID).Msg("[MONITOR] status update failed")
	}
	log.Warn().Str("asin", r.ASIN).Str("hash", r.TorrentHash).
		Msg("[MONITOR] torrent vanished from client")
}

// asinFromTags extracts the asin:<id> tag from the client's comma-separated
// tag string.
func asinFromTags(tags string) (string, bool) {
	for _, tag := range strings.Split(tags, ",") {
		tag = strings.TrimSpace(tag)
		if rest, ok := strings.CutPrefix(tag, "asin:"); ok && rest != "" {
			return rest, true
		}
	}
	return "", false
}
