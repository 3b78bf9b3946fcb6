// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package importer scans a filesystem for audiobooks, matches them to the
// catalog, and drives them through the processor into the library. The same
// machinery reconciles the library itself against the database.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/internal/services/processor"
)

// InternalLibraryRoot marks reconciliation sessions: the scan root is the
// configured library path and imports force re-organization in place.
const InternalLibraryRoot = "__INTERNAL_LIBRARY__"

const (
	scanConcurrency      = 5
	reconcileConcurrency = 10
	importConcurrency    = 5
)

// Processor imports one matched item into the library.
type Processor interface {
	Process(ctx context.Context, r *domain.Request, downloadPath string, deleteSource bool) error
}

type Service struct {
	imports   *models.ImportStore
	books     *models.BookStore
	requests  *models.RequestStore
	settings  *models.SettingsStore
	matcher   *Matcher
	processor Processor

	workerCtx    context.Context
	workerCancel context.CancelFunc
	workerWg     sync.WaitGroup
}

func NewService(imports *models.ImportStore, books *models.BookStore, requests *models.RequestStore,
	settings *models.SettingsStore, metadata MetadataClient, proc Processor) *Service {
	return &Service{
		imports:   imports,
		books:     books,
		requests:  requests,
		settings:  settings,
		matcher:   NewMatcher(metadata),
		processor: proc,
	}
}

// Start prepares the background context for scans and imports.
func (s *Service) Start(ctx context.Context) {
	if s.workerCancel != nil {
		return
	}
	s.workerCtx, s.workerCancel = context.WithCancel(context.WithoutCancel(ctx))
}

// Stop cancels background work and waits for it to settle.
func (s *Service) Stop() {
	if s.workerCancel == nil {
		return
	}
	s.workerCancel()
	s.workerWg.Wait()
	s.workerCancel = nil
}

// background runs fn on the worker context, falling back to a detached
// context when Start was never called (tests drive methods directly).
func (s *Service) background(fn func(ctx context.Context)) {
	if s.workerCancel == nil {
		fn(context.Background())
		return
	}
	s.workerWg.Go(func() {
		fn(s.workerCtx)
	})
}

// StartScan creates a session for root and begins scanning in the
// background. The returned session is in the scanning state.
func (s *Service) StartScan(ctx context.Context, root, username string) (*domain.ImportSession, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("scan root %q is not a directory: %w", root, domain.ErrValidation)
	}

	session, err := s.imports.CreateSession(ctx, root, username)
	if err != nil {
		return nil, err
	}

	s.background(func(ctx context.Context) {
		s.runScan(ctx, session.ID, root)
	})
	return session, nil
}

// StartReconcile replaces any previous reconciliation session and scans the
// configured library path for books the database does not track.
func (s *Service) StartReconcile(ctx context.Context, username string) (*domain.ImportSession, error) {
	media := s.settings.GetMediaSettings(ctx)
	if err := media.Validate(); err != nil {
		return nil, err
	}
	if info, err := os.Stat(media.LibraryPath); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("library path %q is not a directory: %w", media.LibraryPath, domain.ErrValidation)
	}

	// One reconciliation session at a time; stale ones just confuse the UI.
	sessions, err := s.imports.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, old := range sessions {
		if old.RootPath == InternalLibraryRoot {
			if err := s.imports.DeleteSession(ctx, old.ID); err != nil {
				log.Warn().Err(err).Int64("sessionID", old.ID).Msg("[IMPORT] failed to drop stale reconciliation session")
			}
		}
	}

	session, err := s.imports.CreateSession(ctx, InternalLibraryRoot, username)
	if err != nil {
		return nil, err
	}

	s.background(func(ctx context.Context) {
		s.runReconcile(ctx, session.ID, media.LibraryPath)
	})
	return session, nil
}

// LatestReconcileSession returns the most recent reconciliation session, or
// nil when none exists.
func (s *Service) LatestReconcileSession(ctx context.Context) (*domain.ImportSession, error) {
	sessions, err := s.imports.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, session := range sessions {
		if session.RootPath == InternalLibraryRoot {
			return session, nil
		}
	}
	return nil, nil
}

// runScan walks the root, records each unit, and matches it.
func (s *Service) runScan(ctx context.Context, sessionID int64, root string) {
	log.Info().Int64("sessionID", sessionID).Str("root", root).Msg("[IMPORT] scan started")

	units := FindBookUnits(root)
	log.Info().Int64("sessionID", sessionID).Int("units", len(units)).Msg("[IMPORT] scan found book units")

	if err := s.imports.SetSessionStatus(ctx, sessionID, domain.ImportSessionMatching, ""); err != nil {
		log.Warn().Err(err).Int64("sessionID", sessionID).Msg("[IMPORT] failed to advance session")
	}

	s.matchUnits(ctx, sessionID, units, scanConcurrency, nil)
	s.settleSession(ctx, sessionID)
}

// runReconcile is runScan over the library itself, skipping tracked books.
func (s *Service) runReconcile(ctx context.Context, sessionID int64, libraryPath string) {
	log.Info().Int64("sessionID", sessionID).Str("root", libraryPath).Msg("[IMPORT] reconciliation started")

	units := FindBookUnits(libraryPath)

	if err := s.imports.SetSessionStatus(ctx, sessionID, domain.ImportSessionMatching, ""); err != nil {
		log.Warn().Err(err).Int64("sessionID", sessionID).Msg("[IMPORT] failed to advance session")
	}

	s.matchUnits(ctx, sessionID, units, reconcileConcurrency, s.reconcileUnit)
	s.settleSession(ctx, sessionID)
}

// matchUnits fans the units out over a bounded worker set. A non-nil handle
// gets first crack at each unit; returning false falls through to the
// default add-and-match path.
func (s *Service) matchUnits(ctx context.Context, sessionID int64, units []BookUnit, concurrency int64,
	handle func(ctx context.Context, sessionID int64, unit BookUnit) bool) {
	sem := semaphore.NewWeighted(concurrency)
	var wg sync.WaitGroup

	for _, unit := range units {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Go(func() {
			defer sem.Release(1)
			if handle != nil && handle(ctx, sessionID, unit) {
				return
			}
			s.matchUnit(ctx, sessionID, unit)
		})
	}
	wg.Wait()
}

// matchUnit records the unit and runs the matcher over it.
func (s *Service) matchUnit(ctx context.Context, sessionID int64, unit BookUnit) {
	item, err := s.imports.AddItem(ctx, &domain.ImportItem{
		SessionID:        sessionID,
		SourcePath:       unit.Path,
		DetectedTitle:    unit.Title,
		DetectedAuthor:   unit.Author,
		DetectedLanguage: unit.Language,
	})
	if err != nil {
		log.Warn().Err(err).Str("path", unit.Path).Msg("[IMPORT] failed to record book unit")
		return
	}

	result, err := s.matcher.Match(ctx, item, unit.Language)
	if err != nil {
		log.Warn().Err(err).Str("path", unit.Path).Msg("[IMPORT] match failed")
	}

	if result.Matched {
		if err := s.imports.SetItemMatch(ctx, item.ID, result.ASIN, result.Score, domain.ImportItemMatched); err != nil {
			log.Warn().Err(err).Int64("itemID", item.ID).Msg("[IMPORT] failed to record match")
		}
		return
	}
	if err := s.imports.SetItemMatch(ctx, item.ID, "", 0, domain.ImportItemNoMatch); err != nil {
		log.Warn().Err(err).Int64("itemID", item.ID).Msg("[IMPORT] failed to record miss")
	}
}

// reconcileUnit handles one library unit: tracked books are skipped, sidecar
// ASINs short-circuit the matcher.
func (s *Service) reconcileUnit(ctx context.Context, sessionID int64, unit BookUnit) bool {
	asin := sidecarASINForUnit(unit.Path)

	if asin != "" {
		if book, err := s.books.Get(ctx, asin); err == nil && book.Downloaded {
			return true
		}
	} else if unit.Title != "" {
		// Legacy folders without sidecars: an exact downloaded title is
		// almost certainly the same book.
		if _, err := s.books.GetDownloadedByTitle(ctx, unit.Title); err == nil {
			return true
		}
	}

	if asin == "" {
		return false
	}

	item, err := s.imports.AddItem(ctx, &domain.ImportItem{
		SessionID:        sessionID,
		SourcePath:       unit.Path,
		DetectedTitle:    unit.Title,
		DetectedAuthor:   unit.Author,
		DetectedLanguage: unit.Language,
		MatchASIN:        asin,
	})
	if err != nil {
		log.Warn().Err(err).Str("path", unit.Path).Msg("[IMPORT] failed to record library unit")
		return true
	}

	score := 0.95
	titles, authors := buildCandidates(item)
	if book, err := s.books.Get(ctx, asin); err == nil && isExactMatch(titles, authors, book) {
		score = 1.0
	}
	if err := s.imports.SetItemMatch(ctx, item.ID, asin, score, domain.ImportItemMatched); err != nil {
		log.Warn().Err(err).Int64("itemID", item.ID).Msg("[IMPORT] failed to record sidecar match")
	}
	return true
}

// settleSession marks stragglers and moves the session to review.
func (s *Service) settleSession(ctx context.Context, sessionID int64) {
	pending, err := s.imports.ListItemsByStatus(ctx, sessionID, domain.ImportItemPending)
	if err == nil {
		for _, item := range pending {
			status := domain.ImportItemNoMatch
			if item.MatchASIN != "" {
				status = domain.ImportItemMatched
			}
			if err := s.imports.SetItemStatus(ctx, item.ID, status, ""); err != nil {
				log.Warn().Err(err).Int64("itemID", item.ID).Msg("[IMPORT] failed to settle item")
			}
		}
	}

	if err := s.imports.SetSessionStatus(ctx, sessionID, domain.ImportSessionReview, ""); err != nil {
		log.Warn().Err(err).Int64("sessionID", sessionID).Msg("[IMPORT] failed to finish session")
	}
	log.Info().Int64("sessionID", sessionID).Msg("[IMPORT] scan ready for review")
}

// sidecarASINForUnit reads the metadata.json next to a unit. File units look
// in their containing directory; the library keeps one book per folder.
func sidecarASINForUnit(path string) string {
	first := strings.SplitN(path, "|", 2)[0]
	info, err := os.Stat(first)
	if err != nil {
		return ""
	}
	if !info.IsDir() {
		first = filepath.Dir(first)
	}
	data, err := os.ReadFile(filepath.Join(first, processor.MetadataFileName))
	if err != nil {
		return ""
	}
	var meta struct {
		ASIN string `json:"asin"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return ""
	}
	return meta.ASIN
}

// HasASIN reports whether the library under root already holds the book.
// The request service consults it before accepting new requests.
func (s *Service) HasASIN(ctx context.Context, root, asin string) bool {
	_, ok := processor.FindByASIN(root, asin)
	return ok
}
