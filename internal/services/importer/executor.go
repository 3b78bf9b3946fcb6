// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/internal/models"
)

// ExecuteSession imports every matched item of a reviewed session in the
// background. moveFiles selects move over copy for normal sessions;
// reconciliation sessions always re-organize in place.
func (s *Service) ExecuteSession(ctx context.Context, sessionID int64, moveFiles bool, username string) error {
	session, err := s.imports.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	items, err := s.imports.ListItemsByStatus(ctx, sessionID, domain.ImportItemMatched)
	if err != nil {
		return err
	}

	if err := s.imports.SetSessionStatus(ctx, sessionID, domain.ImportSessionImporting, ""); err != nil {
		return err
	}

	reconciliation := session.RootPath == InternalLibraryRoot
	s.background(func(ctx context.Context) {
		sem := semaphore.NewWeighted(importConcurrency)
		var wg sync.WaitGroup

		for _, item := range items {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Go(func() {
				defer sem.Release(1)
				s.importItem(ctx, item, moveFiles, reconciliation, username)
			})
		}
		wg.Wait()

		if err := s.imports.SetSessionStatus(ctx, sessionID, domain.ImportSessionCompleted, ""); err != nil {
			log.Warn().Err(err).Int64("sessionID", sessionID).Msg("[IMPORT] failed to complete session")
		}
		log.Info().Int64("sessionID", sessionID).Int("items", len(items)).Msg("[IMPORT] session import finished")
	})
	return nil
}

// ExecuteItem imports a single matched item immediately.
func (s *Service) ExecuteItem(ctx context.Context, itemID int64, moveFiles bool, username string) error {
	item, err := s.imports.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status != domain.ImportItemMatched {
		return fmt.Errorf("item %d is %s, not matched: %w", itemID, item.Status, domain.ErrValidation)
	}

	session, err := s.imports.GetSession(ctx, item.SessionID)
	if err != nil {
		return err
	}

	s.importItem(ctx, item, moveFiles, session.RootPath == InternalLibraryRoot, username)
	return nil
}

// SkipItem marks an item skipped so the session can settle without it.
func (s *Service) SkipItem(ctx context.Context, itemID int64) error {
	return s.imports.SetItemStatus(ctx, itemID, domain.ImportItemSkipped, "")
}

// AssignItem pins an item to a caller-chosen ASIN, overriding the matcher.
func (s *Service) AssignItem(ctx context.Context, itemID int64, asin string) error {
	if !domain.ValidASIN(asin) {
		return fmt.Errorf("invalid asin %q: %w", asin, domain.ErrValidation)
	}
	return s.imports.SetItemMatch(ctx, itemID, strings.ToUpper(strings.TrimSpace(asin)), 1.0, domain.ImportItemMatched)
}

// importItem drives one matched item through the processor.
func (s *Service) importItem(ctx context.Context, item *domain.ImportItem, moveFiles, reconciliation bool, username string) {
	if item.MatchASIN == "" {
		return
	}

	fail := func(err error) {
		log.Error().Err(err).Int64("itemID", item.ID).Str("asin", item.MatchASIN).Msg("[IMPORT] item import failed")
		msg := err.Error()
		if len(msg) > 500 {
			msg = msg[:500]
		}
		if setErr := s.imports.SetItemStatus(ctx, item.ID, domain.ImportItemError, msg); setErr != nil {
			log.Warn().Err(setErr).Int64("itemID", item.ID).Msg("[IMPORT] failed to record item error")
		}
	}

	book, err := s.resolveBook(ctx, item.MatchASIN, item.DetectedLanguage)
	if err != nil {
		fail(err)
		return
	}

	// Outside reconciliation a book already on disk needs no file work.
	if !reconciliation && book.Downloaded {
		if err := s.imports.SetItemStatus(ctx, item.ID, domain.ImportItemImported, ""); err != nil {
			log.Warn().Err(err).Int64("itemID", item.ID).Msg("[IMPORT] failed to mark item imported")
		}
		return
	}

	req, err := s.requestFor(ctx, item.MatchASIN, username)
	if err != nil {
		fail(err)
		return
	}

	deleteSource := moveFiles
	if reconciliation {
		// Reconciliation re-organizes in place; the "source" is the library
		// copy itself and must not be duplicated.
		deleteSource = true
	}

	if err := s.processor.Process(ctx, req, item.SourcePath, deleteSource); err != nil {
		fail(err)
		return
	}

	if err := s.imports.SetItemStatus(ctx, item.ID, domain.ImportItemImported, ""); err != nil {
		log.Warn().Err(err).Int64("itemID", item.ID).Msg("[IMPORT] failed to mark item imported")
	}
	log.Info().Str("asin", item.MatchASIN).Str("title", book.Title).Msg("[IMPORT] item imported")
}

// resolveBook returns the stored book, fetching it through the matcher's
// metadata client when the row is missing.
func (s *Service) resolveBook(ctx context.Context, asin, language string) (*domain.Book, error) {
	book, err := s.books.Get(ctx, asin)
	if err == nil {
		return book, nil
	}
	if !errors.Is(err, models.ErrBookNotFound) {
		return nil, err
	}

	fetched, err := s.matcher.metadata.GetBook(ctx, asin, language)
	if err != nil {
		return nil, err
	}
	if fetched == nil {
		return nil, fmt.Errorf("book %s: %w", asin, domain.ErrNotFound)
	}
	return s.books.Upsert(ctx, fetched)
}

// requestFor returns the caller's request for asin, creating one if needed
// so the processor has a row to report progress on.
func (s *Service) requestFor(ctx context.Context, asin, username string) (*domain.Request, error) {
	req, err := s.requests.GetByASINUser(ctx, asin, username)
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, models.ErrRequestNotFound) {
		return nil, err
	}
	return s.requests.Create(ctx, asin, username)
}
