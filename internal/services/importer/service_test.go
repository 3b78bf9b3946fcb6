// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/audiobrr/internal/database"
	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/internal/testdb"
)

type fakeMetadata struct {
	mu      sync.Mutex
	books   map[string]*domain.Book
	results []*domain.Book
	queries []string
}

func (f *fakeMetadata) GetBook(_ context.Context, asin, _ string) (*domain.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.books[asin], nil
}

func (f *fakeMetadata) SearchBooks(_ context.Context, query, _ string) ([]*domain.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.results, nil
}

type fakeProcessor struct {
	mu    sync.Mutex
	calls []processCall
	err   error
}

type processCall struct {
	asin         string
	path         string
	deleteSource bool
}

func (f *fakeProcessor) Process(_ context.Context, r *domain.Request, downloadPath string, deleteSource bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, processCall{asin: r.ASIN, path: downloadPath, deleteSource: deleteSource})
	return nil
}

type testEnv struct {
	imports   *models.ImportStore
	books     *models.BookStore
	requests  *models.RequestStore
	settings  *models.SettingsStore
	metadata  *fakeMetadata
	processor *fakeProcessor
	svc       *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	path := testdb.PathFromTemplate(t, "importer", "importer.db")
	db, err := database.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{
		imports:   models.NewImportStore(db),
		books:     models.NewBookStore(db),
		requests:  models.NewRequestStore(db),
		settings:  models.NewSettingsStore(db),
		metadata:  &fakeMetadata{books: make(map[string]*domain.Book)},
		processor: &fakeProcessor{},
	}
	env.svc = NewService(env.imports, env.books, env.requests, env.settings, env.metadata, env.processor)
	return env
}

func writeSidecar(t *testing.T, dir, asin string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"),
		[]byte(`{"asin": "`+asin+`"}`), 0o644))
}

func TestScanMatchesByPathASIN(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	root := t.TempDir()
	touch(t, filepath.Join(root, "Mistborn [B00G3L1C9K].m4b"))
	env.metadata.books["B00G3L1C9K"] = &domain.Book{
		ASIN: "B00G3L1C9K", Title: "Mistborn", Authors: []string{"Brandon Sanderson"},
	}

	session, err := env.svc.StartScan(ctx, root, "alice")
	require.NoError(t, err)

	got, err := env.imports.GetSessionWithItems(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportSessionReview, got.Status)
	require.Len(t, got.Items, 1)
	assert.Equal(t, domain.ImportItemMatched, got.Items[0].Status)
	assert.Equal(t, "B00G3L1C9K", got.Items[0].MatchASIN)
	assert.InDelta(t, 0.98, got.Items[0].MatchScore, 1e-9, "ASIN hit without exact title agreement")
}

func TestScanFuzzyMatchExactOverride(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	root := t.TempDir()
	touch(t, filepath.Join(root, "Brandon Sanderson - The Final Empire.m4b"))
	env.metadata.results = []*domain.Book{
		{ASIN: "B000000TFE", Title: "The Final Empire", Authors: []string{"Brandon Sanderson"}},
		{ASIN: "B000000ELA", Title: "Elantris", Authors: []string{"Brandon Sanderson"}},
	}

	session, err := env.svc.StartScan(ctx, root, "alice")
	require.NoError(t, err)

	got, err := env.imports.GetSessionWithItems(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, domain.ImportItemMatched, got.Items[0].Status)
	assert.Equal(t, "B000000TFE", got.Items[0].MatchASIN)
	assert.InDelta(t, 1.0, got.Items[0].MatchScore, 1e-9, "exact title and author pins the score")
}

func TestScanNoMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	root := t.TempDir()
	touch(t, filepath.Join(root, "Unknown Author - Completely Obscure Title.m4b"))

	session, err := env.svc.StartScan(ctx, root, "alice")
	require.NoError(t, err)

	got, err := env.imports.GetSessionWithItems(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, domain.ImportItemNoMatch, got.Items[0].Status)
	assert.Empty(t, got.Items[0].MatchASIN)
}

func TestScanRejectsMissingRoot(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.StartScan(context.Background(), "/does/not/exist", "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMatcherRejectsWeakCandidates(t *testing.T) {
	env := newTestEnv(t)
	m := env.svc.matcher
	env.metadata.results = []*domain.Book{
		{ASIN: "B0UNRELATE", Title: "Cooking For Beginners", Authors: []string{"Somebody Else"}},
	}

	result, err := m.Match(context.Background(), &domain.ImportItem{
		SourcePath:     "/scan/Brandon Sanderson - The Way of Kings.m4b",
		DetectedTitle:  "The Way of Kings",
		DetectedAuthor: "Brandon Sanderson",
	}, "")
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestMatcherSwappedAuthorTitle(t *testing.T) {
	env := newTestEnv(t)
	m := env.svc.matcher
	env.metadata.results = []*domain.Book{
		{ASIN: "B0SWAPPED0", Title: "The Way of Kings", Authors: []string{"Brandon Sanderson"}},
	}

	// Rip named "Title - Author": detection swaps the fields.
	result, err := m.Match(context.Background(), &domain.ImportItem{
		SourcePath:     "/scan/The Way of Kings - Brandon Sanderson.m4b",
		DetectedTitle:  "Brandon Sanderson",
		DetectedAuthor: "The Way of Kings",
	}, "")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "B0SWAPPED0", result.ASIN)
}

func TestExecuteSessionImports(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, err := env.imports.CreateSession(ctx, "/scan", "alice")
	require.NoError(t, err)
	require.NoError(t, env.imports.SetSessionStatus(ctx, session.ID, domain.ImportSessionReview, ""))

	for _, asin := range []string{"B000000AAA", "B000000BBB"} {
		_, err := env.books.Upsert(ctx, &domain.Book{
			ASIN: asin, Title: "Book " + asin, Authors: []string{"Someone"},
		})
		require.NoError(t, err)
		_, err = env.imports.AddItem(ctx, &domain.ImportItem{
			SessionID:  session.ID,
			SourcePath: "/scan/" + asin,
			MatchASIN:  asin,
			Status:     domain.ImportItemMatched,
		})
		require.NoError(t, err)
	}

	require.NoError(t, env.svc.ExecuteSession(ctx, session.ID, true, "alice"))

	got, err := env.imports.GetSessionWithItems(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportSessionCompleted, got.Status)
	for _, item := range got.Items {
		assert.Equal(t, domain.ImportItemImported, item.Status)
	}

	env.processor.mu.Lock()
	require.Len(t, env.processor.calls, 2)
	for _, call := range env.processor.calls {
		assert.True(t, call.deleteSource, "move mode deletes the source")
	}
	env.processor.mu.Unlock()

	// Each import rides a request row owned by the executing user.
	r, err := env.requests.GetByASINUser(ctx, "B000000AAA", "alice")
	require.NoError(t, err)
	assert.Equal(t, "B000000AAA", r.ASIN)
}

func TestExecuteSessionSkipsDownloadedBooks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, err := env.imports.CreateSession(ctx, "/scan", "alice")
	require.NoError(t, err)

	_, err = env.books.Upsert(ctx, &domain.Book{
		ASIN: "B000000AAA", Title: "Already Here", Authors: []string{"Someone"},
	})
	require.NoError(t, err)
	require.NoError(t, env.books.SetDownloaded(ctx, "B000000AAA", true))

	item, err := env.imports.AddItem(ctx, &domain.ImportItem{
		SessionID:  session.ID,
		SourcePath: "/scan/book",
		MatchASIN:  "B000000AAA",
		Status:     domain.ImportItemMatched,
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.ExecuteItem(ctx, item.ID, false, "alice"))

	got, err := env.imports.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportItemImported, got.Status)

	env.processor.mu.Lock()
	assert.Empty(t, env.processor.calls, "books already on disk need no file work")
	env.processor.mu.Unlock()
}

func TestExecuteItemRecordsProcessorError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.processor.err = errors.New("no audio files found in /scan/book")

	session, err := env.imports.CreateSession(ctx, "/scan", "alice")
	require.NoError(t, err)
	_, err = env.books.Upsert(ctx, &domain.Book{
		ASIN: "B000000AAA", Title: "Broken", Authors: []string{"Someone"},
	})
	require.NoError(t, err)

	item, err := env.imports.AddItem(ctx, &domain.ImportItem{
		SessionID:  session.ID,
		SourcePath: "/scan/book",
		MatchASIN:  "B000000AAA",
		Status:     domain.ImportItemMatched,
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.ExecuteItem(ctx, item.ID, false, "alice"))

	got, err := env.imports.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportItemError, got.Status)
	assert.Contains(t, got.ErrorMsg, "no audio files")
}

func TestExecuteItemRequiresMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, err := env.imports.CreateSession(ctx, "/scan", "alice")
	require.NoError(t, err)
	item, err := env.imports.AddItem(ctx, &domain.ImportItem{
		SessionID:  session.ID,
		SourcePath: "/scan/book",
		Status:     domain.ImportItemNoMatch,
	})
	require.NoError(t, err)

	err = env.svc.ExecuteItem(ctx, item.ID, false, "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReconcileSkipsTrackedBooks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	library := t.TempDir()
	require.NoError(t, env.settings.Set(ctx, models.KeyLibraryPath, library))

	// Tracked book: sidecar ASIN exists in the DB as downloaded.
	tracked := filepath.Join(library, "Author A", "Tracked Book")
	touch(t, filepath.Join(tracked, "book.m4b"))
	writeSidecar(t, tracked, "B000000AAA")
	_, err := env.books.Upsert(ctx, &domain.Book{
		ASIN: "B000000AAA", Title: "Tracked Book", Authors: []string{"Author A"},
	})
	require.NoError(t, err)
	require.NoError(t, env.books.SetDownloaded(ctx, "B000000AAA", true))

	// Untracked book: sidecar present but nothing in the DB.
	untracked := filepath.Join(library, "Author B", "Orphan Book")
	touch(t, filepath.Join(untracked, "orphan book part 1.mp3"))
	touch(t, filepath.Join(untracked, "orphan book part 2.mp3"))
	writeSidecar(t, untracked, "B000000BBB")

	session, err := env.svc.StartReconcile(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, InternalLibraryRoot, session.RootPath)

	got, err := env.imports.GetSessionWithItems(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportSessionReview, got.Status)
	require.Len(t, got.Items, 1, "tracked books never surface for review")
	assert.Equal(t, "B000000BBB", got.Items[0].MatchASIN)
	assert.Equal(t, domain.ImportItemMatched, got.Items[0].Status)
	assert.InDelta(t, 0.95, got.Items[0].MatchScore, 1e-9)
}

func TestReconcileReplacesPreviousSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	library := t.TempDir()
	require.NoError(t, env.settings.Set(ctx, models.KeyLibraryPath, library))

	first, err := env.svc.StartReconcile(ctx, "admin")
	require.NoError(t, err)
	second, err := env.svc.StartReconcile(ctx, "admin")
	require.NoError(t, err)

	_, err = env.imports.GetSession(ctx, first.ID)
	assert.ErrorIs(t, err, models.ErrImportSessionNotFound)

	latest, err := env.svc.LatestReconcileSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
}

func TestReconcileImportForcesReorganize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, err := env.imports.CreateSession(ctx, InternalLibraryRoot, "admin")
	require.NoError(t, err)
	_, err = env.books.Upsert(ctx, &domain.Book{
		ASIN: "B000000AAA", Title: "In Place", Authors: []string{"Someone"},
	})
	require.NoError(t, err)

	item, err := env.imports.AddItem(ctx, &domain.ImportItem{
		SessionID:  session.ID,
		SourcePath: "/library/legacy/book",
		MatchASIN:  "B000000AAA",
		Status:     domain.ImportItemMatched,
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.ExecuteItem(ctx, item.ID, false, "admin"))

	env.processor.mu.Lock()
	require.Len(t, env.processor.calls, 1)
	assert.True(t, env.processor.calls[0].deleteSource, "reconciliation always re-organizes in place")
	env.processor.mu.Unlock()
}

func TestSkipAndAssignItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, err := env.imports.CreateSession(ctx, "/scan", "alice")
	require.NoError(t, err)
	item, err := env.imports.AddItem(ctx, &domain.ImportItem{
		SessionID:  session.ID,
		SourcePath: "/scan/book",
		Status:     domain.ImportItemNoMatch,
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.SkipItem(ctx, item.ID))
	got, err := env.imports.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportItemSkipped, got.Status)

	require.NoError(t, env.svc.AssignItem(ctx, item.ID, "b000000aaa"))
	got, err = env.imports.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "B000000AAA", got.MatchASIN)
	assert.Equal(t, domain.ImportItemMatched, got.Status)
	assert.InDelta(t, 1.0, got.MatchScore, 1e-9)

	assert.ErrorIs(t, env.svc.AssignItem(ctx, item.ID, "nope"), domain.ErrValidation)
}
