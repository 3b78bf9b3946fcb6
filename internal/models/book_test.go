// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/audiobrr/internal/domain"
)

func testBook(asin, title string) *domain.Book {
	return &domain.Book{
		ASIN:        asin,
		Title:       title,
		Authors:     []string{"Brandon Sanderson"},
		Narrators:   []string{"Michael Kramer"},
		Series:      []string{"The Stormlight Archive"},
		SeriesIndex: "1",
		RuntimeMin:  2734,
		Language:    "english",
	}
}

func TestBookStoreUpsertAndGet(t *testing.T) {
	db := newTestDB(t)
	store := NewBookStore(db)
	ctx := context.Background()

	created, err := store.Upsert(ctx, testBook("B00ZVA2XWC", "The Way of Kings"))
	require.NoError(t, err)
	assert.Equal(t, "B00ZVA2XWC", created.ASIN)
	assert.Equal(t, []string{"Brandon Sanderson"}, created.Authors)
	assert.False(t, created.Downloaded)

	got, err := store.Get(ctx, "B00ZVA2XWC")
	require.NoError(t, err)
	assert.Equal(t, "The Way of Kings", got.Title)
	assert.Equal(t, []string{"The Stormlight Archive"}, got.Series)

	_, err = store.Get(ctx, "B000000000")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestBookStoreUpsertRequiresASIN(t *testing.T) {
	db := newTestDB(t)
	store := NewBookStore(db)

	_, err := store.Upsert(context.Background(), &domain.Book{Title: "No ASIN"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBookStoreUpsertPreservesDownloaded(t *testing.T) {
	db := newTestDB(t)
	store := NewBookStore(db)
	ctx := context.Background()

	_, err := store.Upsert(ctx, testBook("B00ZVA2XWC", "The Way of Kings"))
	require.NoError(t, err)
	require.NoError(t, store.SetDownloaded(ctx, "B00ZVA2XWC", true))

	// A metadata refresh must not clear the flag.
	refreshed := testBook("B00ZVA2XWC", "The Way of Kings (Unabridged)")
	refreshed.Downloaded = false
	updated, err := store.Upsert(ctx, refreshed)
	require.NoError(t, err)
	assert.True(t, updated.Downloaded)
	assert.Equal(t, "The Way of Kings (Unabridged)", updated.Title)
}

func TestBookStoreGetExistingFreshnessGate(t *testing.T) {
	db := newTestDB(t)
	store := NewBookStore(db)
	ctx := context.Background()

	fresh := testBook("B00ZVA2XWC", "The Way of Kings")
	_, err := store.Upsert(ctx, fresh)
	require.NoError(t, err)

	noSeries := testBook("B08G9PRS1K", "Project Hail Mary")
	noSeries.Series = nil
	_, err = store.Upsert(ctx, noSeries)
	require.NoError(t, err)

	existing, err := store.GetExisting(ctx, []string{"B00ZVA2XWC", "B08G9PRS1K", "B0MISSING0"}, time.Hour)
	require.NoError(t, err)

	assert.Contains(t, existing, "B00ZVA2XWC")
	assert.NotContains(t, existing, "B08G9PRS1K", "records without series metadata are re-fetched")
	assert.NotContains(t, existing, "B0MISSING0")

	// A zero TTL makes every record stale.
	existing, err = store.GetExisting(ctx, []string{"B00ZVA2XWC"}, 0)
	require.NoError(t, err)
	assert.Empty(t, existing)
}

func TestBookStoreDeleteStale(t *testing.T) {
	db := newTestDB(t)
	books := NewBookStore(db)
	requests := NewRequestStore(db)
	ctx := context.Background()

	_, err := books.Upsert(ctx, testBook("B00STALE00", "Forgotten"))
	require.NoError(t, err)

	_, err = books.Upsert(ctx, testBook("B00WANTED0", "Requested"))
	require.NoError(t, err)
	_, err = requests.Create(ctx, "B00WANTED0", "alice")
	require.NoError(t, err)

	_, err = books.Upsert(ctx, testBook("B00HAVEIT0", "On Disk"))
	require.NoError(t, err)
	require.NoError(t, books.SetDownloaded(ctx, "B00HAVEIT0", true))

	// Negative TTL puts the cutoff in the future so every row is older.
	n, err := books.DeleteStale(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = books.Get(ctx, "B00STALE00")
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = books.Get(ctx, "B00WANTED0")
	assert.NoError(t, err, "requested books survive the janitor")

	_, err = books.Get(ctx, "B00HAVEIT0")
	assert.NoError(t, err, "downloaded books survive the janitor")
}
