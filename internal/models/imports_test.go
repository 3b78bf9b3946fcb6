// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/audiobrr/internal/domain"
)

func TestImportStoreSessionLifecycle(t *testing.T) {
	db := newTestDB(t)
	store := NewImportStore(db)
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "/mnt/library", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.ImportSessionScanning, session.Status)

	require.NoError(t, store.SetSessionStatus(ctx, session.ID, domain.ImportSessionReview, ""))

	got, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportSessionReview, got.Status)

	// The error message is only kept for the failed status.
	require.NoError(t, store.SetSessionStatus(ctx, session.ID, domain.ImportSessionFailed, "scan aborted"))
	got, err = store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "scan aborted", got.ErrorMsg)

	require.NoError(t, store.SetSessionStatus(ctx, session.ID, domain.ImportSessionCompleted, "stale"))
	got, err = store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ErrorMsg)

	_, err = store.GetSession(ctx, 99999)
	assert.ErrorIs(t, err, ErrImportSessionNotFound)
}

func TestImportStoreItems(t *testing.T) {
	db := newTestDB(t)
	store := NewImportStore(db)
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "/mnt/library", "alice")
	require.NoError(t, err)

	item, err := store.AddItem(ctx, &domain.ImportItem{
		SessionID:      session.ID,
		SourcePath:     "/mnt/library/Sanderson/The Way of Kings",
		DetectedTitle:  "The Way of Kings",
		DetectedAuthor: "Sanderson",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ImportItemPending, item.Status)

	require.NoError(t, store.SetItemMatch(ctx, item.ID, "B00ZVA2XWC", 0.98, domain.ImportItemMatched))

	got, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "B00ZVA2XWC", got.MatchASIN)
	assert.InDelta(t, 0.98, got.MatchScore, 1e-9)
	assert.Equal(t, domain.ImportItemMatched, got.Status)

	matched, err := store.ListItemsByStatus(ctx, session.ID, domain.ImportItemMatched)
	require.NoError(t, err)
	require.Len(t, matched, 1)

	require.NoError(t, store.SetItemStatus(ctx, item.ID, domain.ImportItemError, "copy failed"))
	got, err = store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "copy failed", got.ErrorMsg)
}

func TestImportStoreAddItemUnknownSession(t *testing.T) {
	db := newTestDB(t)
	store := NewImportStore(db)

	_, err := store.AddItem(context.Background(), &domain.ImportItem{
		SessionID:  99999,
		SourcePath: "/mnt/library/whatever.m4b",
	})
	assert.ErrorIs(t, err, ErrImportSessionNotFound)
}

func TestImportStoreDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	store := NewImportStore(db)
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "/mnt/library", "alice")
	require.NoError(t, err)

	item, err := store.AddItem(ctx, &domain.ImportItem{
		SessionID:  session.ID,
		SourcePath: "/mnt/library/book.m4b",
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteSession(ctx, session.ID))

	_, err = store.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, ErrImportItemNotFound)
}
