// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/autobrr/audiobrr/internal/database"
	"github.com/autobrr/audiobrr/internal/testdb"
)

// newTestDB clones the migrated template database and opens it. The handle is
// closed when the test finishes.
func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	path := testdb.PathFromTemplate(t, "models", "models.db")
	db, err := database.New(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}
