// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package dbinterface

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildQueryWithPlaceholders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name               string
		template           string
		placeholdersPerRow int
		numRows            int
		want               string
	}{
		{
			name:               "asin IN clause",
			template:           "SELECT asin FROM books WHERE asin IN %s",
			placeholdersPerRow: 3,
			numRows:            1,
			want:               "SELECT asin FROM books WHERE asin IN (?, ?, ?)",
		},
		{
			name:               "multi row insert",
			template:           "INSERT INTO import_items (session_id, source_path) VALUES %s",
			placeholdersPerRow: 2,
			numRows:            3,
			want:               "INSERT INTO import_items (session_id, source_path) VALUES (?, ?), (?, ?), (?, ?)",
		},
		{
			name:               "single placeholder single row",
			template:           "DELETE FROM requests WHERE id IN %s",
			placeholdersPerRow: 1,
			numRows:            1,
			want:               "DELETE FROM requests WHERE id IN (?)",
		},
		{
			name:               "zero rows leaves template empty",
			template:           "VALUES %s",
			placeholdersPerRow: 2,
			numRows:            0,
			want:               "VALUES ",
		},
		{
			name:               "non-positive placeholders per row",
			template:           "VALUES %s",
			placeholdersPerRow: -1,
			numRows:            3,
			want:               "VALUES ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := BuildQueryWithPlaceholders(tt.template, tt.placeholdersPerRow, tt.numRows)
			assert.Equal(t, tt.want, got)
		})
	}
}
