// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/audiobrr/internal/dbinterface"
	"github.com/autobrr/audiobrr/internal/domain"
)

var ErrBookNotFound = errors.New("book not found")

// BookStore persists normalized book records. Authors, narrators, series,
// and genres are stored as JSON arrays in TEXT columns.
type BookStore struct {
	db dbinterface.Querier
}

func NewBookStore(db dbinterface.Querier) *BookStore {
	return &BookStore{db: db}
}

const bookColumns = `asin, title, subtitle, authors, narrators, cover_url,
	release_date, runtime_min, series, series_index, genres, publisher,
	description, language, downloaded, updated_at`

func marshalList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}

func scanBook(row interface{ Scan(...any) error }) (*domain.Book, error) {
	var b domain.Book
	var authors, narrators, series, genres string
	var releaseDate sql.NullTime

	err := row.Scan(&b.ASIN, &b.Title, &b.Subtitle, &authors, &narrators,
		&b.CoverURL, &releaseDate, &b.RuntimeMin, &series, &b.SeriesIndex,
		&genres, &b.Publisher, &b.Description, &b.Language, &b.Downloaded,
		&b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	b.Authors = unmarshalList(authors)
	b.Narrators = unmarshalList(narrators)
	b.Series = unmarshalList(series)
	b.Genres = unmarshalList(genres)
	if releaseDate.Valid {
		t := releaseDate.Time
		b.ReleaseDate = &t
	}
	return &b, nil
}

// Get returns the book for asin, or ErrBookNotFound.
func (s *BookStore) Get(ctx context.Context, asin string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+bookColumns+" FROM books WHERE asin = ?", asin)

	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book %s: %w", asin, err)
	}
	return b, nil
}

// GetDownloadedByTitle returns a downloaded book with an exact title, or
// ErrBookNotFound. The reconciler uses it to skip legacy folders without
// sidecars that are already tracked.
func (s *BookStore) GetDownloadedByTitle(ctx context.Context, title string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+bookColumns+" FROM books WHERE title = ? AND downloaded = 1 LIMIT 1", title)

	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up downloaded book %q: %w", title, err)
	}
	return b, nil
}

// GetExisting returns books from asins that pass the freshness gate:
// updated within ttl AND carrying series metadata. Records missing series
// are treated as incomplete and left out so callers re-fetch them.
func (s *BookStore) GetExisting(ctx context.Context, asins []string, ttl time.Duration) (map[string]*domain.Book, error) {
	result := make(map[string]*domain.Book, len(asins))
	if len(asins) == 0 {
		return result, nil
	}

	args := make([]any, 0, len(asins)+1)
	for _, asin := range asins {
		args = append(args, asin)
	}
	args = append(args, time.Now().Add(-ttl))

	query := dbinterface.BuildQueryWithPlaceholders(
		"SELECT "+bookColumns+` FROM books WHERE asin IN %s
		AND updated_at >= ? AND series != '[]' AND series != ''`,
		len(asins), 1)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing books: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		result[b.ASIN] = b
	}

	return result, rows.Err()
}

// Upsert writes one book, preserving the downloaded flag of an existing row.
func (s *BookStore) Upsert(ctx context.Context, b *domain.Book) (*domain.Book, error) {
	if b == nil || strings.TrimSpace(b.ASIN) == "" {
		return nil, fmt.Errorf("book asin is required: %w", domain.ErrValidation)
	}

	var releaseDate any
	if b.ReleaseDate != nil {
		releaseDate = *b.ReleaseDate
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (asin, title, subtitle, authors, narrators, cover_url,
			release_date, runtime_min, series, series_index, genres, publisher,
			description, language, downloaded, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (asin) DO UPDATE SET
			title = excluded.title,
			subtitle = excluded.subtitle,
			authors = excluded.authors,
			narrators = excluded.narrators,
			cover_url = excluded.cover_url,
			release_date = excluded.release_date,
			runtime_min = excluded.runtime_min,
			series = excluded.series,
			series_index = excluded.series_index,
			genres = excluded.genres,
			publisher = excluded.publisher,
			description = excluded.description,
			language = excluded.language,
			updated_at = CURRENT_TIMESTAMP`,
		b.ASIN, b.Title, b.Subtitle, marshalList(b.Authors), marshalList(b.Narrators),
		b.CoverURL, releaseDate, b.RuntimeMin, marshalList(b.Series), b.SeriesIndex,
		marshalList(b.Genres), b.Publisher, b.Description, b.Language, b.Downloaded)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert book %s: %w", b.ASIN, err)
	}

	return s.Get(ctx, b.ASIN)
}

// UpsertMany merges the incoming records and returns the store-attached
// results, downloaded flags preserved.
func (s *BookStore) UpsertMany(ctx context.Context, books []*domain.Book) ([]*domain.Book, error) {
	merged := make([]*domain.Book, 0, len(books))
	for _, b := range books {
		m, err := s.Upsert(ctx, b)
		if err != nil {
			return nil, err
		}
		merged = append(merged, m)
	}
	return merged, nil
}

// SetDownloaded flips the downloaded flag. The metadata pipeline never
// clears it; only the processor sets it and only an admin action clears it.
func (s *BookStore) SetDownloaded(ctx context.Context, asin string, downloaded bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE books SET downloaded = ?, updated_at = CURRENT_TIMESTAMP WHERE asin = ?",
		downloaded, asin)
	if err != nil {
		return fmt.Errorf("failed to update downloaded flag for %s: %w", asin, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrBookNotFound
	}
	return nil
}

// CountDownloaded returns how many books are organized in the library.
func (s *BookStore) CountDownloaded(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books WHERE downloaded = 1").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count downloaded books: %w", err)
	}
	return n, nil
}

// DeleteStale removes books older than ttl that are neither referenced by a
// request nor flagged downloaded. Returns the number of rows reaped.
func (s *BookStore) DeleteStale(ctx context.Context, ttl time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM books
		WHERE updated_at < ?
		AND downloaded = 0
		AND asin NOT IN (SELECT asin FROM requests)`,
		time.Now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale books: %w", err)
	}
	return res.RowsAffected()
}
