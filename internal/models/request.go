// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/audiobrr/internal/dbinterface"
	"github.com/autobrr/audiobrr/internal/domain"
)

var ErrRequestNotFound = errors.New("request not found")

// RequestStore persists request rows. The (asin, username) pair is unique so
// a user cannot request the same book twice.
type RequestStore struct {
	db dbinterface.Querier
}

func NewRequestStore(db dbinterface.Querier) *RequestStore {
	return &RequestStore{db: db}
}

const requestColumns = `id, asin, username, COALESCE(torrent_hash, ''),
	download_progress, download_state, processing_status, created_at, updated_at`

func scanRequest(row interface{ Scan(...any) error }) (*domain.Request, error) {
	var r domain.Request
	err := row.Scan(&r.ID, &r.ASIN, &r.Username, &r.TorrentHash,
		&r.DownloadProgress, &r.DownloadState, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a pending request. A second request for the same (asin,
// username) returns domain.ErrDuplicateRequest.
func (s *RequestStore) Create(ctx context.Context, asin, username string) (*domain.Request, error) {
	if strings.TrimSpace(asin) == "" || strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("asin and username are required: %w", domain.ErrValidation)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO requests (asin, username, processing_status)
		VALUES (?, ?, ?)
		RETURNING `+requestColumns,
		asin, username, domain.StatusPending)

	r, err := scanRequest(row)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, domain.ErrDuplicateRequest
		}
		return nil, fmt.Errorf("failed to create request for %s: %w", asin, err)
	}
	return r, nil
}

// Get returns the request by id, or ErrRequestNotFound.
func (s *RequestStore) Get(ctx context.Context, id int64) (*domain.Request, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE id = ?", id)

	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request %d: %w", id, err)
	}
	return r, nil
}

// GetByASINUser returns the request for one user's ask of one book.
func (s *RequestStore) GetByASINUser(ctx context.Context, asin, username string) (*domain.Request, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE asin = ? AND username = ?",
		asin, username)

	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request for %s/%s: %w", asin, username, err)
	}
	return r, nil
}

// List returns requests newest first, optionally filtered by username, with
// their book rows attached.
func (s *RequestStore) List(ctx context.Context, username string) ([]*domain.Request, error) {
	query := "SELECT " + requestColumns + " FROM requests"
	var args []any
	if username != "" {
		query += " WHERE username = ?"
		args = append(args, username)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests, err := collectRequests(rows)
	if err != nil {
		return nil, err
	}

	if err := s.attachBooks(ctx, requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// ListActiveByASIN returns every non-failed request for a book. Used to
// decide whether another user's download already covers a new request.
func (s *RequestStore) ListActiveByASIN(ctx context.Context, asin string) ([]*domain.Request, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+requestColumns+` FROM requests
		WHERE asin = ? AND processing_status NOT LIKE 'failed:%'`, asin)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests for %s: %w", asin, err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// ListCandidates returns the requests the monitor should look at: book not
// yet downloaded, request past pending or already carrying a torrent hash,
// and not failed or completed.
func (s *RequestStore) ListCandidates(ctx context.Context) ([]*domain.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumnsPrefixed("r")+`
		FROM requests r
		JOIN books b ON b.asin = r.asin
		WHERE b.downloaded = 0
		AND (r.torrent_hash IS NOT NULL AND r.torrent_hash != '' OR r.processing_status != ?)
		AND r.processing_status NOT LIKE 'failed:%'
		AND r.processing_status != ?
		ORDER BY r.id`,
		domain.StatusPending, domain.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitor candidates: %w", err)
	}
	defer rows.Close()

	requests, err := collectRequests(rows)
	if err != nil {
		return nil, err
	}

	if err := s.attachBooks(ctx, requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func requestColumnsPrefixed(alias string) string {
	cols := []string{"id", "asin", "username", "COALESCE(torrent_hash, '')",
		"download_progress", "download_state", "processing_status", "created_at", "updated_at"}
	for i, c := range cols {
		if strings.HasPrefix(c, "COALESCE") {
			cols[i] = "COALESCE(" + alias + ".torrent_hash, '')"
			continue
		}
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func collectRequests(rows *sql.Rows) ([]*domain.Request, error) {
	var requests []*domain.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func (s *RequestStore) attachBooks(ctx context.Context, requests []*domain.Request) error {
	if len(requests) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(requests))
	asins := make([]string, 0, len(requests))
	for _, r := range requests {
		if _, ok := seen[r.ASIN]; ok {
			continue
		}
		seen[r.ASIN] = struct{}{}
		asins = append(asins, r.ASIN)
	}

	args := make([]any, len(asins))
	for i, a := range asins {
		args[i] = a
	}

	query := dbinterface.BuildQueryWithPlaceholders(
		"SELECT "+bookColumns+" FROM books WHERE asin IN %s", len(asins), 1)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load books for requests: %w", err)
	}
	defer rows.Close()

	books := make(map[string]*domain.Book, len(asins))
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return fmt.Errorf("failed to scan book: %w", err)
		}
		books[b.ASIN] = b
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range requests {
		r.Book = books[r.ASIN]
	}
	return nil
}

// SetStatus moves the request through the processing pipeline.
func (s *RequestStore) SetStatus(ctx context.Context, id int64, status domain.ProcessingStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE requests SET processing_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	if err != nil {
		return fmt.Errorf("failed to set request %d status: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// SetTorrentHash attaches the download to the request and marks dispatch.
func (s *RequestStore) SetTorrentHash(ctx context.Context, id int64, hash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET torrent_hash = ?, processing_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		strings.ToLower(hash), domain.StatusDownloadInitiated, id)
	if err != nil {
		return fmt.Errorf("failed to set request %d hash: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// HealTorrentHash backfills a hash discovered through the asin tag without
// touching the processing status.
func (s *RequestStore) HealTorrentHash(ctx context.Context, id int64, hash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET torrent_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		strings.ToLower(hash), id)
	if err != nil {
		return fmt.Errorf("failed to heal request %d hash: %w", id, err)
	}
	return nil
}

// SetDownloadProgress updates the client-observed progress and state string.
func (s *RequestStore) SetDownloadProgress(ctx context.Context, id int64, progress float64, state string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET download_progress = ?, download_state = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		progress, state, id)
	if err != nil {
		return fmt.Errorf("failed to set request %d progress: %w", id, err)
	}
	return nil
}

// ResetForRetry clears the download attachment and moves the request back to
// pending so the dispatch path runs again.
func (s *RequestStore) ResetForRetry(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET torrent_hash = NULL, download_progress = 0, download_state = '',
			processing_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		domain.StatusPending, id)
	if err != nil {
		return fmt.Errorf("failed to reset request %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// DeleteByASIN removes every user's request for a book and reports how many
// rows went away.
func (s *RequestStore) DeleteByASIN(ctx context.Context, asin string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM requests WHERE asin = ?", asin)
	if err != nil {
		return 0, fmt.Errorf("failed to delete requests for %s: %w", asin, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Delete removes the request row.
func (s *RequestStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM requests WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete request %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// CountByStatus aggregates request rows for the metrics collector. Failed
// statuses collapse into one "failed" bucket.
func (s *RequestStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT CASE WHEN processing_status LIKE 'failed:%' THEN 'failed'
			ELSE processing_status END AS bucket, COUNT(*)
		FROM requests GROUP BY bucket`)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var bucket string
		var n int64
		if err := rows.Scan(&bucket, &n); err != nil {
			return nil, err
		}
		counts[bucket] = n
	}
	return counts, rows.Err()
}

// OldestUpdatedBefore reports whether any active request has gone without an
// update for longer than age. Used by health checks to flag a stuck monitor.
func (s *RequestStore) OldestUpdatedBefore(ctx context.Context, age time.Duration) (bool, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM requests
		WHERE processing_status NOT LIKE 'failed:%'
		AND processing_status NOT IN (?, ?)
		AND updated_at < ?`,
		domain.StatusCompleted, domain.StatusPending, time.Now().Add(-age)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check stale requests: %w", err)
	}
	return n > 0, nil
}
