// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/autobrr/audiobrr/internal/dbinterface"
	"github.com/autobrr/audiobrr/internal/domain"
)

var (
	ErrImportSessionNotFound = errors.New("import session not found")
	ErrImportItemNotFound    = errors.New("import item not found")
)

// ImportStore persists bulk import sessions and their items. Items cascade
// on session delete.
type ImportStore struct {
	db dbinterface.Querier
}

func NewImportStore(db dbinterface.Querier) *ImportStore {
	return &ImportStore{db: db}
}

const importSessionColumns = `id, root_path, username, status, error_msg, created_at, updated_at`

const importItemColumns = `id, session_id, source_path, detected_title, detected_author,
	detected_language, COALESCE(match_asin, ''), match_score, status, error_msg,
	created_at, updated_at`

func scanImportSession(row interface{ Scan(...any) error }) (*domain.ImportSession, error) {
	var s domain.ImportSession
	err := row.Scan(&s.ID, &s.RootPath, &s.Username, &s.Status, &s.ErrorMsg,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanImportItem(row interface{ Scan(...any) error }) (*domain.ImportItem, error) {
	var it domain.ImportItem
	err := row.Scan(&it.ID, &it.SessionID, &it.SourcePath, &it.DetectedTitle,
		&it.DetectedAuthor, &it.DetectedLanguage, &it.MatchASIN, &it.MatchScore,
		&it.Status, &it.ErrorMsg, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateSession starts a new session in the scanning state.
func (s *ImportStore) CreateSession(ctx context.Context, rootPath, username string) (*domain.ImportSession, error) {
	if strings.TrimSpace(rootPath) == "" {
		return nil, fmt.Errorf("root path is required: %w", domain.ErrValidation)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO import_sessions (root_path, username, status)
		VALUES (?, ?, ?)
		RETURNING `+importSessionColumns,
		rootPath, username, domain.ImportSessionScanning)

	session, err := scanImportSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create import session: %w", err)
	}
	return session, nil
}

// GetSession returns the session without its items.
func (s *ImportStore) GetSession(ctx context.Context, id int64) (*domain.ImportSession, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+importSessionColumns+" FROM import_sessions WHERE id = ?", id)

	session, err := scanImportSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrImportSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import session %d: %w", id, err)
	}
	return session, nil
}

// GetSessionWithItems returns the session with items attached, oldest first.
func (s *ImportStore) GetSessionWithItems(ctx context.Context, id int64) (*domain.ImportSession, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := s.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Items = items
	return session, nil
}

// ListSessions returns sessions newest first.
func (s *ImportStore) ListSessions(ctx context.Context) ([]*domain.ImportSession, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+importSessionColumns+" FROM import_sessions ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list import sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.ImportSession
	for rows.Next() {
		session, err := scanImportSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// SetSessionStatus records the session's pipeline position. errorMsg is only
// stored for the failed status.
func (s *ImportStore) SetSessionStatus(ctx context.Context, id int64, status domain.ImportSessionStatus, errorMsg string) error {
	if status != domain.ImportSessionFailed {
		errorMsg = ""
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE import_sessions
		SET status = ?, error_msg = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		status, errorMsg, id)
	if err != nil {
		return fmt.Errorf("failed to set import session %d status: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrImportSessionNotFound
	}
	return nil
}

// DeleteSession removes the session; items go with it via cascade.
func (s *ImportStore) DeleteSession(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM import_sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete import session %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrImportSessionNotFound
	}
	return nil
}

// AddItem records one detected book unit under the session.
func (s *ImportStore) AddItem(ctx context.Context, item *domain.ImportItem) (*domain.ImportItem, error) {
	if item.SessionID == 0 || strings.TrimSpace(item.SourcePath) == "" {
		return nil, fmt.Errorf("session id and source path are required: %w", domain.ErrValidation)
	}
	status := item.Status
	if status == "" {
		status = domain.ImportItemPending
	}

	var matchASIN any
	if item.MatchASIN != "" {
		matchASIN = item.MatchASIN
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO import_items (session_id, source_path, detected_title,
			detected_author, detected_language, match_asin, match_score, status, error_msg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+importItemColumns,
		item.SessionID, item.SourcePath, item.DetectedTitle, item.DetectedAuthor,
		item.DetectedLanguage, matchASIN, item.MatchScore, status, item.ErrorMsg)

	created, err := scanImportItem(row)
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return nil, ErrImportSessionNotFound
		}
		return nil, fmt.Errorf("failed to add import item: %w", err)
	}
	return created, nil
}

// GetItem returns one item by id.
func (s *ImportStore) GetItem(ctx context.Context, id int64) (*domain.ImportItem, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+importItemColumns+" FROM import_items WHERE id = ?", id)

	item, err := scanImportItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrImportItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import item %d: %w", id, err)
	}
	return item, nil
}

// ListItems returns the session's items oldest first.
func (s *ImportStore) ListItems(ctx context.Context, sessionID int64) ([]*domain.ImportItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+importItemColumns+" FROM import_items WHERE session_id = ? ORDER BY id",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list import items: %w", err)
	}
	defer rows.Close()

	var items []*domain.ImportItem
	for rows.Next() {
		item, err := scanImportItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListItemsByStatus returns the session's items in one status, oldest first.
func (s *ImportStore) ListItemsByStatus(ctx context.Context, sessionID int64, status domain.ImportItemStatus) ([]*domain.ImportItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+importItemColumns+` FROM import_items
		WHERE session_id = ? AND status = ? ORDER BY id`,
		sessionID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list import items by status: %w", err)
	}
	defer rows.Close()

	var items []*domain.ImportItem
	for rows.Next() {
		item, err := scanImportItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetItemMatch records the matcher's verdict for an item.
func (s *ImportStore) SetItemMatch(ctx context.Context, id int64, asin string, score float64, status domain.ImportItemStatus) error {
	var matchASIN any
	if asin != "" {
		matchASIN = asin
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE import_items
		SET match_asin = ?, match_score = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		matchASIN, score, status, id)
	if err != nil {
		return fmt.Errorf("failed to set import item %d match: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrImportItemNotFound
	}
	return nil
}

// SetItemStatus updates the item's status, with errorMsg kept only for the
// error status.
func (s *ImportStore) SetItemStatus(ctx context.Context, id int64, status domain.ImportItemStatus, errorMsg string) error {
	if status != domain.ImportItemError {
		errorMsg = ""
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE import_items
		SET status = ?, error_msg = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		status, errorMsg, id)
	if err != nil {
		return fmt.Errorf("failed to set import item %d status: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrImportItemNotFound
	}
	return nil
}
