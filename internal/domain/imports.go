// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "time"

type ImportSessionStatus string

const (
	ImportSessionScanning  ImportSessionStatus = "scanning"
	ImportSessionMatching  ImportSessionStatus = "matching"
	ImportSessionReview    ImportSessionStatus = "review"
	ImportSessionImporting ImportSessionStatus = "importing"
	ImportSessionCompleted ImportSessionStatus = "completed"
	ImportSessionFailed    ImportSessionStatus = "failed"
)

type ImportItemStatus string

const (
	ImportItemPending  ImportItemStatus = "pending"
	ImportItemMatched  ImportItemStatus = "matched"
	ImportItemNoMatch  ImportItemStatus = "no_match"
	ImportItemSkipped  ImportItemStatus = "skipped"
	ImportItemImported ImportItemStatus = "imported"
	ImportItemError    ImportItemStatus = "error"
)

// ImportSession tracks one bulk import run over a filesystem root.
type ImportSession struct {
	ID        int64               `json:"id"`
	RootPath  string              `json:"rootPath"`
	Username  string              `json:"username"`
	Status    ImportSessionStatus `json:"status"`
	ErrorMsg  string              `json:"errorMsg,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`

	// Items is attached by detail endpoints.
	Items []*ImportItem `json:"items,omitempty"`
}

// ImportItem is one detected book unit inside a session. SourcePath is either
// a single audio file or a directory holding the parts of one book.
type ImportItem struct {
	ID               int64            `json:"id"`
	SessionID        int64            `json:"sessionId"`
	SourcePath       string           `json:"sourcePath"`
	DetectedTitle    string           `json:"detectedTitle,omitempty"`
	DetectedAuthor   string           `json:"detectedAuthor,omitempty"`
	DetectedLanguage string           `json:"detectedLanguage,omitempty"`
	MatchASIN        string           `json:"matchAsin,omitempty"`
	MatchScore       float64          `json:"matchScore"`
	Status           ImportItemStatus `json:"status"`
	ErrorMsg         string           `json:"errorMsg,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`

	// Book is attached for matched items on detail endpoints.
	Book *Book `json:"book,omitempty"`
}
