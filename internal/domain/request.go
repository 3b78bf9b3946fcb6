// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "time"

// Request is one user's standing ask for a book. The pair (ASIN, Username)
// is unique; torrent hash and progress track the acquisition attached to it.
type Request struct {
	ID               int64            `json:"id"`
	ASIN             string           `json:"asin"`
	Username         string           `json:"username"`
	TorrentHash      string           `json:"torrentHash,omitempty"`
	DownloadProgress float64          `json:"downloadProgress"`
	DownloadState    string           `json:"downloadState,omitempty"`
	Status           ProcessingStatus `json:"status"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`

	// Book is attached by list endpoints; never persisted on the request row.
	Book *Book `json:"book,omitempty"`
}
