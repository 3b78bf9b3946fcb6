// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist anywhere we
	// know how to look (database, metadata providers).
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates the caller supplied bad input. Wrap with a
	// cause via fmt.Errorf("...: %w", ErrValidation).
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateRequest indicates a request already exists for the same
	// (asin, username) pair.
	ErrDuplicateRequest = errors.New("request already exists")

	// ErrConflict covers delete-while-referenced and similar clashes.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyDownloaded indicates the book is already in the library.
	ErrAlreadyDownloaded = errors.New("book already downloaded")

	// ErrMisconfigured indicates required settings are missing or invalid.
	// API handlers map this to a response pointing at the settings page.
	ErrMisconfigured = errors.New("misconfigured")

	// ErrQuerying indicates a query for the same ASIN is already in flight.
	ErrQuerying = errors.New("query already in progress")
)
