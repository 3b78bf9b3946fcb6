// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package fsutil answers filesystem-topology questions for the processor's
// transfer logic.
package fsutil

import (
	"errors"
	"fmt"
	"os"
)

// SameFilesystem reports whether both paths live on one filesystem.
// Hardlinks cannot span filesystems, so the processor asks before linking
// a download into the library and copies when the answer is no.
//
// Unix compares stat(2) device IDs; Windows compares volume serials. Both
// paths must exist.
func SameFilesystem(path1, path2 string) (bool, error) {
	if path1 == "" || path2 == "" {
		return false, errors.New("path must not be empty")
	}
	if _, err := os.Stat(path1); err != nil {
		return false, fmt.Errorf("path does not exist: %s: %w", path1, err)
	}
	if _, err := os.Stat(path2); err != nil {
		return false, fmt.Errorf("path does not exist: %s: %w", path2, err)
	}
	return sameFilesystem(path1, path2)
}
