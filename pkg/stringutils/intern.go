// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package stringutils provides cached string normalization used by the
// import matcher and ranking engine. Interning via Go's unique package keeps
// repeated normalized titles, author names, and flags deduplicated in memory.
package stringutils

import (
	"strings"
	"unique"
)

// Intern returns a canonical representation of the string. Identical strings
// share the same underlying memory.
func Intern(s string) string {
	if s == "" {
		return ""
	}
	return unique.Make(s).Value()
}

// InternNormalized interns a trimmed and lowercased version of the string.
// This is the canonical form for case-insensitive matching.
func InternNormalized(s string) string {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return ""
	}
	return unique.Make(normalized).Value()
}
