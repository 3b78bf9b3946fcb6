// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pathutil provides filesystem-safe path segment helpers used when
// interpolating book fields into folder and file patterns.
package pathutil

import "strings"

// illegal characters stripped from interpolated segments. Matches the set
// rejected by both Windows and the library layout contract.
const illegalChars = `<>:"/\|?*`

// windowsReserved device names cannot be used as file or directory names on
// Windows regardless of extension.
var windowsReserved = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizePathSegment makes a single path segment safe for use on any
// filesystem: illegal characters are removed silently, trailing dots and
// spaces are trimmed, Windows reserved device names are prefixed with an
// underscore, and an empty result becomes "_".
func SanitizePathSegment(segment string) string {
	var b strings.Builder
	b.Grow(len(segment))
	for _, r := range segment {
		if strings.ContainsRune(illegalChars, r) {
			continue
		}
		b.WriteRune(r)
	}

	cleaned := strings.TrimRight(b.String(), ". ")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return "_"
	}

	if _, reserved := windowsReserved[strings.ToUpper(cleaned)]; reserved {
		return "_" + cleaned
	}

	return cleaned
}
