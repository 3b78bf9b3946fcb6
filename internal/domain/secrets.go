// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "strings"

// RedactString masks a stored credential for API responses. The mask keeps
// the original length so clients can tell a value is set.
func RedactString(s string) string {
	if s == "" {
		return ""
	}
	return strings.Repeat("*", len(s))
}

// IsRedactedValue reports whether a value is a redaction mask. Settings
// updates skip such values so a round-tripped GET body cannot clobber the
// stored credential.
func IsRedactedValue(value string) bool {
	return value != "" && strings.Trim(value, "*") == ""
}
