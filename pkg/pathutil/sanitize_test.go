// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pathutil

import (
	"testing"
)

func TestSanitizePathSegment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple title",
			input:    "Quiet",
			expected: "Quiet",
		},
		{
			name:     "title with spaces",
			input:    "The Final Empire",
			expected: "The Final Empire",
		},
		{
			name:     "strips illegal chars",
			input:    "Title<>:\"/\\|?*Name",
			expected: "TitleName",
		},
		{
			name:     "author with colon subtitle",
			input:    "Mistborn: The Final Empire",
			expected: "Mistborn The Final Empire",
		},
		{
			name:     "removes trailing dots",
			input:    "Jr...",
			expected: "Jr",
		},
		{
			name:     "removes trailing spaces",
			input:    "Sanderson   ",
			expected: "Sanderson",
		},
		{
			name:     "Windows reserved name CON",
			input:    "CON",
			expected: "_CON",
		},
		{
			name:     "Windows reserved name COM1",
			input:    "COM1",
			expected: "_COM1",
		},
		{
			name:     "case insensitive reserved name",
			input:    "con",
			expected: "_con",
		},
		{
			name:     "reserved name not alone",
			input:    "CONtact",
			expected: "CONtact",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "_",
		},
		{
			name:     "all illegal chars",
			input:    "<>:\"/\\|?*",
			expected: "_",
		},
		{
			name:     "series with hash marker preserved",
			input:    "The Stormlight Archive #4",
			expected: "The Stormlight Archive #4",
		},
		{
			name:     "unicode characters preserved",
			input:    "ナルニア国物語",
			expected: "ナルニア国物語",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizePathSegment(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizePathSegment(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
