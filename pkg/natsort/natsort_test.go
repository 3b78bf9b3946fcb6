// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package natsort

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrings(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "cd parts",
			input:    []string{"cd10.mp3", "cd2.mp3", "cd1.mp3"},
			expected: []string{"cd1.mp3", "cd2.mp3", "cd10.mp3"},
		},
		{
			name:     "zero padded and bare mix",
			input:    []string{"Part 11.m4a", "Part 2.m4a", "Part 01.m4a"},
			expected: []string{"Part 01.m4a", "Part 2.m4a", "Part 11.m4a"},
		},
		{
			name:     "case insensitive",
			input:    []string{"Chapter 3.mp3", "chapter 12.mp3", "chapter 2.mp3"},
			expected: []string{"chapter 2.mp3", "Chapter 3.mp3", "chapter 12.mp3"},
		},
		{
			name:     "plain strings",
			input:    []string{"b", "a", "c"},
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "embedded multi digit",
			input:    []string{"disc1track10.flac", "disc1track9.flac", "disc1track1.flac"},
			expected: []string{"disc1track1.flac", "disc1track9.flac", "disc1track10.flac"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := append([]string(nil), tt.input...)
			Strings(s)
			assert.Equal(t, tt.expected, s)
		})
	}
}

func TestLessTotalOrder(t *testing.T) {
	// equal strings are not less than each other
	assert.False(t, Less("cd1.mp3", "cd1.mp3"))

	// antisymmetry
	assert.True(t, Less("cd1.mp3", "cd2.mp3"))
	assert.False(t, Less("cd2.mp3", "cd1.mp3"))

	// leading zeros tie-break stays deterministic
	a, b := "part01.mp3", "part1.mp3"
	assert.NotEqual(t, Less(a, b), Less(b, a))
}
