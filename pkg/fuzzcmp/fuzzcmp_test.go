// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fuzzcmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	assert.Equal(t, 100, Ratio("mistborn", "mistborn"))
	assert.Equal(t, 100, Ratio("", ""))
	assert.Equal(t, 0, Ratio("abcd", "wxyz"))

	score := Ratio("the final empire", "the final empyre")
	assert.Greater(t, score, 85)
	assert.Less(t, score, 100)
}

func TestPartialRatio(t *testing.T) {
	// substring of a longer title should score perfectly
	assert.Equal(t, 100, PartialRatio("mistborn", "mistborn the final empire"))

	// order of arguments does not matter
	assert.Equal(t,
		PartialRatio("quiet", "quiet the power of introverts"),
		PartialRatio("quiet the power of introverts", "quiet"))
}

func TestTokenSortRatio(t *testing.T) {
	assert.Equal(t, 100, TokenSortRatio("empire final the", "the final empire"))
	assert.Greater(t, TokenSortRatio("sanderson brandon", "brandon sanderson"), 99)
}

func TestTokenSetRatio(t *testing.T) {
	// extra tokens on one side are forgiven
	score := TokenSetRatio("the final empire", "the final empire unabridged m4b")
	assert.Equal(t, 100, score)
}

func TestWRatioBounds(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"", ""},
		{"mistborn", ""},
		{"a very long audiobook title with many words", "short"},
		{"identical", "identical"},
	}
	for _, tt := range tests {
		score := WRatio(tt.a, tt.b)
		assert.GreaterOrEqual(t, score, 0)
		assert.LessOrEqual(t, score, 100)
	}
}

func TestWRatioPrefersBestScorer(t *testing.T) {
	// reordered plus extra words: token scorers should carry it
	score := WRatio("final empire the", "the final empire a mistborn novel")
	assert.Greater(t, score, 80)
}
