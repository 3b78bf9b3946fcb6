// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizerCachesTransform(t *testing.T) {
	t.Parallel()

	callCount := 0
	n := NewNormalizer(time.Minute, func(s string) string {
		callCount++
		return Intern(strings.ToLower(s))
	})

	assert.Equal(t, "the final empire", n.Normalize("The Final Empire"))
	assert.Equal(t, 1, callCount)

	// Repeat lookup hits the cache, not the transform.
	assert.Equal(t, "the final empire", n.Normalize("The Final Empire"))
	assert.Equal(t, 1, callCount)

	// A different input transforms again.
	assert.Equal(t, "the well of ascension", n.Normalize("The Well of Ascension"))
	assert.Equal(t, 2, callCount)
}

func TestNormalizerClear(t *testing.T) {
	t.Parallel()

	callCount := 0
	n := NewNormalizer(time.Minute, func(s string) string {
		callCount++
		return InternNormalized(s)
	})

	assert.Equal(t, "brandon sanderson", n.Normalize("Brandon Sanderson"))
	assert.Equal(t, 1, callCount)

	n.Clear("Brandon Sanderson")

	assert.Equal(t, "brandon sanderson", n.Normalize("Brandon Sanderson"))
	assert.Equal(t, 2, callCount)
}

func TestNormalizeUnicode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"diacritics", "Amélie Nothomb", "Amelie Nothomb"},
		{"macron", "Shōgun", "Shogun"},
		{"nordic o", "Björk Guðmundsdóttir", "Bjork Gudmundsdottir"},
		{"ligature ae", "Ænema", "AEnema"},
		{"eszett", "Straße", "Strasse"},
		{"plain ascii unchanged", "The Eye of the World", "The Eye of the World"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, NormalizeUnicode(tt.input))
		})
	}
}

func TestNormalizeForMatching(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"colon subtitle", "Mistborn: The Final Empire", "mistborn the final empire"},
		{"brackets and dots", "The.Way.of.Kings [Unabridged]", "the way of kings unabridged"},
		{"diacritics fold", "Les Misérables", "les miserables"},
		{"collapsed whitespace", "  Oathbringer   (Stormlight 3)  ", "oathbringer stormlight 3"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, NormalizeForMatching(tt.input))
		})
	}
}

func TestNormalizeForMatchingEquatesReleaseAndCatalogTitles(t *testing.T) {
	t.Parallel()

	// A release title and the catalog title should land on the same
	// canonical form despite separators and casing.
	release := NormalizeForMatching("Mistborn.The.Final.Empire.Unabridged")
	catalog := NormalizeForMatching("Mistborn: The Final Empire (Unabridged)")

	assert.Equal(t, release, catalog)
}

func TestCompactForMatching(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "thefinalempire", CompactForMatching("The Final Empire"))
	assert.Equal(t,
		CompactForMatching("WarBreaker"),
		CompactForMatching("War Breaker"),
		"word boundaries are ignored")
}

func BenchmarkNormalizeForMatching(b *testing.B) {
	titles := []string{
		"Mistborn: The Final Empire",
		"The Way of Kings (The Stormlight Archive, Book 1)",
		"Les Misérables",
		"Shōgun",
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = NormalizeForMatching(titles[i%len(titles)])
	}
}
