// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// unicodeNormalizer caches NFKD results; import matching hits the same
	// titles repeatedly across candidate queries.
	unicodeNormalizer = NewNormalizer(defaultNormalizerTTL, normalizeUnicodeInner)

	matchingNormalizer = NewNormalizer(defaultNormalizerTTL, normalizeForMatchingInner)

	compactNormalizer = NewNormalizer(defaultNormalizerTTL, compactInner)
)

func normalizeUnicodeInner(s string) string {
	// Letters NFKD does not decompose to ASCII (distinct letters in
	// Nordic/Germanic alphabets, not composed characters).
	s = strings.ReplaceAll(s, "æ", "ae")
	s = strings.ReplaceAll(s, "Æ", "AE")
	s = strings.ReplaceAll(s, "œ", "oe")
	s = strings.ReplaceAll(s, "Œ", "OE")
	s = strings.ReplaceAll(s, "ø", "o")
	s = strings.ReplaceAll(s, "Ø", "O")
	s = strings.ReplaceAll(s, "ß", "ss")
	s = strings.ReplaceAll(s, "ð", "d")
	s = strings.ReplaceAll(s, "Ð", "D")
	s = strings.ReplaceAll(s, "þ", "th")
	s = strings.ReplaceAll(s, "Þ", "TH")

	// transform.Chain is not safe for concurrent reuse; build per call.
	// The normalizer cache keeps repeated inputs from paying this twice.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

func normalizeForMatchingInner(s string) string {
	s = unicodeNormalizer.Normalize(s)
	s = strings.ToLower(strings.TrimSpace(s))

	// punctuation becomes space, then whitespace collapses
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return Intern(strings.Join(strings.Fields(b.String()), " "))
}

func compactInner(s string) string {
	return Intern(strings.ReplaceAll(normalizeForMatchingInner(s), " ", ""))
}

// NormalizeUnicode removes diacritics and decomposes ligatures with caching.
// Examples: "Shōgun" → "Shogun", "Amélie" → "Amelie", "Björk" → "Bjork".
func NormalizeUnicode(s string) string {
	return unicodeNormalizer.Normalize(s)
}

// NormalizeForMatching applies the canonical matching form: unicode
// normalization, lowercase, punctuation to spaces, collapsed whitespace.
// "Mistborn: The Final Empire" → "mistborn the final empire".
func NormalizeForMatching(s string) string {
	return matchingNormalizer.Normalize(s)
}

// CompactForMatching is NormalizeForMatching with the spaces removed, for
// scorers that should ignore word boundaries entirely.
func CompactForMatching(s string) string {
	return compactNormalizer.Normalize(s)
}
