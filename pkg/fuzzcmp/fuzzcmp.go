// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package fuzzcmp provides fuzzywuzzy-style similarity scores in [0,100]
// built on Levenshtein distance. The import matcher combines several of
// these scorers and keeps the maximum, so each scorer only has to be good
// at one failure mode (reordering, substrings, noise words).
package fuzzcmp

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Ratio is the plain normalized Levenshtein similarity of a and b.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 100
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	score := 100 - (100*dist)/longest
	if score < 0 {
		return 0
	}
	return score
}

// PartialRatio scores the best matching window of the longer string against
// the shorter one, so "mistborn" still scores high against
// "mistborn the final empire".
func PartialRatio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return Ratio(a, b)
	}
	shorter, longer := ra, rb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == len(longer) {
		return Ratio(string(shorter), string(longer))
	}

	best := 0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		window := string(longer[i : i+len(shorter)])
		if score := Ratio(string(shorter), window); score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

// TokenSortRatio compares the strings with their tokens sorted, neutralizing
// word order ("empire final the" vs "the final empire").
func TokenSortRatio(a, b string) int {
	return Ratio(sortTokens(a), sortTokens(b))
}

// TokenSetRatio compares intersection and differences of the token sets,
// which tolerates extra words on either side.
func TokenSetRatio(a, b string) int {
	ta, tb := tokenSet(a), tokenSet(b)

	var common, onlyA, onlyB []string
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			common = append(common, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tb {
		if _, ok := ta[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	combinedA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := Ratio(base, combinedA)
	if s := Ratio(base, combinedB); s > best {
		best = s
	}
	if s := Ratio(combinedA, combinedB); s > best {
		best = s
	}
	return best
}

// WRatio is a weighted blend in the spirit of fuzzywuzzy's WRatio: the plain
// ratio, with partial and token scorers scaled down when the lengths differ
// a lot, keeping the maximum.
func WRatio(a, b string) int {
	base := Ratio(a, b)

	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return base
	}

	longer, shorter := la, lb
	if shorter > longer {
		longer, shorter = shorter, longer
	}

	partialScale := 0.9
	if longer > 8*shorter {
		partialScale = 0.6
	}

	best := float64(base)
	if s := float64(PartialRatio(a, b)) * partialScale; s > best {
		best = s
	}
	if s := float64(TokenSortRatio(a, b)) * 0.95; s > best {
		best = s
	}
	if s := float64(TokenSetRatio(a, b)) * 0.95; s > best {
		best = s
	}
	return int(best)
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}
