// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package natsort implements natural ("version-aware") string ordering so
// that cd2.mp3 sorts before cd10.mp3.
package natsort

import (
	"sort"
	"strings"
	"unicode"
)

// Less compares a and b treating runs of digits as numbers. Comparison is
// case-insensitive; ties fall back to plain string order so the ordering
// stays total.
func Less(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	i, j := 0, 0
	for i < len(la) && j < len(lb) {
		ca, cb := rune(la[i]), rune(lb[j])

		if unicode.IsDigit(ca) && unicode.IsDigit(cb) {
			// consume both digit runs
			si := i
			for i < len(la) && unicode.IsDigit(rune(la[i])) {
				i++
			}
			sj := j
			for j < len(lb) && unicode.IsDigit(rune(lb[j])) {
				j++
			}
			na := strings.TrimLeft(la[si:i], "0")
			nb := strings.TrimLeft(lb[sj:j], "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}

		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	if len(la)-i != len(lb)-j {
		return len(la)-i < len(lb)-j
	}
	return a < b
}

// Strings sorts s in natural order, in place.
func Strings(s []string) {
	sort.SliceStable(s, func(i, j int) bool {
		return Less(s[i], s[j])
	})
}
