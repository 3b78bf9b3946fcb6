// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"regexp"
	"strings"
	"time"

	"github.com/autobrr/audiobrr/pkg/stringutils"
)

// Release-name cleanup patterns. These target audiobook rips specifically:
// part markers, bitrate tags, bracketed narrators, and scene noise words.
var (
	audioExtRe    = regexp.MustCompile(`(?i)\.(m4b|mp3|m4a|flac|wav|ogg|opus|aac|wma)$`)
	adTagRe       = regexp.MustCompile(`(?i)\bAD\d+\b`)
	bitrateRe     = regexp.MustCompile(`@\d+`)
	parenRe       = regexp.MustCompile(`\(([^)]+)\)`)
	bracketRe     = regexp.MustCompile(`\[([^\]]+)\]`)
	curlyRe       = regexp.MustCompile(`\{[^\}]+\}`)
	noiseWordRe   = regexp.MustCompile(`(?i)\b(unabridged|abridged|audiobook|hq|kbps|aac|mp3|m4b|m4a|flac|dramatisation|dramatized|full\s*cast|bbc|read by|narrated by|ger|french|german|buch|level|U)\b`)
	partMarkerRe  = regexp.MustCompile(`(?i)\b(chp|chapter|part|pt|disc|cd|volume|vol|v|track|level|buch|book)\s*\d+\b`)
	chapterPartRe = regexp.MustCompile(`(?i)\bc\d+p\d+\b`)
	cpMarkerRe    = regexp.MustCompile(`(?i)\b[cp]\d+\b`)
	leadDigitsRe  = regexp.MustCompile(`^\s*\d+[\s\-]+`)
	trailDigitsRe = regexp.MustCompile(`[\s\-]+\d+\s*$`)
	spacesRe      = regexp.MustCompile(`\s+`)

	nonAlnumSpaceRe = regexp.MustCompile(`[^a-z0-9]+`)
	nonAlnumRe      = regexp.MustCompile(`[^a-z0-9]`)

	garbagePrefixRe = regexp.MustCompile(`(?i)^MI[0-9A-Z~]{5,}`)
	allDigitsRe     = regexp.MustCompile(`^\d+$`)

	buchRe     = regexp.MustCompile(`(?i)\bbuch\b`)
	langTagRe  = regexp.MustCompile(`(?i)[\[\(_\s](ger|german|de|fre|french|fr|ita|italian|it|spa|spanish|es|jpn|japanese|jp)[\]\)_\s]`)
	asinPathRe = regexp.MustCompile(`(?i)(?:^|[^A-Z0-9])(B0[A-Za-z0-9]{8})(?:$|[^A-Za-z0-9])`)

	authorSplitRe = regexp.MustCompile(`(?i)\s*(?:,|&| and )\s*`)
	titleByRe     = regexp.MustCompile(`(?i)\s+by\s+`)
)

// normalizer caches normalized forms; the matcher hits the same titles and
// author names across every candidate result.
var normalizer = stringutils.NewNormalizer(10*time.Minute, func(s string) string {
	return stringutils.Intern(normalizeTextUncached(s))
})

// cleanString strips extensions, technical noise, part markers, and stray
// numbering from a release name, leaving something resembling a title.
func cleanString(name string) string {
	if name == "" {
		return ""
	}
	name = audioExtRe.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, ".", " ")
	name = adTagRe.ReplaceAllString(name, "")
	name = bitrateRe.ReplaceAllString(name, "")
	name = parenRe.ReplaceAllString(name, " $1 ")
	name = bracketRe.ReplaceAllString(name, " $1 ")
	name = curlyRe.ReplaceAllString(name, "")
	name = noiseWordRe.ReplaceAllString(name, "")
	name = partMarkerRe.ReplaceAllString(name, "")
	name = chapterPartRe.ReplaceAllString(name, "")
	name = cpMarkerRe.ReplaceAllString(name, "")
	name = leadDigitsRe.ReplaceAllString(name, "")
	name = trailDigitsRe.ReplaceAllString(name, "")
	return strings.TrimSpace(spacesRe.ReplaceAllString(name, " "))
}

func normalizeTextUncached(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ToLower(cleanString(text))
	text = strings.ReplaceAll(text, "&", " and ")
	text = nonAlnumSpaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(spacesRe.ReplaceAllString(text, " "))
}

// normalizeText is the cached comparison form: cleaned, lowercased,
// alphanumeric words only.
func normalizeText(text string) string {
	return normalizer.Normalize(text)
}

// compactText removes even the spaces, for matching squashed release names.
func compactText(text string) string {
	return nonAlnumRe.ReplaceAllString(normalizeText(text), "")
}

// looksLikeGarbage detects 8.3-style mangled names like MI20D0~1.MP3.
func looksLikeGarbage(name string) bool {
	if garbagePrefixRe.MatchString(name) {
		return true
	}
	return strings.Contains(name, "~") && len(name) < 13
}

// parseName splits "Author - Title" shapes. A short or numeric third segment
// is treated as trailing noise and dropped.
func parseName(name string) (author, title string) {
	clean := cleanString(name)
	if !strings.Contains(clean, " - ") {
		return "", clean
	}

	var parts []string
	for _, p := range strings.Split(clean, " - ") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) >= 3 {
		last := parts[len(parts)-1]
		if allDigitsRe.MatchString(last) || len(last) < 4 || strings.Contains(strings.ToLower(last), "kbps") {
			parts = parts[:len(parts)-1]
		}
	}

	switch {
	case len(parts) >= 2:
		return parts[0], parts[1]
	case len(parts) == 1:
		return "", parts[0]
	}
	return "", clean
}

// detectLanguage sniffs (GER), [french], buch-style markers out of a name and
// returns a two-letter code, or "".
func detectLanguage(text string) string {
	if text == "" {
		return ""
	}
	if buchRe.MatchString(text) {
		return "de"
	}
	m := langTagRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	switch strings.ToLower(m[1]) {
	case "ger", "german", "de":
		return "de"
	case "fre", "french", "fr":
		return "fr"
	case "ita", "italian", "it":
		return "it"
	case "spa", "spanish", "es":
		return "es"
	case "jpn", "japanese", "jp":
		return "jp"
	}
	return ""
}

// languageName maps a detected code to the query hint appended to searches.
func languageName(code string) string {
	switch code {
	case "de":
		return "German"
	case "fr":
		return "French"
	case "it":
		return "Italian"
	case "es":
		return "Spanish"
	}
	return ""
}

// extractASIN pulls an embedded B0-prefixed ASIN out of a path.
func extractASIN(text string) string {
	m := asinPathRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// dedupeCandidates drops empty, tiny, and normalized-duplicate entries while
// keeping order.
func dedupeCandidates(values []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if len(v) < 2 {
			continue
		}
		key := normalizeText(v)
		if key == "" {
			key = strings.ToLower(v)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// splitAuthors breaks multi-author strings on commas, ampersands, and " and ".
func splitAuthors(values []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range authorSplitRe.Split(v, -1) {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return dedupeCandidates(out)
}
