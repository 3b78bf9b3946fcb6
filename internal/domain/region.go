// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "strings"

// regionTLDs maps lowercase two-letter region codes to the Audible TLD used
// when constructing provider URLs.
var regionTLDs = map[string]string{
	"us": ".com",
	"ca": ".ca",
	"uk": ".co.uk",
	"au": ".com.au",
	"fr": ".fr",
	"de": ".de",
	"jp": ".co.jp",
	"it": ".it",
	"in": ".in",
	"es": ".es",
	"br": ".com.br",
}

const DefaultRegion = "us"

// NormalizeRegion lowercases and validates a region code, falling back to
// "us" for unknown or empty codes.
func NormalizeRegion(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if _, ok := regionTLDs[code]; ok {
		return code
	}
	return DefaultRegion
}

// RegionTLD returns the TLD for a region code, defaulting to ".com".
func RegionTLD(code string) string {
	return regionTLDs[NormalizeRegion(code)]
}

// KnownRegion reports whether code is a recognized region.
func KnownRegion(code string) bool {
	_, ok := regionTLDs[strings.ToLower(strings.TrimSpace(code))]
	return ok
}
