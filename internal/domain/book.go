// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"regexp"
	"strings"
	"time"
)

// Book is the normalized audiobook record shared by the metadata client, the
// store, and the processor. ASIN is the primary key.
type Book struct {
	ASIN        string     `json:"asin"`
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle,omitempty"`
	Authors     []string   `json:"authors"`
	Narrators   []string   `json:"narrators"`
	CoverURL    string     `json:"coverUrl,omitempty"`
	ReleaseDate *time.Time `json:"releaseDate,omitempty"`
	RuntimeMin  int        `json:"runtimeMin"`
	Series      []string   `json:"series,omitempty"`
	SeriesIndex string     `json:"seriesIndex,omitempty"`
	Genres      []string   `json:"genres,omitempty"`
	Publisher   string     `json:"publisher,omitempty"`
	Description string     `json:"description,omitempty"`
	Language    string     `json:"language,omitempty"`
	Downloaded  bool       `json:"downloaded"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

var asinRe = regexp.MustCompile(`^[A-Z0-9]{10}$`)

// ValidASIN reports whether s looks like a 10-char alphanumeric ASIN.
func ValidASIN(s string) bool {
	return asinRe.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}

// FirstAuthor returns the first author or "Unknown".
func (b *Book) FirstAuthor() string {
	if len(b.Authors) > 0 && strings.TrimSpace(b.Authors[0]) != "" {
		return b.Authors[0]
	}
	return "Unknown"
}

// ReleaseYear returns the four-digit release year or "Unknown".
func (b *Book) ReleaseYear() string {
	if b.ReleaseDate == nil || b.ReleaseDate.IsZero() {
		return "Unknown"
	}
	return b.ReleaseDate.Format("2006")
}

// SeriesDisplay renders "<series> #<index>" when both are present, the bare
// series name when only the name is, and "" otherwise. Series entries that
// already embed " #<index>" are returned as-is.
func (b *Book) SeriesDisplay() string {
	if len(b.Series) == 0 {
		return ""
	}
	name := strings.TrimSpace(b.Series[0])
	if name == "" {
		return ""
	}
	if strings.Contains(name, " #") || b.SeriesIndex == "" {
		return name
	}
	return name + " #" + b.SeriesIndex
}

// RuntimeSeconds returns the runtime in seconds, never below 1 so bitrate
// math cannot divide by zero.
func (b *Book) RuntimeSeconds() int64 {
	s := int64(b.RuntimeMin) * 60
	if s < 1 {
		return 1
	}
	return s
}
