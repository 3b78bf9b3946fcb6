// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package ranking

import (
	"strings"

	"github.com/moistari/rls"

	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/pkg/prowlarr"
)

// Filetype buckets used by the quality score.
const (
	FiletypeFLAC         = "flac"
	FiletypeM4B          = "m4b"
	FiletypeMP3          = "mp3"
	FiletypeUnknownAudio = "unknown_audio"
	FiletypeUnknown      = "unknown"
)

var audioHints = []string{"m4a", "aac", "ogg", "opus", "wav", "wma", "audiobook", "audio"}

// DetectFiletype buckets a source into a quality band. Enriched
// book_metadata wins; otherwise the release title is parsed and scanned.
func DetectFiletype(source prowlarr.Source) string {
	if source.BookMetadata != nil {
		if ft := normalizeFiletype(source.BookMetadata.Filetype); ft != FiletypeUnknown {
			return ft
		}
	}
	return filetypeFromTitle(source.Title)
}

func normalizeFiletype(raw string) string {
	switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "."))) {
	case "flac":
		return FiletypeFLAC
	case "m4b":
		return FiletypeM4B
	case "mp3":
		return FiletypeMP3
	case "m4a", "aac", "ogg", "opus", "wav", "wma":
		return FiletypeUnknownAudio
	default:
		return FiletypeUnknown
	}
}

func filetypeFromTitle(title string) string {
	r := rls.ParseString(title)
	for _, codec := range r.Audio {
		if ft := normalizeFiletype(codec); ft != FiletypeUnknown {
			return ft
		}
	}

	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "flac"):
		return FiletypeFLAC
	case strings.Contains(lower, "m4b"):
		return FiletypeM4B
	case strings.Contains(lower, "mp3"):
		return FiletypeMP3
	}
	for _, hint := range audioHints {
		if strings.Contains(lower, hint) {
			return FiletypeUnknownAudio
		}
	}
	return FiletypeUnknown
}

// impliedKbits derives the average bitrate a source implies for the book's
// runtime.
func impliedKbits(sizeBytes int64, runtimeSeconds int) float64 {
	if runtimeSeconds < 1 {
		runtimeSeconds = 1
	}
	return float64(sizeBytes) * 8 / 1000 / float64(runtimeSeconds)
}

// bandFor returns the configured bitrate window for a filetype bucket.
func bandFor(bands models.QualityBands, filetype string) models.QualityBand {
	switch filetype {
	case FiletypeFLAC:
		return bands.FLAC
	case FiletypeM4B:
		return bands.M4B
	case FiletypeMP3:
		return bands.MP3
	case FiletypeUnknownAudio:
		return bands.UnknownAudio
	default:
		return bands.Unknown
	}
}

// qualityScore is triangular over the band: 1 at the midpoint, 0 at the
// edges and outside.
func qualityScore(kbits float64, band models.QualityBand) float64 {
	if band.ToKbits <= band.FromKbits {
		return 0
	}
	if !band.Contains(kbits) {
		return 0
	}

	mid := float64(band.FromKbits+band.ToKbits) / 2
	halfWidth := float64(band.ToKbits-band.FromKbits) / 2

	score := 1 - abs(kbits-mid)/halfWidth
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
