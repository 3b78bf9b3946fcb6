// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package ranking orders search results for a book. Unusable sources are
// dropped outright; the rest get a weighted score and a total tie-break so
// the result order is deterministic.
package ranking

import (
	"sort"
	"strings"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/pkg/fuzzcmp"
	"github.com/autobrr/audiobrr/pkg/prowlarr"
	"github.com/autobrr/audiobrr/pkg/stringutils"
)

const seederSaturation = 10.0

// RankedSource pairs a source with its computed score.
type RankedSource struct {
	prowlarr.Source
	Score float64 `json:"score"`
}

// Rank filters and orders sources for book. The input slice is not mutated.
func Rank(sources []prowlarr.Source, book *domain.Book, cfg models.RankingSettings) []RankedSource {
	ranked := make([]RankedSource, 0, len(sources))
	for _, src := range sources {
		if !usable(src, cfg) {
			continue
		}
		ranked = append(ranked, RankedSource{
			Source: src,
			Score:  score(src, book, cfg),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})
	return ranked
}

// usable applies the hard gates. Gated sources are dropped, not demoted.
func usable(src prowlarr.Source, cfg models.RankingSettings) bool {
	if src.Protocol == prowlarr.ProtocolTorrent && src.Seeders < cfg.MinSeeders {
		return false
	}
	if src.MagnetURL == "" && src.DownloadURL == "" {
		return false
	}
	if src.Size == 0 {
		return false
	}
	return true
}

func score(src prowlarr.Source, book *domain.Book, cfg models.RankingSettings) float64 {
	w := cfg.Weights
	return w.Quality*qualityComponent(src, book, cfg.Bands) +
		w.Seeders*seederComponent(src) +
		w.Flags*flagComponent(src, cfg.FlagScores) +
		w.Title*titleComponent(src, book, cfg)
}

func qualityComponent(src prowlarr.Source, book *domain.Book, bands models.QualityBands) float64 {
	filetype := DetectFiletype(src)
	kbits := impliedKbits(src.Size, int(book.RuntimeSeconds()))
	return qualityScore(kbits, bandFor(bands, filetype))
}

// seederComponent saturates so a handful of seeders is already most of the
// signal. Usenet has no swarm; the component is 0 there.
func seederComponent(src prowlarr.Source) float64 {
	if src.Protocol != prowlarr.ProtocolTorrent {
		return 0
	}
	s := float64(src.Seeders)
	return s / (s + seederSaturation)
}

// flagComponent sums configured flag bonuses and normalizes by the total
// configured score mass.
func flagComponent(src prowlarr.Source, flagScores []models.FlagScore) float64 {
	if len(flagScores) == 0 {
		return 0
	}

	var total, got float64
	for _, fs := range flagScores {
		if fs.Score <= 0 {
			continue
		}
		total += fs.Score
		for _, f := range src.IndexerFlags {
			if f == fs.Flag {
				got += fs.Score
				break
			}
		}
	}
	if total == 0 {
		return 0
	}
	return got / total
}

// titleComponent averages the affinities between the release title and the
// book title, and between the enriched metadata title and the book title.
// An affinity below its configured ratio floor counts as 0.
func titleComponent(src prowlarr.Source, book *domain.Book, cfg models.RankingSettings) float64 {
	bookTitle := stringutils.NormalizeForMatching(book.Title)
	if bookTitle == "" {
		return 0
	}

	name := affinity(stringutils.NormalizeForMatching(src.Title), bookTitle, cfg.NameExistsRatio)

	if src.BookMetadata == nil || src.BookMetadata.Title == "" {
		return name
	}

	meta := affinity(stringutils.NormalizeForMatching(src.BookMetadata.Title), bookTitle, cfg.TitleExistsRatio)
	return (name + meta) / 2
}

func affinity(a, b string, floor int) float64 {
	if a == "" || b == "" {
		return 0
	}
	ratio := fuzzcmp.TokenSetRatio(a, b)
	if ratio < floor {
		return 0
	}
	return float64(ratio) / 100
}

// less is the total order: score desc, torrent before usenet, seeders desc,
// newer publish date, smaller size, then GUID for full determinism.
func less(a, b RankedSource) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Protocol != b.Protocol {
		return a.Protocol == prowlarr.ProtocolTorrent
	}
	if a.Seeders != b.Seeders {
		return a.Seeders > b.Seeders
	}
	if !a.PublishDate.Equal(b.PublishDate) {
		return a.PublishDate.After(b.PublishDate)
	}
	if a.Size != b.Size {
		return a.Size < b.Size
	}
	return strings.Compare(a.GUID, b.GUID) < 0
}
