// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/pkg/fuzzcmp"
)

const (
	maxSearchQueries  = 6
	maxResultsPerTerm = 20
	acceptThreshold   = 60.0
)

// MetadataClient is the slice of the metadata service the matcher needs.
type MetadataClient interface {
	GetBook(ctx context.Context, asin, region string) (*domain.Book, error)
	SearchBooks(ctx context.Context, query, region string) ([]*domain.Book, error)
}

// MatchResult is the matcher's verdict for one import item.
type MatchResult struct {
	ASIN    string
	Score   float64
	Matched bool
}

// Matcher resolves scanned book units to catalog entries: a direct ASIN hit
// from the path when possible, fuzzy title/author search otherwise.
type Matcher struct {
	metadata MetadataClient
}

func NewMatcher(metadata MetadataClient) *Matcher {
	return &Matcher{metadata: metadata}
}

// Match scores item against the catalog. language, when detected by the
// scanner, narrows the search region and seasons the queries.
func (m *Matcher) Match(ctx context.Context, item *domain.ImportItem, language string) (MatchResult, error) {
	titles, authors := buildCandidates(item)

	// Fast path: an ASIN embedded in the path is near-certain.
	if asin := extractASIN(item.SourcePath); asin != "" {
		book, err := m.metadata.GetBook(ctx, asin, language)
		if err != nil {
			log.Warn().Err(err).Str("asin", asin).Msg("[IMPORT] path ASIN lookup failed")
		}
		if book != nil {
			score := 0.98
			if isExactMatch(titles, authors, book) {
				score = 1.0
			}
			return MatchResult{ASIN: book.ASIN, Score: score, Matched: true}, nil
		}
	}

	queries := buildQueries(titles, authors)
	if len(queries) == 0 {
		return MatchResult{}, nil
	}

	region := ""
	if domain.KnownRegion(language) {
		region = language
	}

	scoreTitles := titles
	var best *domain.Book
	var bestScore float64
	seen := make(map[string]struct{})

	for _, q := range queries {
		query := q
		if name := languageName(language); name != "" && !strings.Contains(strings.ToLower(q), strings.ToLower(name)) {
			query = q + " " + name
		}

		results, err := m.metadata.SearchBooks(ctx, query, region)
		if err != nil {
			log.Debug().Err(err).Str("query", query).Msg("[IMPORT] candidate search failed")
			continue
		}
		if len(results) > maxResultsPerTerm {
			results = results[:maxResultsPerTerm]
		}

		if len(scoreTitles) == 0 {
			scoreTitles = []string{q}
		}

		for _, book := range results {
			if _, dup := seen[book.ASIN]; dup {
				continue
			}
			seen[book.ASIN] = struct{}{}

			score := scoreCandidate(scoreTitles, authors, book)
			if score > bestScore {
				bestScore, best = score, book
			}
		}
	}

	if best == nil || bestScore <= acceptThreshold {
		return MatchResult{}, nil
	}

	score := bestScore / 100.0
	if isExactMatch(titles, authors, best) {
		score = 1.0
	} else if score > 0.99 {
		score = 0.99
	}
	return MatchResult{ASIN: best.ASIN, Score: score, Matched: true}, nil
}

// buildCandidates derives title and author guesses for an item from the
// scanner's detection plus the surrounding path segments.
func buildCandidates(item *domain.ImportItem) (titles, authors []string) {
	first := strings.SplitN(item.SourcePath, "|", 2)[0]
	folderClean := cleanString(filepath.Base(filepath.Dir(first)))
	fileClean := cleanString(filepath.Base(first))

	var extraTitle, extraAuthor string
	if parts := titleByRe.Split(item.DetectedTitle, 2); len(parts) == 2 {
		extraTitle, extraAuthor = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}

	titles = dedupeCandidates([]string{item.DetectedTitle, extraTitle, folderClean, fileClean})
	authors = dedupeCandidates([]string{item.DetectedAuthor, extraAuthor})
	return titles, authors
}

// buildQueries produces up to six de-duplicated search terms: bare titles,
// then author+title permutations.
func buildQueries(titles, authors []string) []string {
	var queries []string
	queries = append(queries, titles...)
	if len(authors) > 0 && len(titles) > 0 {
		for _, a := range authors {
			for _, t := range titles {
				queries = append(queries, a+" "+t, t+" "+a)
			}
		}
	} else if len(authors) > 0 {
		queries = append(queries, authors...)
	}

	queries = dedupeCandidates(queries)
	var out []string
	for _, q := range queries {
		if len(q) < 3 {
			continue
		}
		out = append(out, q)
		if len(out) == maxSearchQueries {
			break
		}
	}
	return out
}

// scoreCandidate blends title and author similarity into [0,100].
func scoreCandidate(titles, authors []string, book *domain.Book) float64 {
	variants := titleVariants(book)

	tScore := 0.0
	for _, t := range titles {
		for _, v := range variants {
			if s := scoreTextPair(t, v); s > tScore {
				tScore = s
			}
		}
	}

	// Penalize much-shorter catalog titles so "It" does not swallow
	// "It Ends With Us".
	refLen := 0
	for _, t := range titles {
		if l := len(normalizeText(t)); l > refLen {
			refLen = l
		}
	}
	bookLen := len(normalizeText(book.Title))
	if refLen > 0 && bookLen > 0 && float64(bookLen) < float64(refLen)*0.7 {
		tScore -= float64(refLen-bookLen) * 1.5
	}

	// First-word agreement is a cheap strong signal.
	if firstWordMatches(titles, variants) {
		tScore += 4
	}

	// A near-perfect series hit lifts a decent title score: rips are often
	// named after the series, not the entry.
	if len(book.Series) > 0 {
		seriesScore := 0.0
		for _, t := range titles {
			for _, s := range book.Series {
				if sc := scoreTextPair(t, s); sc > seriesScore {
					seriesScore = sc
				}
			}
		}
		if seriesScore > 90 && tScore > 60 && seriesScore-4 > tScore {
			tScore = seriesScore - 4
		}
	}

	aScore := 0.0
	for _, a := range authors {
		for _, ba := range book.Authors {
			if s := scoreTextPair(a, ba); s > aScore {
				aScore = s
			}
		}
	}

	// "Title - Author" and "Author - Title" rips are indistinguishable; when
	// both cross scores agree, trust the swap.
	swapT, swapA := 0.0, 0.0
	for _, a := range authors {
		for _, v := range variants {
			if s := scoreTextPair(a, v); s > swapT {
				swapT = s
			}
		}
	}
	for _, t := range titles {
		for _, ba := range book.Authors {
			if s := scoreTextPair(t, ba); s > swapA {
				swapA = s
			}
		}
	}
	swapped := swapT > 88 && swapA > 88
	if swapped {
		tScore, aScore = swapT, swapA
	}

	var final float64
	if len(authors) > 0 {
		authorEmbedded := false
		for _, a := range authors {
			if scoreTextPair(a, book.Title) > 85 {
				authorEmbedded = true
				break
			}
		}
		if !authorEmbedded {
			for _, a := range authors {
				for _, s := range book.Series {
					if scoreTextPair(a, s) > 85 {
						authorEmbedded = true
						break
					}
				}
			}
		}

		switch {
		case swapped || authorEmbedded || tScore > 95:
			final = tScore*0.9 + aScore*0.1
		case aScore < 50 && tScore < 90:
			final = tScore*0.7 + aScore*0.3 - 25
		default:
			final = tScore*0.82 + aScore*0.18
		}
	} else {
		final = tScore * 0.96
	}

	if final < 0 {
		return 0
	}
	if final > 100 {
		return 100
	}
	return final
}

// titleVariants expands a book's comparable titles: bare, with subtitle, and
// with each series name.
func titleVariants(book *domain.Book) []string {
	variants := []string{book.Title}
	if book.Subtitle != "" {
		variants = append(variants, book.Title+" "+book.Subtitle)
	}
	for _, s := range book.Series {
		variants = append(variants, book.Title+" "+s)
	}
	return variants
}

// scoreTextPair is the maximum of several fuzzy scorers over normalized and
// compact forms of the pair.
func scoreTextPair(left, right string) float64 {
	ln, rn := normalizeText(left), normalizeText(right)
	if ln == "" || rn == "" {
		return 0
	}

	score := fuzzcmp.Ratio(ln, rn)
	if s := fuzzcmp.TokenSetRatio(ln, rn); s > score {
		score = s
	}
	if s := fuzzcmp.PartialRatio(ln, rn); s > score {
		score = s
	}
	if s := fuzzcmp.WRatio(ln, rn); s > score {
		score = s
	}

	lc, rc := compactText(left), compactText(right)
	if lc != "" && rc != "" {
		if s := fuzzcmp.Ratio(lc, rc); s > score {
			score = s
		}
		if s := fuzzcmp.PartialRatio(lc, rc); s > score {
			score = s
		}
	}
	return float64(score)
}

func firstWordMatches(titles, variants []string) bool {
	for _, t := range titles {
		fields := strings.Fields(normalizeText(t))
		if len(fields) == 0 {
			continue
		}
		for _, v := range variants {
			vf := strings.Fields(normalizeText(v))
			if len(vf) > 0 && vf[0] == fields[0] {
				return true
			}
		}
	}
	return false
}

// isExactMatch requires a normalized title hit (title or title+subtitle) and
// an intersecting author.
func isExactMatch(titles, authors []string, book *domain.Book) bool {
	if book == nil || book.Title == "" || len(book.Authors) == 0 {
		return false
	}

	wanted := map[string]struct{}{normalizeText(book.Title): {}}
	if book.Subtitle != "" {
		wanted[normalizeText(fmt.Sprintf("%s %s", book.Title, book.Subtitle))] = struct{}{}
	}

	titleHit := false
	for _, t := range titles {
		if _, ok := wanted[normalizeText(t)]; ok {
			titleHit = true
			break
		}
	}
	if !titleHit {
		return false
	}

	bookAuthors := make(map[string]struct{}, len(book.Authors))
	for _, a := range book.Authors {
		if n := normalizeText(a); n != "" {
			bookAuthors[n] = struct{}{}
		}
	}
	if len(bookAuthors) == 0 {
		return false
	}

	for _, a := range splitAuthors(authors) {
		if _, ok := bookAuthors[normalizeText(a)]; ok {
			return true
		}
	}
	return false
}
