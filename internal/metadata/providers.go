// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/autobrr/audiobrr/internal/domain"
)

const (
	defaultAudimetaBase = "https://audimeta.de"
	defaultAudnexusBase = "https://api.audnex.us"
	defaultAudibleBase  = "https://api.audible"
)

// providerBook is the wire shape both book providers share. Audimeta uses
// imageUrl/lengthMinutes, audnexus uses image/runtimeLengthMin.
type providerBook struct {
	ASIN             string        `json:"asin"`
	Title            string        `json:"title"`
	Subtitle         string        `json:"subtitle"`
	Authors          nameList      `json:"authors"`
	Narrators        nameList      `json:"narrators"`
	Series           []seriesEntry `json:"series"`
	Genres           genreList     `json:"genres"`
	Publisher        string        `json:"publisher"`
	Description      string        `json:"description"`
	Language         string        `json:"language"`
	ReleaseDate      string        `json:"releaseDate"`
	ImageURL         string        `json:"imageUrl"`
	Image            string        `json:"image"`
	LengthMinutes    *int          `json:"lengthMinutes"`
	RuntimeLengthMin *int          `json:"runtimeLengthMin"`
}

func (p providerBook) toBook() *domain.Book {
	b := &domain.Book{
		ASIN:        p.ASIN,
		Title:       p.Title,
		Subtitle:    p.Subtitle,
		Authors:     p.Authors,
		Narrators:   p.Narrators,
		Genres:      p.Genres,
		Publisher:   p.Publisher,
		Description: p.Description,
		Language:    strings.ToLower(p.Language),
	}

	if p.ImageURL != "" {
		b.CoverURL = p.ImageURL
	} else {
		b.CoverURL = p.Image
	}

	if p.LengthMinutes != nil {
		b.RuntimeMin = *p.LengthMinutes
	} else if p.RuntimeLengthMin != nil {
		b.RuntimeMin = *p.RuntimeLengthMin
	}

	for _, s := range p.Series {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			continue
		}
		b.Series = append(b.Series, name)
		if b.SeriesIndex == "" {
			b.SeriesIndex = s.positionString()
		}
	}

	if p.ReleaseDate != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, p.ReleaseDate); err == nil {
				b.ReleaseDate = &t
				break
			}
		}
	}

	return b
}

// fetchProviderBook performs one provider GET. A non-OK status or an
// undecodable body is a soft miss (nil, nil); transport errors propagate so
// the caller can log them distinctly.
func (s *Service) fetchProviderBook(ctx context.Context, endpoint string) (*domain.Book, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build metadata request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "metadata provider request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var payload providerBook
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, nil
	}
	if payload.ASIN == "" || payload.Title == "" {
		return nil, nil
	}
	return payload.toBook(), nil
}

func (s *Service) audimetaBook(ctx context.Context, asin, region string) (*domain.Book, error) {
	endpoint, err := url.JoinPath(s.audimetaBase, "book", asin)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build audimeta endpoint")
	}
	return s.fetchProviderBook(ctx, endpoint+"?region="+url.QueryEscape(region))
}

func (s *Service) audnexusBook(ctx context.Context, asin, region string) (*domain.Book, error) {
	endpoint, err := url.JoinPath(s.audnexusBase, "books", asin)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build audnexus endpoint")
	}
	return s.fetchProviderBook(ctx, endpoint+"?region="+url.QueryEscape(region))
}

// audibleHost renders the regional audible API host. An overridden base (as
// in tests) is used verbatim; the default one gets the region TLD appended.
func (s *Service) audibleHost(region string) string {
	if s.audibleBase != defaultAudibleBase {
		return s.audibleBase
	}
	return s.audibleBase + domain.RegionTLD(region)
}

// audibleCatalogSearch returns ordered ASINs for a keyword query from the
// regional audible catalog.
func (s *Service) audibleCatalogSearch(ctx context.Context, query, region string, numResults int) ([]string, error) {
	params := url.Values{}
	params.Set("keywords", query)
	params.Set("num_results", fmt.Sprintf("%d", numResults))
	params.Set("products_sort_by", "Relevance")
	params.Set("page", "0")

	endpoint := s.audibleHost(region) + "/1.0/catalog/products?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build audible search request")
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "audible search failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("audible search returned status %d", resp.StatusCode)
	}

	var payload struct {
		Products []struct {
			ASIN string `json:"asin"`
		} `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode audible search response")
	}

	asins := make([]string, 0, len(payload.Products))
	for _, p := range payload.Products {
		if p.ASIN != "" {
			asins = append(asins, p.ASIN)
		}
	}
	return asins, nil
}

// audibleSuggestions returns typeahead titles from the regional audible API.
func (s *Service) audibleSuggestions(ctx context.Context, query, region string) ([]string, error) {
	params := url.Values{}
	params.Set("key_strokes", query)
	params.Set("site_variant", "desktop")

	endpoint := s.audibleHost(region) + "/1.0/searchsuggestions?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build audible suggestions request")
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "audible suggestions failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("audible suggestions returned status %d", resp.StatusCode)
	}

	var payload struct {
		Model struct {
			Items []struct {
				Model struct {
					ProductMetadata struct {
						Title struct {
							Value string `json:"value"`
						} `json:"title"`
					} `json:"product_metadata"`
				} `json:"model"`
			} `json:"items"`
		} `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode audible suggestions response")
	}

	var titles []string
	for _, item := range payload.Model.Items {
		if v := item.Model.ProductMetadata.Title.Value; v != "" {
			titles = append(titles, v)
		}
	}
	return titles, nil
}
