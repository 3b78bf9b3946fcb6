// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package audiobookshelf wraps the small slice of the Audiobookshelf API the
// request pipeline needs: library listing, search, and scan triggering.
package audiobookshelf

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds the options for constructing a Client.
type Config struct {
	Host       string
	APIToken   string
	Timeout    int
	HTTPClient *http.Client
	UserAgent  string
}

// Client talks to one Audiobookshelf server.
type Client struct {
	host       string
	apiToken   string
	httpClient *http.Client
	userAgent  string
}

// NewClient constructs a new Client using the provided configuration.
func NewClient(cfg Config) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = "audiobrr"
	}

	return &Client{
		host:       strings.TrimRight(cfg.Host, "/"),
		apiToken:   cfg.APIToken,
		httpClient: client,
		userAgent:  ua,
	}
}

// Library is one Audiobookshelf library.
type Library struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
}

type librariesResponse struct {
	Libraries []Library `json:"libraries"`
}

// SearchResult is one matched library item, flattened to the fields the
// existence check reads.
type SearchResult struct {
	ItemID string
	Title  string
	ASIN   string
	Author string
}

type searchResponse struct {
	Book []struct {
		LibraryItem struct {
			ID    string `json:"id"`
			Media struct {
				Metadata struct {
					Title      string `json:"title"`
					ASIN       string `json:"asin"`
					AuthorName string `json:"authorName"`
				} `json:"metadata"`
			} `json:"media"`
		} `json:"libraryItem"`
	} `json:"book"`
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build audiobookshelf request: %w", err)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audiobookshelf request failed: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		resp.Body.Close()
		return nil, fmt.Errorf("audiobookshelf returned %d (unauthorized)", resp.StatusCode)
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("audiobookshelf endpoint not found (404)")
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("audiobookshelf unexpected status %d", resp.StatusCode)
	}
}

// GetLibraries lists the server's libraries. Used by the settings test
// endpoint and to pick a default library.
func (c *Client) GetLibraries(ctx context.Context) ([]Library, error) {
	endpoint, err := url.JoinPath(c.host, "api", "libraries")
	if err != nil {
		return nil, fmt.Errorf("failed to build audiobookshelf endpoint: %w", err)
	}

	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload librariesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode audiobookshelf response: %w", err)
	}
	return payload.Libraries, nil
}

// Search queries one library for book items matching q.
func (c *Client) Search(ctx context.Context, libraryID, q string) ([]SearchResult, error) {
	if strings.TrimSpace(libraryID) == "" {
		return nil, fmt.Errorf("audiobookshelf library ID is required")
	}

	endpoint, err := url.JoinPath(c.host, "api", "libraries", libraryID, "search")
	if err != nil {
		return nil, fmt.Errorf("failed to build audiobookshelf endpoint: %w", err)
	}

	query := url.Values{}
	query.Set("q", q)

	resp, err := c.do(ctx, http.MethodGet, endpoint, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode audiobookshelf response: %w", err)
	}

	results := make([]SearchResult, 0, len(payload.Book))
	for _, b := range payload.Book {
		results = append(results, SearchResult{
			ItemID: b.LibraryItem.ID,
			Title:  b.LibraryItem.Media.Metadata.Title,
			ASIN:   b.LibraryItem.Media.Metadata.ASIN,
			Author: b.LibraryItem.Media.Metadata.AuthorName,
		})
	}
	return results, nil
}

// BookExists reports whether the library already holds the book. An exact
// ASIN match wins; otherwise a case-insensitive title match counts.
func (c *Client) BookExists(ctx context.Context, libraryID, asin, title string) (bool, error) {
	q := title
	if q == "" {
		q = asin
	}
	results, err := c.Search(ctx, libraryID, q)
	if err != nil {
		return false, err
	}

	for _, r := range results {
		if asin != "" && strings.EqualFold(r.ASIN, asin) {
			return true, nil
		}
		if title != "" && strings.EqualFold(strings.TrimSpace(r.Title), strings.TrimSpace(title)) {
			return true, nil
		}
	}
	return false, nil
}

// TriggerScan asks the server to re-scan one library. Called after the
// processor finishes placing files.
func (c *Client) TriggerScan(ctx context.Context, libraryID string) error {
	if strings.TrimSpace(libraryID) == "" {
		return fmt.Errorf("audiobookshelf library ID is required")
	}

	endpoint, err := url.JoinPath(c.host, "api", "libraries", libraryID, "scan")
	if err != nil {
		return fmt.Errorf("failed to build audiobookshelf endpoint: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
