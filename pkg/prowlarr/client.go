// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package prowlarr wraps the Prowlarr v1 JSON search API.
package prowlarr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	ProtocolTorrent = "torrent"
	ProtocolUsenet  = "usenet"

	defaultSearchLimit = 100
	maxTorrentBytes    = 32 << 20
)

// Config holds the options for constructing a Client.
type Config struct {
	Host       string
	APIKey     string
	Timeout    int
	HTTPClient *http.Client
	UserAgent  string
}

// Client provides access to the Prowlarr aggregator.
type Client struct {
	host       string
	apiKey     string
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
		apiKey:     cfg.APIKey,
		httpClient: client,
		userAgent:  ua,
	}
}

// BookMetadata carries structured fields some indexers attach to a result.
// Prowlarr itself never fills this; indexer adapters do.
type BookMetadata struct {
	Title     string   `json:"title,omitempty"`
	Subtitle  string   `json:"subtitle,omitempty"`
	Authors   []string `json:"authors,omitempty"`
	Narrators []string `json:"narrators,omitempty"`
	Filetype  string   `json:"filetype,omitempty"`
}

// Source is one search result. Seeders and Leechers are meaningful for the
// torrent protocol, Grabs for usenet.
type Source struct {
	GUID         string        `json:"guid"`
	IndexerID    int           `json:"indexerId"`
	Indexer      string        `json:"indexer"`
	Title        string        `json:"title"`
	Size         int64         `json:"size"`
	PublishDate  time.Time     `json:"publishDate"`
	InfoURL      string        `json:"infoUrl,omitempty"`
	DownloadURL  string        `json:"downloadUrl,omitempty"`
	MagnetURL    string        `json:"magnetUrl,omitempty"`
	Protocol     string        `json:"protocol"`
	Seeders      int           `json:"seeders"`
	Leechers     int           `json:"leechers"`
	Grabs        int           `json:"grabs"`
	IndexerFlags []string      `json:"indexerFlags,omitempty"`
	BookMetadata *BookMetadata `json:"bookMetadata,omitempty"`
}

// SearchOptions narrows a search. Zero values mean no filter.
type SearchOptions struct {
	Categories []int
	IndexerIDs []int
	Limit      int
}

func (c *Client) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build prowlarr request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func checkStatus(resp *http.Response, what string) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("prowlarr %s endpoint not found (404)", what)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("prowlarr returned %d (unauthorized)", resp.StatusCode)
	default:
		return fmt.Errorf("prowlarr unexpected status %d", resp.StatusCode)
	}
}

// Search runs one query across the configured indexers. Results come back in
// Prowlarr's own order; ranking happens downstream.
func (c *Client) Search(ctx context.Context, searchQuery string, opts SearchOptions) ([]Source, error) {
	if c.httpClient == nil {
		return nil, fmt.Errorf("prowlarr HTTP client is not configured")
	}
	if strings.TrimSpace(searchQuery) == "" {
		return nil, fmt.Errorf("search query is required")
	}

	endpoint, err := url.JoinPath(c.host, "api", "v1", "search")
	if err != nil {
		return nil, fmt.Errorf("failed to build prowlarr endpoint: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query := url.Values{}
	query.Set("query", searchQuery)
	query.Set("type", "search")
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", "0")
	for _, cat := range opts.Categories {
		query.Add("categories", strconv.Itoa(cat))
	}
	for _, id := range opts.IndexerIDs {
		query.Add("indexerIds", strconv.Itoa(id))
	}

	req, err := c.newRequest(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = query.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prowlarr search failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "search"); err != nil {
		return nil, err
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode prowlarr response: %w", err)
	}

	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, r.toSource())
	}
	return sources, nil
}

// searchResult matches the wire shape of one /api/v1/search entry.
type searchResult struct {
	GUID         string    `json:"guid"`
	IndexerID    int       `json:"indexerId"`
	Indexer      string    `json:"indexer"`
	Title        string    `json:"title"`
	Size         int64     `json:"size"`
	PublishDate  time.Time `json:"publishDate"`
	InfoURL      string    `json:"infoUrl"`
	DownloadURL  string    `json:"downloadUrl"`
	MagnetURL    string    `json:"magnetUrl"`
	Protocol     string    `json:"protocol"`
	Seeders      *int      `json:"seeders"`
	Leechers     *int      `json:"leechers"`
	Grabs        *int      `json:"grabs"`
	IndexerFlags []string  `json:"indexerFlags"`
}

func (r searchResult) toSource() Source {
	s := Source{
		GUID:        r.GUID,
		IndexerID:   r.IndexerID,
		Indexer:     r.Indexer,
		Title:       r.Title,
		Size:        r.Size,
		PublishDate: r.PublishDate,
		InfoURL:     r.InfoURL,
		DownloadURL: r.DownloadURL,
		MagnetURL:   r.MagnetURL,
		Protocol:    strings.ToLower(r.Protocol),
	}
	if r.Seeders != nil {
		s.Seeders = *r.Seeders
	}
	if r.Leechers != nil {
		s.Leechers = *r.Leechers
	}
	if r.Grabs != nil {
		s.Grabs = *r.Grabs
	}
	for _, f := range r.IndexerFlags {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			s.IndexerFlags = append(s.IndexerFlags, f)
		}
	}
	return s
}

// Indexer represents a configured Prowlarr indexer returned by the API.
type Indexer struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Implementation string `json:"implementation"`
	Enable         bool   `json:"enable"`
	Protocol       string `json:"protocol"`
}

// GetIndexers retrieves all configured indexers from the Prowlarr instance.
// Used by the settings test endpoint to verify connectivity.
func (c *Client) GetIndexers(ctx context.Context) ([]Indexer, error) {
	if c.httpClient == nil {
		return nil, fmt.Errorf("prowlarr HTTP client is not configured")
	}

	endpoint, err := url.JoinPath(c.host, "api", "v1", "indexer")
	if err != nil {
		return nil, fmt.Errorf("failed to build prowlarr endpoint: %w", err)
	}

	req, err := c.newRequest(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query prowlarr: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "indexer"); err != nil {
		return nil, err
	}

	var payload []Indexer
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode prowlarr response: %w", err)
	}

	return payload, nil
}

// DownloadTorrent fetches the .torrent payload behind a result's download
// URL. The URL usually points back at Prowlarr, which proxies the tracker.
func (c *Client) DownloadTorrent(ctx context.Context, downloadURL string) ([]byte, error) {
	if strings.TrimSpace(downloadURL) == "" {
		return nil, fmt.Errorf("download URL is required")
	}

	req, err := c.newRequest(ctx, downloadURL)
	if err != nil {
		return nil, err
	}
	req.Header.Del("Accept")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("torrent download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("torrent download returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTorrentBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read torrent payload: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("torrent download returned an empty body")
	}
	return body, nil
}
