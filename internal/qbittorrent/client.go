// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package qbittorrent adapts the go-qbittorrent client to the download
// pipeline: add with category/tags/save path, list by category, tag, delete.
package qbittorrent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/internal/models"
)

// minWebAPIVersion is the oldest WebAPI the pipeline is known to work with.
const minWebAPIVersion = "2.8.3"

type Client struct {
	*qbt.Client
	webAPIVersion   string
	lastHealthCheck time.Time
	isHealthy       bool
	mu              sync.RWMutex
}

// NewClient logs in (with a short retry for transient startup failures) and
// records the WebAPI version.
func NewClient(settings models.QbitSettings) (*Client, error) {
	cfg := qbt.Config{
		Host:     settings.URL(),
		Username: settings.Username,
		Password: settings.Password,
		Timeout:  30,
	}

	qbtClient := qbt.NewClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := retry.Do(
		func() error { return qbtClient.LoginCtx(ctx) },
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qBittorrent: %w", err)
	}

	webAPIVersion, err := qbtClient.GetWebAPIVersionCtx(ctx)
	if err != nil {
		webAPIVersion = ""
	}

	if webAPIVersion != "" {
		if v, err := semver.NewVersion(webAPIVersion); err == nil {
			if v.LessThan(semver.MustParse(minWebAPIVersion)) {
				return nil, fmt.Errorf("qBittorrent WebAPI %s is older than the supported %s", webAPIVersion, minWebAPIVersion)
			}
		}
	}

	client := &Client{
		Client:          qbtClient,
		webAPIVersion:   webAPIVersion,
		lastHealthCheck: time.Now(),
		isHealthy:       true,
	}

	log.Debug().
		Str("host", settings.URL()).
		Str("webAPIVersion", webAPIVersion).
		Msg("qBittorrent client created successfully")

	return client, nil
}

func (c *Client) GetWebAPIVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.webAPIVersion
}

func (c *Client) GetLastHealthCheck() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastHealthCheck
}

func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isHealthy
}

// HealthCheck verifies the session and re-logins once when it has expired.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.GetWebAPIVersionCtx(ctx)
	if err != nil {
		if loginErr := c.LoginCtx(ctx); loginErr != nil {
			c.setHealth(false)
			return fmt.Errorf("health check failed: login error: %w", loginErr)
		}
		if _, err = c.GetWebAPIVersionCtx(ctx); err != nil {
			c.setHealth(false)
			return fmt.Errorf("health check failed: api error: %w", err)
		}
	}

	c.setHealth(true)
	return nil
}

func (c *Client) setHealth(healthy bool) {
	c.mu.Lock()
	c.isHealthy = healthy
	c.lastHealthCheck = time.Now()
	c.mu.Unlock()
}

// AddPayload describes one torrent to add. Exactly one of MagnetURL or
// TorrentBytes must be set.
type AddPayload struct {
	MagnetURL    string
	TorrentBytes []byte
	Category     string
	SavePath     string
	Tags         []string
}

func (p AddPayload) options() map[string]string {
	opts := map[string]string{
		"autoTMM": "false",
	}
	if p.Category != "" {
		opts["category"] = p.Category
	}
	if p.SavePath != "" {
		opts["savepath"] = p.SavePath
	}
	if len(p.Tags) > 0 {
		opts["tags"] = strings.Join(p.Tags, ",")
	}
	return opts
}

// AddTorrent submits the payload. Auth expiry triggers one re-login retry.
func (c *Client) AddTorrent(ctx context.Context, payload AddPayload) error {
	add := func() error {
		if payload.MagnetURL != "" {
			return c.AddTorrentFromUrlCtx(ctx, payload.MagnetURL, payload.options())
		}
		if len(payload.TorrentBytes) > 0 {
			return c.AddTorrentFromMemoryCtx(ctx, payload.TorrentBytes, payload.options())
		}
		return fmt.Errorf("add payload has neither magnet URL nor torrent bytes")
	}

	if err := add(); err != nil {
		if loginErr := c.LoginCtx(ctx); loginErr != nil {
			return fmt.Errorf("failed to add torrent: %w", err)
		}
		if err := add(); err != nil {
			return fmt.Errorf("failed to add torrent: %w", err)
		}
	}
	return nil
}

// ListByCategory returns the torrents in one category.
func (c *Client) ListByCategory(ctx context.Context, category string) ([]qbt.Torrent, error) {
	torrents, err := c.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Category: category})
	if err != nil {
		if loginErr := c.LoginCtx(ctx); loginErr != nil {
			return nil, fmt.Errorf("failed to list torrents: %w", err)
		}
		torrents, err = c.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Category: category})
		if err != nil {
			return nil, fmt.Errorf("failed to list torrents: %w", err)
		}
	}
	return torrents, nil
}

// AddTags attaches tags to the given hashes.
func (c *Client) AddTags(ctx context.Context, hashes []string, tags []string) error {
	if len(hashes) == 0 || len(tags) == 0 {
		return nil
	}
	if err := c.AddTagsCtx(ctx, hashes, strings.Join(tags, ",")); err != nil {
		return fmt.Errorf("failed to add tags: %w", err)
	}
	return nil
}

// Delete removes torrents, optionally with their files.
func (c *Client) Delete(ctx context.Context, hashes []string, deleteFiles bool) error {
	if len(hashes) == 0 {
		return nil
	}
	if err := c.DeleteTorrentsCtx(ctx, hashes, deleteFiles); err != nil {
		return fmt.Errorf("failed to delete torrents: %w", err)
	}
	return nil
}

// Diagnostics is the structured result of a connectivity test.
type Diagnostics struct {
	OK            bool   `json:"ok"`
	WebAPIVersion string `json:"webApiVersion,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Test checks settings without mutating the process-wide client. An
// unreachable or misconfigured host is a soft result, not an error.
func Test(ctx context.Context, settings models.QbitSettings) Diagnostics {
	cfg := qbt.Config{
		Host:     settings.URL(),
		Username: settings.Username,
		Password: settings.Password,
		Timeout:  10,
	}
	client := qbt.NewClient(cfg)

	if err := client.LoginCtx(ctx); err != nil {
		return Diagnostics{OK: false, Error: err.Error()}
	}

	version, err := client.GetWebAPIVersionCtx(ctx)
	if err != nil {
		return Diagnostics{OK: false, Error: fmt.Sprintf("logged in but version probe failed: %v", err)}
	}
	return Diagnostics{OK: true, WebAPIVersion: version}
}
