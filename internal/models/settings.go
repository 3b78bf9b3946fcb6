// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"

	"github.com/autobrr/audiobrr/internal/dbinterface"
)

var ErrSettingNotFound = errors.New("setting not found")

// settingsCacheTTL bounds how stale the read-through cache may get when
// another process writes the database directly. Normal writes go through
// Set/Delete, which update the cache in step with the row.
const settingsCacheTTL = 10 * time.Minute

// SettingsStore provides durable key/value settings with typed accessors and
// a process-wide read-through cache.
type SettingsStore struct {
	db    dbinterface.Querier
	cache *ttlcache.Cache[string, string]
}

func NewSettingsStore(db dbinterface.Querier) *SettingsStore {
	opts := ttlcache.Options[string, string]{}.SetDefaultTTL(settingsCacheTTL)
	return &SettingsStore{
		db:    db,
		cache: ttlcache.New(opts),
	}
}

// Get returns the raw string value for key, or ErrSettingNotFound.
func (s *SettingsStore) Get(ctx context.Context, key string) (string, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSettingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %q: %w", key, err)
	}

	s.cache.Set(key, value, ttlcache.DefaultTTL)
	return value, nil
}

// GetDefault returns the value for key, or def when the key is absent.
func (s *SettingsStore) GetDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// Set writes the value durably, then updates the cache. A Set that returns
// before a Get starts is visible to that Get.
func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %q: %w", key, err)
	}

	s.cache.Set(key, value, ttlcache.DefaultTTL)
	return nil
}

// Delete removes the key from the store and the cache.
func (s *SettingsStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete setting %q: %w", key, err)
	}
	s.cache.Delete(key)
	return nil
}

func (s *SettingsStore) GetInt(ctx context.Context, key string, def int) int {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (s *SettingsStore) SetInt(ctx context.Context, key string, value int) error {
	return s.Set(ctx, key, strconv.Itoa(value))
}

func (s *SettingsStore) GetBool(ctx context.Context, key string, def bool) bool {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (s *SettingsStore) SetBool(ctx context.Context, key string, value bool) error {
	return s.Set(ctx, key, strconv.FormatBool(value))
}

func (s *SettingsStore) GetFloat(ctx context.Context, key string, def float64) float64 {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
