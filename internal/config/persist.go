// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// persistMu ensures only one goroutine writes to config.toml at a time.
var persistMu sync.Mutex

// PersistLogSettings atomically updates only the log-related keys in
// config.toml, preserving all other content and comments.
func (c *AppConfig) PersistLogSettings(level, path string, maxSize, maxBackups int) error {
	persistMu.Lock()
	defer persistMu.Unlock()

	configPath := c.viper.ConfigFileUsed()
	if configPath == "" {
		return errors.New("no config file path available")
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	updated := updateLogSettingsInTOML(string(content), level, path, maxSize, maxBackups)

	// Write atomically: temp file + fsync + rename
	dir := filepath.Dir(configPath)
	tmpFile, err := os.CreateTemp(dir, ".config.toml.tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.WriteString(updated); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, configPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

type logSettings struct {
	level, path         string
	maxSize, maxBackups int
}

// updateLogSettingsInTOML updates log-related settings in a TOML string.
// Commented-out log keys from the generated template are uncommented and
// updated in place, so values never get appended after later sections.
func updateLogSettingsInTOML(content, level, path string, maxSize, maxBackups int) string {
	lines := strings.Split(content, "\n")
	result := make([]string, 0, len(lines))
	updated := make(map[string]bool)
	settings := logSettings{level, path, maxSize, maxBackups}

	for _, line := range lines {
		result = append(result, processLogLine(line, settings, updated))
	}

	if appended := appendMissingSettings(updated, settings); len(appended) > 0 {
		result = append(result, "", "# Log settings")
		result = append(result, appended...)
	}

	return strings.Join(result, "\n")
}

// processLogLine rewrites a single TOML line when it holds a log setting,
// commented or not. Each key is only rewritten once.
func processLogLine(line string, s logSettings, updated map[string]bool) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return line
	}

	key := strings.ToLower(extractKey(trimmed))
	switch key {
	case "loglevel":
		if updated["logLevel"] {
			return line
		}
		updated["logLevel"] = true
		return fmt.Sprintf("logLevel = %q", s.level)
	case "logpath":
		if updated["logPath"] {
			return line
		}
		updated["logPath"] = true
		if s.path == "" {
			return fmt.Sprintf("#logPath = %q", s.path)
		}
		return fmt.Sprintf("logPath = %q", s.path)
	case "logmaxsize":
		if updated["logMaxSize"] {
			return line
		}
		updated["logMaxSize"] = true
		return fmt.Sprintf("logMaxSize = %d", s.maxSize)
	case "logmaxbackups":
		if updated["logMaxBackups"] {
			return line
		}
		updated["logMaxBackups"] = true
		return fmt.Sprintf("logMaxBackups = %d", s.maxBackups)
	default:
		return line
	}
}

// appendMissingSettings returns TOML lines for settings not already in the file.
func appendMissingSettings(updated map[string]bool, s logSettings) []string {
	var appended []string
	if !updated["logLevel"] {
		appended = append(appended, fmt.Sprintf("logLevel = %q", s.level))
	}
	if !updated["logPath"] && s.path != "" {
		appended = append(appended, fmt.Sprintf("logPath = %q", s.path))
	}
	if !updated["logMaxSize"] {
		appended = append(appended, fmt.Sprintf("logMaxSize = %d", s.maxSize))
	}
	if !updated["logMaxBackups"] {
		appended = append(appended, fmt.Sprintf("logMaxBackups = %d", s.maxBackups))
	}
	return appended
}

// extractKey extracts the key name from a TOML line like "key = value",
// including commented template lines like `#logPath = ""`.
func extractKey(line string) string {
	line = strings.TrimPrefix(line, "#")
	line = strings.TrimSpace(line)

	key, _, found := strings.Cut(line, "=")
	if !found {
		return ""
	}
	return strings.TrimSpace(key)
}
