// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/audiobrr/internal/config"
)

func execGenerateConfig(t *testing.T, args ...string) string {
	t.Helper()

	cmd := RunGenerateConfigCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func readConfig(t *testing.T, path string) string {
	t.Helper()

	require.FileExists(t, path)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestGenerateConfigDefaultsToXDGDirectory(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	out := execGenerateConfig(t)

	path := filepath.Join(config.GetDefaultConfigDir(), "config.toml")
	content := readConfig(t, path)

	assert.Contains(t, content, `logLevel = "INFO"`)
	assert.Contains(t, content, "#metricsEnabled")
	assert.Contains(t, filepath.ToSlash(out), filepath.ToSlash(path))
}

func TestGenerateConfigHonorsConfigDirFlag(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audiobrr")

	out := execGenerateConfig(t, "--config-dir", dir)

	path := filepath.Join(dir, "config.toml")
	content := readConfig(t, path)

	assert.Contains(t, content, "# config.toml - Auto-generated")
	assert.Contains(t, filepath.ToSlash(out), filepath.ToSlash(path))
}

func TestGenerateConfigNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("host = \"10.0.0.5\"\n"), 0o644))

	out := execGenerateConfig(t, "--config-dir", dir)

	assert.Equal(t, "host = \"10.0.0.5\"\n", readConfig(t, path),
		"an existing config must survive generate-config untouched")
	assert.Contains(t, out, "already exists")
	assert.Contains(t, out, "Skipping generation")
}
