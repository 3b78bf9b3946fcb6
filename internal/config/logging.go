// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ApplyLogConfig configures the global logger from the loaded settings.
// Console output goes to stderr; when logPath is set a rotating file
// writer is attached alongside it.
func (c *AppConfig) ApplyLogConfig() error {
	writer, err := c.buildLogWriter()
	if err != nil {
		return err
	}

	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
	ApplyLogLevel(c.Config.LogLevel)
	return nil
}

func (c *AppConfig) buildLogWriter() (io.Writer, error) {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	if c.Config.LogPath == "" {
		return console, nil
	}

	logPath := c.ResolveLogPath(c.Config.LogPath)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	maxSize := c.Config.LogMaxSize
	if maxSize <= 0 {
		maxSize = 50
	}
	maxBackups := c.Config.LogMaxBackups
	if maxBackups < 0 {
		maxBackups = 0
	}

	rotator := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}
	return io.MultiWriter(console, rotator), nil
}

// ResolveLogPath resolves a relative log path against the config directory.
func (c *AppConfig) ResolveLogPath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.configDir, path)
}

// ApplyLogLevel sets the global zerolog level. Unknown levels fall back
// to info.
func ApplyLogLevel(level string) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "WARN":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "ERROR":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
