// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads config.toml with AUDIOBRR__ environment overrides,
// writes a commented template on first run, and keeps the log level live
// across config file edits.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/audiobrr/internal/buildinfo"
	"github.com/autobrr/audiobrr/internal/domain"
)

const (
	envPrefix      = "AUDIOBRR__"
	configFileName = "config.toml"
	databaseName   = "audiobrr.db"
)

// AppConfig wraps the loaded configuration and the viper instance backing
// it, so dynamic keys can reload on file changes.
type AppConfig struct {
	Config *domain.Config
	viper  *viper.Viper

	configDir string
	mu        sync.Mutex
}

// New loads configuration from configPath. When configPath is empty the XDG
// config dir is used, and a commented template is written on first run.
// configPath may name either the toml file or its directory.
func New(configPath string) (*AppConfig, error) {
	c := &AppConfig{
		Config: &domain.Config{Version: buildinfo.Version},
		viper:  viper.New(),
	}

	c.defaults()
	c.viper.SetConfigType("toml")

	if configPath != "" {
		info, err := os.Stat(configPath)
		if err == nil && info.IsDir() {
			c.configDir = configPath
			configPath = filepath.Join(configPath, configFileName)
		} else {
			c.configDir = filepath.Dir(configPath)
		}
		c.viper.SetConfigFile(configPath)
	} else {
		c.configDir = getDefaultConfigDir()
		c.viper.SetConfigFile(filepath.Join(c.configDir, configFileName))
	}

	if err := c.writeTemplateIfMissing(); err != nil {
		return nil, err
	}

	if err := c.viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	c.bindEnv()

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return c, nil
}

func (c *AppConfig) defaults() {
	c.viper.SetDefault("host", "127.0.0.1")
	c.viper.SetDefault("port", 7337)
	c.viper.SetDefault("baseUrl", "/")
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("databasePath", "")
	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", 9074)
	c.viper.SetDefault("pprofEnabled", false)
	c.viper.SetDefault("pprofHost", "localhost")
	c.viper.SetDefault("pprofPort", 6060)
	c.viper.SetDefault("monitorInterval", 60)
	c.viper.SetDefault("dispatchWorkers", 4)
}

// bindEnv wires AUDIOBRR__SNAKE_CASE variables onto camelCase config keys.
func (c *AppConfig) bindEnv() {
	for _, key := range []string{
		"host", "port", "baseUrl", "allowedOrigins",
		"logLevel", "logPath", "logMaxSize", "logMaxBackups",
		"databasePath", "metricsEnabled", "metricsHost", "metricsPort",
		"metricsBasicAuthUsers", "pprofEnabled", "pprofHost", "pprofPort",
		"monitorInterval", "dispatchWorkers",
	} {
		_ = c.viper.BindEnv(key, envPrefix+toEnvSuffix(key))
	}
}

// toEnvSuffix turns "databasePath" into "DATABASE_PATH".
func toEnvSuffix(key string) string {
	var b strings.Builder
	for i, r := range key {
		if r >= 'A' && r <= 'Z' && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// GetDefaultConfigDir resolves the XDG config dir. A bare XDG_CONFIG_HOME
// like Docker's /config is used directly; otherwise an audiobrr subdir.
func GetDefaultConfigDir() string {
	return getDefaultConfigDir()
}

func getDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if filepath.Base(xdg) == "config" && filepath.Dir(xdg) == "/" {
			return xdg
		}
		return filepath.Join(xdg, "audiobrr")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "audiobrr")
}

// GetDatabasePath returns the configured path, or databaseName next to the
// config file when unset.
func (c *AppConfig) GetDatabasePath() string {
	if c.Config.DatabasePath != "" {
		return c.Config.DatabasePath
	}
	return filepath.Join(c.configDir, databaseName)
}

// GetConfigPath returns the loaded config file location.
func (c *AppConfig) GetConfigPath() string {
	return c.viper.ConfigFileUsed()
}

// WatchConfig reloads dynamic keys when the file changes on disk. Only the
// log level is applied live; everything else needs a restart.
func (c *AppConfig) WatchConfig() {
	c.viper.OnConfigChange(func(_ fsnotify.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()

		fresh := &domain.Config{}
		if err := c.viper.Unmarshal(fresh); err != nil {
			log.Error().Err(err).Msg("Failed to reload config file")
			return
		}
		if fresh.LogLevel != c.Config.LogLevel {
			c.Config.LogLevel = fresh.LogLevel
			ApplyLogLevel(fresh.LogLevel)
			log.Info().Str("logLevel", fresh.LogLevel).Msg("Log level reloaded from config file")
		}
	})
	c.viper.WatchConfig()
}

// writeTemplateIfMissing creates the config dir and a commented config.toml
// on first run.
func (c *AppConfig) writeTemplateIfMissing() error {
	path := c.viper.ConfigFileUsed()
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := WriteTemplate(path); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("Created default config file")
	return nil
}

// WriteTemplate writes the commented default config.toml to path, creating
// parent directories as needed.
func WriteTemplate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config template: %w", err)
	}
	return nil
}

const configTemplate = `# config.toml - Auto-generated on first run

# Hostname / IP
# Default: "127.0.0.1"
host = "127.0.0.1"

# Port
# Default: 7337
port = 7337

# Base URL
# Set custom baseUrl, e.g. /audiobrr/, to serve behind a reverse proxy.
# Default: "/"
#baseUrl = "/"

# Allowed CORS origins for browser clients served from another origin.
# Default: empty (same-origin only)
#allowedOrigins = []

# Database path
# If not defined, the database is created next to this file.
# Optional
#databasePath = ""

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/audiobrr.log"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: 50
#logMaxSize = 50

# Number of rotated log files to retain (0 keeps all)
# Default: 3
#logMaxBackups = 3

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "INFO"

# Download monitor cadence in seconds
# Default: 60
#monitorInterval = 60

# Background query and dispatch worker pool size
# Default: 4
#dispatchWorkers = 4

# Prometheus metrics endpoint
# Default: false
#metricsEnabled = false

# Metrics listen address
# Default: "127.0.0.1"
#metricsHost = "127.0.0.1"

# Metrics port
# Default: 9074
#metricsPort = 9074

# Metrics basic auth, comma separated user:password pairs
# Optional
#metricsBasicAuthUsers = ""

# Enable pprof profiling endpoints under /debug/pprof
# Default: false
#pprofEnabled = false

# Pprof listen address
# Default: "localhost"
#pprofHost = "localhost"

# Pprof port
# Default: 6060
#pprofPort = 6060
`
