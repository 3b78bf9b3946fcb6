// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// Config represents the process-level application configuration loaded from
// config.toml and AUDIOBRR__ environment overrides. Pipeline settings
// (quality bands, qBittorrent credentials, patterns) live in the settings
// table instead, because they are editable at runtime.
type Config struct {
	Version string

	Host    string `toml:"host" mapstructure:"host"`
	Port    int    `toml:"port" mapstructure:"port"`
	BaseURL string `toml:"baseUrl" mapstructure:"baseUrl"`

	// AllowedOrigins configures CORS for browser clients served from
	// another origin. Empty means same-origin only.
	AllowedOrigins []string `toml:"allowedOrigins" mapstructure:"allowedOrigins"`

	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	DatabasePath string `toml:"databasePath" mapstructure:"databasePath"`

	MetricsEnabled        bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost           string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort           int    `toml:"metricsPort" mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`

	PprofEnabled bool   `toml:"pprofEnabled" mapstructure:"pprofEnabled"`
	PprofHost    string `toml:"pprofHost" mapstructure:"pprofHost"`
	PprofPort    int    `toml:"pprofPort" mapstructure:"pprofPort"`

	// MonitorInterval is the download monitor cadence in seconds.
	MonitorInterval int `toml:"monitorInterval" mapstructure:"monitorInterval"`

	// DispatchWorkers bounds the background query/dispatch worker pool.
	DispatchWorkers int `toml:"dispatchWorkers" mapstructure:"dispatchWorkers"`
}
