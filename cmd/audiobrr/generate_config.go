// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/autobrr/audiobrr/internal/config"
)

// RunGenerateConfigCommand writes the default config.toml without starting
// the server, for provisioning tools and first-time setups.
func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default config.toml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := configDir
			if dir == "" {
				dir = config.GetDefaultConfigDir()
			}

			configPath := filepath.Join(dir, "config.toml")
			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Config file %s already exists. Skipping generation.\n", configPath)
				return nil
			}

			if err := config.WriteTemplate(configPath); err != nil {
				return err
			}
			cmd.Printf("Generated config file: %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory to write config.toml into")

	return cmd
}
