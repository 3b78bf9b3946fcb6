// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/autobrr/audiobrr/internal/config"
)

// RunHealthcheckCommand probes the running server, for container health
// checks. Exit code 0 means healthy.
func RunHealthcheckCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			host := cfg.Config.Host
			if host == "" || host == "0.0.0.0" || host == "::" {
				host = "127.0.0.1"
			}
			url := fmt.Sprintf("http://%s:%d/api/health", host, cfg.Config.Port)

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(url)
			if err != nil {
				return fmt.Errorf("healthcheck failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("healthcheck failed: status %d", resp.StatusCode)
			}
			cmd.Println("OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file or directory")

	return cmd
}
