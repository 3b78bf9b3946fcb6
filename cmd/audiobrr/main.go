// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/autobrr/audiobrr/internal/buildinfo"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "audiobrr",
		Short: "Audiobook request and acquisition orchestrator",
		Long: `audiobrr watches audiobook requests from metadata lookup through indexer
search, download, processing, and final placement in the library.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand())
	rootCmd.AddCommand(RunGenerateConfigCommand())
	rootCmd.AddCommand(RunHealthcheckCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func RunVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}
