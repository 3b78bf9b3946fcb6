// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/internal/buildinfo"
	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/pkg/audiobookshelf"
)

// absScanNotifier asks Audiobookshelf to rescan its library after the
// monitor lands a finished download. Settings are read per call so a
// freshly configured server picks them up without a restart.
type absScanNotifier struct {
	settings *models.SettingsStore
}

func (n absScanNotifier) NotifyLibraryChanged(ctx context.Context) {
	abs := n.settings.GetABSSettings(ctx)
	if abs.BaseURL == "" {
		return
	}

	client := audiobookshelf.NewClient(audiobookshelf.Config{
		Host:      abs.BaseURL,
		APIToken:  abs.APIToken,
		UserAgent: buildinfo.UserAgent,
	})
	if err := client.TriggerScan(ctx, abs.LibraryID); err != nil {
		log.Warn().Err(err).Msg("[MONITOR] audiobookshelf scan trigger failed")
	}
}
