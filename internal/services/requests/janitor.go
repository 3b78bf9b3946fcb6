// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package requests

import (
	"time"

	"github.com/rs/zerolog/log"
)

const (
	janitorInterval = 6 * time.Hour

	// bookRetention matches the metadata refetch window. Books older than
	// this that nobody requested and nobody downloaded are cache leftovers.
	bookRetention = 7 * 24 * time.Hour
)

// janitor periodically reaps stale unrequested books from the metadata
// cache. Runs until the worker context is cancelled.
func (s *Service) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.workerCtx.Done():
			return
		case <-ticker.C:
			n, err := s.books.DeleteStale(s.workerCtx, bookRetention)
			if err != nil {
				log.Warn().Err(err).Msg("[REQUEST] book janitor sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("[REQUEST] reaped stale books")
			}
		}
	}
}
