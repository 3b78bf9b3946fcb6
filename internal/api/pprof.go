// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/internal/domain"
)

// StartPprofServer exposes the standard pprof endpoints on a dedicated
// listener when profiling is enabled. The listener is never reachable
// through the API server.
func StartPprofServer(cfg *domain.Config) {
	if !cfg.PprofEnabled {
		return
	}

	addr := fmt.Sprintf("%s:%d", cfg.PprofHost, cfg.PprofPort)

	go func() {
		log.Info().Str("addr", addr).Msg("Starting pprof server")
		log.Info().Msgf("CPU profile: go tool pprof http://%s/debug/pprof/profile?seconds=30", addr)

		server := &http.Server{
			Addr:              addr,
			Handler:           http.DefaultServeMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		if err := server.ListenAndServe(); err != nil {
			log.Error().Err(err).Msg("Pprof server failed")
		}
	}()
}
