// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Server serves /metrics on its own listener, kept apart from the API so
// scrapes never compete with request traffic.
type Server struct {
	server         *http.Server
	basicAuthUsers map[string]string
}

// NewMetricsServer builds the listener. basicAuthUsers is a comma-separated
// "user:password" list; empty disables auth. Malformed entries are skipped.
func NewMetricsServer(manager *Manager, host string, port int, basicAuthUsers string) *Server {
	users := make(map[string]string)
	for _, entry := range strings.Split(basicAuthUsers, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		user, pass, ok := strings.Cut(entry, ":")
		if !ok || user == "" || pass == "" {
			log.Warn().Str("entry", entry).Msg("Skipping malformed metrics basic auth entry")
			continue
		}
		users[user] = pass
	}

	s := &Server{basicAuthUsers: users}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.withAuth(promhttp.HandlerFor(
		manager.GetRegistry(),
		promhttp.HandlerOpts{},
	)))

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	if len(s.basicAuthUsers) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || s.basicAuthUsers[user] != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.server.Addr).Msg("Metrics server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
