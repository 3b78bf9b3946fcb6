// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api assembles the HTTP surface: a chi router of thin JSON handlers
// over the pipeline services.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/internal/api/handlers"
	"github.com/autobrr/audiobrr/internal/api/middleware"
	"github.com/autobrr/audiobrr/internal/metadata"
	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/internal/services/importer"
	"github.com/autobrr/audiobrr/internal/services/processor"
	"github.com/autobrr/audiobrr/internal/services/requests"
)

// Dependencies carries everything the router needs. All fields are required
// unless noted.
type Dependencies struct {
	Requests  *requests.Service
	Importer  *importer.Service
	Processor *processor.Service
	Metadata  *metadata.Service
	Settings  *models.SettingsStore
	Imports   *models.ImportStore

	// AllowedOrigins configures CORS; empty means same-origin only.
	AllowedOrigins []string
}

type Server struct {
	addr       string
	router     chi.Router
	httpServer *http.Server
}

func NewServer(addr string, deps *Dependencies) *Server {
	return &Server{
		addr:   addr,
		router: NewRouter(deps),
	}
}

// NewRouter builds the chi router; split out so tests can walk routes
// without binding a socket.
func NewRouter(deps *Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(120 * time.Second))

	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   deps.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", middleware.UserHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler)
	}

	r.Use(middleware.Identity)
	r.Use(middleware.Compress)

	r.Route("/api", func(r chi.Router) {
		handlers.NewSystemHandler().Routes(r)

		r.Route("/requests", handlers.NewRequestsHandler(deps.Requests).Routes)
		r.Route("/search", handlers.NewSearchHandler(deps.Metadata, deps.Settings).Routes)
		r.Route("/settings", handlers.NewSettingsHandler(deps.Settings).Routes)
		r.Route("/imports", handlers.NewImportsHandler(deps.Importer, deps.Imports).Routes)
		r.Route("/library", handlers.NewLibraryHandler(deps.Processor).Routes)
	})

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("API server listening")
	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
