// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/audiobrr/internal/api"
	"github.com/autobrr/audiobrr/internal/buildinfo"
	"github.com/autobrr/audiobrr/internal/config"
	"github.com/autobrr/audiobrr/internal/database"
	"github.com/autobrr/audiobrr/internal/indexers"
	"github.com/autobrr/audiobrr/internal/metadata"
	"github.com/autobrr/audiobrr/internal/metrics"
	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/internal/services/importer"
	"github.com/autobrr/audiobrr/internal/services/monitor"
	"github.com/autobrr/audiobrr/internal/services/processor"
	"github.com/autobrr/audiobrr/internal/services/requests"
	"github.com/autobrr/audiobrr/internal/services/search"
)

const shutdownTimeout = 10 * time.Second

// RunServeCommand starts the API server and the background pipeline.
func RunServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start audiobrr",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file or directory")

	return cmd
}

func serve(configPath string) error {
	cfg, err := config.New(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyLogConfig(); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	cfg.WatchConfig()

	log.Info().
		Str("version", buildinfo.Version).
		Str("commit", buildinfo.Commit).
		Msg("Starting audiobrr")

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	settingsStore := models.NewSettingsStore(db)
	bookStore := models.NewBookStore(db)
	requestStore := models.NewRequestStore(db)
	importStore := models.NewImportStore(db)

	meta := metadata.NewService(bookStore)
	defer meta.Close()

	gateway := search.NewGateway(settingsStore)
	defer gateway.Close()

	registry := indexers.NewRegistry(indexers.NewMAM(settingsStore))

	processorService := processor.NewService(requestStore, bookStore, settingsStore)
	importerService := importer.NewService(importStore, bookStore, requestStore,
		settingsStore, meta, processorService)

	requestService := requests.NewService(requestStore, bookStore, settingsStore,
		meta, gateway, registry,
		requests.WithLibraryChecker(importerService),
		requests.WithWorkerCount(cfg.Config.DispatchWorkers),
	)

	monitorService := monitor.NewService(requestStore, settingsStore, processorService,
		monitor.WithInterval(time.Duration(cfg.Config.MonitorInterval)*time.Second),
		monitor.WithNotifier(absScanNotifier{settings: settingsStore}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	requestService.Start(ctx)
	defer requestService.Stop()
	importerService.Start(ctx)
	defer importerService.Stop()
	monitorService.Start(ctx)
	defer monitorService.Stop()

	var metricsServer *metrics.Server
	if cfg.Config.MetricsEnabled {
		manager := metrics.NewManager(requestStore, bookStore, monitorService)
		metricsServer = metrics.NewMetricsServer(manager,
			cfg.Config.MetricsHost, cfg.Config.MetricsPort, cfg.Config.MetricsBasicAuthUsers)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	api.StartPprofServer(cfg.Config)

	addr := fmt.Sprintf("%s:%d", cfg.Config.Host, cfg.Config.Port)
	server := api.NewServer(addr, &api.Dependencies{
		Requests:       requestService,
		Importer:       importerService,
		Processor:      processorService,
		Metadata:       meta,
		Settings:       settingsStore,
		Imports:        importStore,
		AllowedOrigins: cfg.Config.AllowedOrigins,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("API server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down API server cleanly")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shut down metrics server cleanly")
		}
	}

	return nil
}
