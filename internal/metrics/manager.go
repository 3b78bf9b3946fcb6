// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/internal/models"
)

type Manager struct {
	registry          *prometheus.Registry
	pipelineCollector *PipelineCollector
}

func NewManager(requests *models.RequestStore, books *models.BookStore, monitor MonitorProbe) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pipelineCollector := NewPipelineCollector(requests, books, monitor)
	registry.MustRegister(pipelineCollector)

	log.Info().Msg("Metrics manager initialized with pipeline collector")

	return &Manager{
		registry:          registry,
		pipelineCollector: pipelineCollector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}
