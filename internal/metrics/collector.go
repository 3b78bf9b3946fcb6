// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: MIT

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/internal/models"
)

// MonitorProbe is the slice of the download monitor the collector reads.
type MonitorProbe interface {
	LastTick() time.Time
	LastTickDuration() time.Duration
}

// PipelineCollector reports request pipeline state straight from the stores
// on every scrape.
type PipelineCollector struct {
	requests *models.RequestStore
	books    *models.BookStore
	monitor  MonitorProbe

	requestsByStatusDesc    *prometheus.Desc
	booksDownloadedDesc     *prometheus.Desc
	monitorTickAgeDesc      *prometheus.Desc
	monitorTickDurationDesc *prometheus.Desc
}

func NewPipelineCollector(requests *models.RequestStore, books *models.BookStore, monitor MonitorProbe) *PipelineCollector {
	return &PipelineCollector{
		requests: requests,
		books:    books,
		monitor:  monitor,

		requestsByStatusDesc: prometheus.NewDesc(
			"audiobrr_requests_total",
			"Number of requests by processing status",
			[]string{"status"},
			nil,
		),
		booksDownloadedDesc: prometheus.NewDesc(
			"audiobrr_books_downloaded_total",
			"Number of books organized into the library",
			nil,
			nil,
		),
		monitorTickAgeDesc: prometheus.NewDesc(
			"audiobrr_monitor_last_tick_age_seconds",
			"Seconds since the download monitor last completed a tick",
			nil,
			nil,
		),
		monitorTickDurationDesc: prometheus.NewDesc(
			"audiobrr_monitor_tick_duration_seconds",
			"Duration of the download monitor's last tick",
			nil,
			nil,
		),
	}
}

func (c *PipelineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requestsByStatusDesc
	ch <- c.booksDownloadedDesc
	ch <- c.monitorTickAgeDesc
	ch <- c.monitorTickDurationDesc
}

func (c *PipelineCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if c.requests != nil {
		counts, err := c.requests.CountByStatus(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("Failed to count requests for metrics")
		}
		for status, count := range counts {
			ch <- prometheus.MustNewConstMetric(
				c.requestsByStatusDesc, prometheus.GaugeValue, float64(count), status)
		}
	}

	if c.books != nil {
		downloaded, err := c.books.CountDownloaded(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("Failed to count downloaded books for metrics")
		} else {
			ch <- prometheus.MustNewConstMetric(
				c.booksDownloadedDesc, prometheus.GaugeValue, float64(downloaded))
		}
	}

	if c.monitor != nil {
		if last := c.monitor.LastTick(); !last.IsZero() {
			ch <- prometheus.MustNewConstMetric(
				c.monitorTickAgeDesc, prometheus.GaugeValue, time.Since(last).Seconds())
			ch <- prometheus.MustNewConstMetric(
				c.monitorTickDurationDesc, prometheus.GaugeValue, c.monitor.LastTickDuration().Seconds())
		}
	}
}
