// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package requests

import (
	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/internal/domain"
)

// Events receives pipeline lifecycle notifications. Implementations must be
// fast and non-blocking; they run on the worker goroutines.
type Events interface {
	RequestCreated(r *domain.Request)
	DownloadStarted(r *domain.Request, sourceTitle string)
	DownloadFailed(r *domain.Request, reason string)
	RequestCompleted(r *domain.Request)
	RequestFailed(r *domain.Request, reason string)
}

// LogEvents is the default sink: structured log lines per event.
type LogEvents struct{}

func (LogEvents) RequestCreated(r *domain.Request) {
	log.Info().Str("asin", r.ASIN).Str("username", r.Username).
		Msg("[REQUEST] created")
}

func (LogEvents) DownloadStarted(r *domain.Request, sourceTitle string) {
	log.Info().Str("asin", r.ASIN).Str("username", r.Username).
		Str("source", sourceTitle).Msg("[REQUEST] download started")
}

func (LogEvents) DownloadFailed(r *domain.Request, reason string) {
	log.Warn().Str("asin", r.ASIN).Str("username", r.Username).
		Str("reason", reason).Msg("[REQUEST] download failed")
}

func (LogEvents) RequestCompleted(r *domain.Request) {
	log.Info().Str("asin", r.ASIN).Str("username", r.Username).
		Msg("[REQUEST] completed")
}

func (LogEvents) RequestFailed(r *domain.Request, reason string) {
	log.Warn().Str("asin", r.ASIN).Str("username", r.Username).
		Str("reason", reason).Msg("[REQUEST] failed")
}

var _ Events = LogEvents{}
