// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package requests

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Start launches the dispatch workers and the book janitor. Stop must be
// called before process exit.
func (s *Service) Start(ctx context.Context) {
	if s.workerCancel != nil {
		return
	}
	s.workerCtx, s.workerCancel = context.WithCancel(context.WithoutCancel(ctx))

	for i := 0; i < s.workers; i++ {
		id := i
		s.workerWg.Go(func() {
			s.worker(id)
		})
	}
	s.workerWg.Go(func() {
		s.janitor()
	})

	log.Info().Int("workers", s.workers).Msg("[REQUEST] dispatch workers started")
}

// Stop cancels the workers and waits for in-flight dispatches to finish.
func (s *Service) Stop() {
	if s.workerCancel == nil {
		return
	}
	s.workerCancel()
	s.workerWg.Wait()
	s.workerCancel = nil
	log.Info().Msg("[REQUEST] dispatch workers stopped")
}

// enqueue hands a dispatch job to the pool without blocking. A full queue
// drops the job; the caller can retry from the UI.
func (s *Service) enqueue(asin, username string) {
	select {
	case s.queue <- job{asin: asin, username: username}:
	default:
		log.Warn().Str("asin", asin).Str("username", username).
			Msg("[REQUEST] dispatch queue full, dropping job")
	}
}

func (s *Service) worker(id int) {
	log.Debug().Int("worker", id).Msg("[REQUEST] worker started")
	defer log.Debug().Int("worker", id).Msg("[REQUEST] worker stopped")

	for {
		select {
		case <-s.workerCtx.Done():
			return
		case j := <-s.queue:
			s.runJob(j)
		}
	}
}

func (s *Service) runJob(j job) {
	_, err := s.QueryAndDispatch(s.workerCtx, j.asin, j.username, QueryOptions{
		Dispatch: true,
	})
	if err != nil {
		log.Warn().Err(err).Str("asin", j.asin).Str("username", j.username).
			Msg("[REQUEST] background dispatch failed")
	}
}
