// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexers

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/pkg/prowlarr"
)

// Registry holds adapters in registration order.
type Registry struct {
	adapters []Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

func (r *Registry) Register(a Adapter) {
	r.adapters = append(r.adapters, a)
}

// EnrichAll runs every enabled adapter over the sources. A failing or
// panicking adapter is isolated; the others still run. Sources are mutated
// in place.
func (r *Registry) EnrichAll(ctx context.Context, book *domain.Book, sources []prowlarr.Source) {
	for _, adapter := range r.adapters {
		r.runAdapter(ctx, adapter, book, sources)
	}
}

func (r *Registry) runAdapter(ctx context.Context, adapter Adapter, book *domain.Book, sources []prowlarr.Source) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("adapter", adapter.Name()).
				Msg("[ENRICH] adapter panicked")
		}
	}()

	if !adapter.Enabled(ctx) {
		return
	}

	if err := adapter.Setup(ctx, book); err != nil {
		log.Warn().Err(err).Str("adapter", adapter.Name()).Msg("[ENRICH] adapter setup failed")
		return
	}

	var claimed int
	for i := range sources {
		if !adapter.Matches(ctx, &sources[i]) {
			continue
		}
		claimed++
		if err := adapter.Edit(ctx, &sources[i]); err != nil {
			log.Warn().Err(err).Str("adapter", adapter.Name()).
				Str("guid", sources[i].GUID).Msg("[ENRICH] adapter edit failed")
		}
	}

	log.Debug().Str("adapter", adapter.Name()).Int("claimed", claimed).
		Msg("[ENRICH] adapter complete")
}
