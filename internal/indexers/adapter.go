// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package indexers enriches aggregator search results with tracker-specific
// metadata the aggregator does not carry.
package indexers

import (
	"context"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/pkg/prowlarr"
)

// Adapter is one tracker-specific enricher. Setup runs once per book before
// any Matches/Edit calls; Matches claims individual sources; Edit mutates a
// claimed source in place.
type Adapter interface {
	Name() string
	Enabled(ctx context.Context) bool
	Setup(ctx context.Context, book *domain.Book) error
	Matches(ctx context.Context, source *prowlarr.Source) bool
	Edit(ctx context.Context, source *prowlarr.Source) error
}
