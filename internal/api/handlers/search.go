// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/autobrr/audiobrr/internal/metadata"
	"github.com/autobrr/audiobrr/internal/models"
)

// SearchHandler exposes metadata keyword search.
type SearchHandler struct {
	metadata *metadata.Service
	settings *models.SettingsStore
}

func NewSearchHandler(meta *metadata.Service, settings *models.SettingsStore) *SearchHandler {
	return &SearchHandler{metadata: meta, settings: settings}
}

func (h *SearchHandler) Routes(r chi.Router) {
	r.Get("/", h.search)
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		RespondError(w, http.StatusBadRequest, "q is required")
		return
	}

	region := strings.TrimSpace(r.URL.Query().Get("region"))
	if region == "" {
		region = h.settings.GetDefaultRegion(r.Context())
	}

	books, err := h.metadata.SearchBooks(r.Context(), query, region)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, books)
}
