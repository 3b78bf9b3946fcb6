// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autobrr/audiobrr/internal/services/processor"
)

// LibraryHandler exposes maintenance operations on organized books.
type LibraryHandler struct {
	processor *processor.Service
}

func NewLibraryHandler(proc *processor.Service) *LibraryHandler {
	return &LibraryHandler{processor: proc}
}

func (h *LibraryHandler) Routes(r chi.Router) {
	r.Post("/{asin}/reorganize", h.reorganize)
}

// reorganize re-applies the current folder and file patterns to a book that
// is already in the library.
func (h *LibraryHandler) reorganize(w http.ResponseWriter, r *http.Request) {
	asin, ok := ParseASIN(w, r)
	if !ok {
		return
	}

	dest, err := h.processor.Reorganize(r.Context(), asin)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"path": dest})
}
