// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autobrr/audiobrr/internal/buildinfo"
)

// SystemHandler serves health and version probes.
type SystemHandler struct{}

func NewSystemHandler() *SystemHandler {
	return &SystemHandler{}
}

func (h *SystemHandler) Routes(r chi.Router) {
	r.Get("/health", h.health)
	r.Get("/version", h.version)
}

func (h *SystemHandler) health(w http.ResponseWriter, _ *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SystemHandler) version(w http.ResponseWriter, _ *http.Request) {
	data, err := buildinfo.JSON()
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
