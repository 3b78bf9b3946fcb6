// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autobrr/audiobrr/internal/api/middleware"
	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/internal/services/importer"
)

// ImportsHandler wraps bulk import sessions and library reconciliation.
type ImportsHandler struct {
	service *importer.Service
	imports *models.ImportStore
}

func NewImportsHandler(service *importer.Service, imports *models.ImportStore) *ImportsHandler {
	return &ImportsHandler{service: service, imports: imports}
}

func (h *ImportsHandler) Routes(r chi.Router) {
	r.Get("/", h.listSessions)
	r.Post("/", h.startScan)
	r.Post("/reconcile", h.startReconcile)
	r.Get("/reconcile", h.latestReconcile)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.getSession)
		r.Delete("/", h.deleteSession)
		r.Post("/execute", h.executeSession)
		r.Patch("/items/{itemID}", h.patchItem)
	})
}

type startScanBody struct {
	RootPath string `json:"rootPath"`
}

func (h *ImportsHandler) startScan(w http.ResponseWriter, r *http.Request) {
	var body startScanBody
	if !DecodeJSON(w, r, &body) {
		return
	}

	session, err := h.service.StartScan(r.Context(), body.RootPath, middleware.UserFrom(r.Context()))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, session)
}

func (h *ImportsHandler) startReconcile(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.StartReconcile(r.Context(), middleware.UserFrom(r.Context()))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, session)
}

func (h *ImportsHandler) latestReconcile(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.LatestReconcileSession(r.Context())
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if session == nil {
		RespondError(w, http.StatusNotFound, "no reconciliation session")
		return
	}
	full, err := h.imports.GetSessionWithItems(r.Context(), session.ID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, full)
}

func (h *ImportsHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.imports.ListSessions(r.Context())
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, sessions)
}

func (h *ImportsHandler) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseInt64Param(w, r, "sessionID", "session ID")
	if !ok {
		return
	}
	session, err := h.imports.GetSessionWithItems(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, session)
}

func (h *ImportsHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseInt64Param(w, r, "sessionID", "session ID")
	if !ok {
		return
	}
	if err := h.imports.DeleteSession(r.Context(), id); err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type executeSessionBody struct {
	MoveFiles bool `json:"moveFiles"`
}

func (h *ImportsHandler) executeSession(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseInt64Param(w, r, "sessionID", "session ID")
	if !ok {
		return
	}
	var body executeSessionBody
	if r.ContentLength > 0 && !DecodeJSON(w, r, &body) {
		return
	}

	if err := h.service.ExecuteSession(r.Context(), id, body.MoveFiles, middleware.UserFrom(r.Context())); err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, map[string]string{"status": "importing"})
}

type patchItemBody struct {
	// ASIN overrides the matcher's verdict.
	ASIN string `json:"asin"`
	// Skip drops the item from the session.
	Skip bool `json:"skip"`
	// Import executes this single item immediately.
	Import    bool `json:"import"`
	MoveFiles bool `json:"moveFiles"`
}

func (h *ImportsHandler) patchItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := ParseInt64Param(w, r, "itemID", "item ID")
	if !ok {
		return
	}
	var body patchItemBody
	if !DecodeJSON(w, r, &body) {
		return
	}

	ctx := r.Context()
	switch {
	case body.Skip:
		if err := h.service.SkipItem(ctx, itemID); err != nil {
			RespondDomainError(w, err)
			return
		}
	case body.ASIN != "":
		if err := h.service.AssignItem(ctx, itemID, body.ASIN); err != nil {
			RespondDomainError(w, err)
			return
		}
	case body.Import:
	default:
		RespondError(w, http.StatusBadRequest, "one of asin, skip, or import is required")
		return
	}

	if body.Import {
		if err := h.service.ExecuteItem(ctx, itemID, body.MoveFiles, middleware.UserFrom(ctx)); err != nil {
			RespondDomainError(w, err)
			return
		}
	}

	item, err := h.imports.GetItem(ctx, itemID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, item)
}
