// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/autobrr/audiobrr/internal/api/middleware"
	"github.com/autobrr/audiobrr/internal/services/requests"
)

// RequestsHandler wraps the request pipeline service.
type RequestsHandler struct {
	service *requests.Service
}

func NewRequestsHandler(service *requests.Service) *RequestsHandler {
	return &RequestsHandler{service: service}
}

func (h *RequestsHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{asin}", func(r chi.Router) {
		r.Delete("/", h.delete)
		r.Post("/retry", h.retry)
		r.Post("/query", h.query)
	})
}

type createRequestBody struct {
	ASIN     string `json:"asin"`
	Username string `json:"username"`
	Region   string `json:"region"`
}

func (h *RequestsHandler) create(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if !DecodeJSON(w, r, &body) {
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		username = middleware.UserFrom(r.Context())
	}

	req, err := h.service.Create(r.Context(), body.ASIN, username, body.Region)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, req)
}

func (h *RequestsHandler) list(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))

	reqs, err := h.service.List(r.Context(), username)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, reqs)
}

func (h *RequestsHandler) delete(w http.ResponseWriter, r *http.Request) {
	asin, ok := ParseASIN(w, r)
	if !ok {
		return
	}
	allUsers := r.URL.Query().Get("all") == "true"

	if err := h.service.Delete(r.Context(), asin, middleware.UserFrom(r.Context()), allUsers); err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *RequestsHandler) retry(w http.ResponseWriter, r *http.Request) {
	asin, ok := ParseASIN(w, r)
	if !ok {
		return
	}

	req, err := h.service.Retry(r.Context(), asin, middleware.UserFrom(r.Context()))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, req)
}

type queryRequestBody struct {
	Force      bool `json:"force"`
	CachedOnly bool `json:"cachedOnly"`
	Dispatch   bool `json:"dispatch"`
}

// query runs the source query pipeline for one request. A concurrent query
// on the same ASIN answers 202 with state "querying".
func (h *RequestsHandler) query(w http.ResponseWriter, r *http.Request) {
	asin, ok := ParseASIN(w, r)
	if !ok {
		return
	}
	var body queryRequestBody
	if r.ContentLength > 0 && !DecodeJSON(w, r, &body) {
		return
	}

	result, err := h.service.QueryAndDispatch(r.Context(), asin, middleware.UserFrom(r.Context()), requests.QueryOptions{
		ForceRefresh: body.Force,
		OnlyCached:   body.CachedOnly,
		Dispatch:     body.Dispatch,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	status := http.StatusOK
	if result.State == requests.StateQuerying {
		status = http.StatusAccepted
	}
	RespondJSON(w, status, result)
}
