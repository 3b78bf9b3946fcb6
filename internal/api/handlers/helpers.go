// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/internal/models"
)

// ErrorResponse is the JSON shape of every API error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondJSON sends a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("Failed to encode JSON response")
		}
	}
}

// RespondError sends an error response.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

// RespondDomainError maps pipeline sentinels onto HTTP statuses: validation
// 400, not-found 404, duplicate/conflict/already-owned/misconfigured 409,
// in-flight query 202. Anything else is a 500 with a generic message.
func RespondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, models.ErrBookNotFound),
		errors.Is(err, models.ErrRequestNotFound),
		errors.Is(err, models.ErrImportSessionNotFound),
		errors.Is(err, models.ErrImportItemNotFound):
		RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateRequest),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAlreadyDownloaded):
		RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrMisconfigured):
		RespondError(w, http.StatusConflict, err.Error()+" (check settings)")
	case errors.Is(err, domain.ErrQuerying):
		RespondError(w, http.StatusAccepted, err.Error())
	default:
		log.Error().Err(err).Msg("Unhandled API error")
		RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

// DecodeJSON decodes the request body into dest. Returns false if decoding
// fails (error already sent to client).
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, dest *T) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// ParseStringParam extracts a trimmed URL parameter. Returns false when the
// parameter is missing (error already sent).
func ParseStringParam(w http.ResponseWriter, r *http.Request, paramName, displayName string) (string, bool) {
	value := strings.TrimSpace(chi.URLParam(r, paramName))
	if value == "" {
		RespondError(w, http.StatusBadRequest, displayName+" is required")
		return "", false
	}
	return value, true
}

// ParseInt64Param extracts an int64 URL parameter. Returns false when the
// parameter is missing or not a number (error already sent).
func ParseInt64Param(w http.ResponseWriter, r *http.Request, paramName, displayName string) (int64, bool) {
	str, ok := ParseStringParam(w, r, paramName, displayName)
	if !ok {
		return 0, false
	}
	value, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid "+displayName)
		return 0, false
	}
	return value, true
}

// ParseASIN extracts and validates the asin URL parameter, upper-cased.
// Returns false when missing or malformed (error already sent).
func ParseASIN(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw, ok := ParseStringParam(w, r, "asin", "ASIN")
	if !ok {
		return "", false
	}
	asin := strings.ToUpper(raw)
	if !domain.ValidASIN(asin) {
		RespondError(w, http.StatusBadRequest, "Invalid ASIN")
		return "", false
	}
	return asin, true
}
