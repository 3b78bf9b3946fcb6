// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/internal/models"
)

func TestRespondJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		data       any
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success with data",
			status:     http.StatusOK,
			data:       map[string]string{"message": "hello"},
			wantStatus: http.StatusOK,
			wantBody:   `{"message":"hello"}`,
		},
		{
			name:       "nil data",
			status:     http.StatusNoContent,
			data:       nil,
			wantStatus: http.StatusNoContent,
			wantBody:   "",
		},
		{
			name:       "error status with data",
			status:     http.StatusBadRequest,
			data:       ErrorResponse{Error: "bad request"},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"bad request"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			RespondJSON(rec, tt.status, tt.data)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.wantBody == "" {
				assert.Empty(t, strings.TrimSpace(rec.Body.String()))
			} else {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRespondDomainError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantInBody string
	}{
		{
			name:       "validation maps to 400",
			err:        fmt.Errorf("asin is malformed: %w", domain.ErrValidation),
			wantStatus: http.StatusBadRequest,
			wantInBody: "asin is malformed",
		},
		{
			name:       "book not found maps to 404",
			err:        models.ErrBookNotFound,
			wantStatus: http.StatusNotFound,
			wantInBody: "not found",
		},
		{
			name:       "request not found maps to 404",
			err:        models.ErrRequestNotFound,
			wantStatus: http.StatusNotFound,
			wantInBody: "not found",
		},
		{
			name:       "duplicate maps to 409",
			err:        domain.ErrDuplicateRequest,
			wantStatus: http.StatusConflict,
			wantInBody: "",
		},
		{
			name:       "already downloaded maps to 409",
			err:        fmt.Errorf("book is already marked downloaded: %w", domain.ErrAlreadyDownloaded),
			wantStatus: http.StatusConflict,
			wantInBody: "already",
		},
		{
			name:       "misconfigured maps to 409 with settings hint",
			err:        fmt.Errorf("prowlarr url missing: %w", domain.ErrMisconfigured),
			wantStatus: http.StatusConflict,
			wantInBody: "check settings",
		},
		{
			name:       "querying maps to 202",
			err:        domain.ErrQuerying,
			wantStatus: http.StatusAccepted,
			wantInBody: "",
		},
		{
			name:       "unknown error maps to 500 without detail",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantInBody: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			RespondDomainError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantInBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantInBody)
			}
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "disk on fire",
					"internal detail must not leak to clients")
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		ASIN string `json:"asin"`
	}

	t.Run("valid body", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"asin":"B00G3L1C9K"}`))
		rec := httptest.NewRecorder()

		var p payload
		ok := DecodeJSON(rec, req, &p)
		require.True(t, ok)
		assert.Equal(t, "B00G3L1C9K", p.ASIN)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"asin":`))
		rec := httptest.NewRecorder()

		var p payload
		ok := DecodeJSON(rec, req, &p)
		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid request body")
	})
}

func TestParseASIN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		param      string
		wantASIN   string
		wantOK     bool
		wantStatus int
	}{
		{name: "valid upper", param: "B00G3L1C9K", wantASIN: "B00G3L1C9K", wantOK: true},
		{name: "lowercase is canonicalized", param: "b00g3l1c9k", wantASIN: "B00G3L1C9K", wantOK: true},
		{name: "too short", param: "B00G3L1", wantOK: false, wantStatus: http.StatusBadRequest},
		{name: "illegal characters", param: "B00G3L1C9!", wantOK: false, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("asin", tt.param)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			rec := httptest.NewRecorder()

			asin, ok := ParseASIN(rec, req)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantASIN, asin)
			} else {
				assert.Equal(t, tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestParseInt64Param(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("sessionID", "42")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()

	id, ok := ParseInt64Param(rec, req, "sessionID", "session ID")
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rctx = chi.NewRouteContext()
	rctx.URLParams.Add("sessionID", "abc")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec = httptest.NewRecorder()

	_, ok = ParseInt64Param(rec, req, "sessionID", "session ID")
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid session ID")
}
