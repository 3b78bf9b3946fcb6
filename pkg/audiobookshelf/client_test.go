// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package audiobookshelf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchBody = `{
	"book": [
		{
			"libraryItem": {
				"id": "li_1",
				"media": {
					"metadata": {
						"title": "The Way of Kings",
						"asin": "B00ZVA2XWC",
						"authorName": "Brandon Sanderson"
					}
				}
			}
		}
	]
}`

func TestClientGetLibraries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/libraries", r.URL.Path)
		assert.Equal(t, "Bearer token123", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"libraries":[{"id":"lib_1","name":"Audiobooks","mediaType":"book"}]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{Host: srv.URL, APIToken: "token123"})

	libs, err := client.GetLibraries(context.Background())
	require.NoError(t, err)
	require.Len(t, libs, 1)
	assert.Equal(t, "lib_1", libs[0].ID)
	assert.Equal(t, "book", libs[0].MediaType)
}

func TestClientBookExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/libraries/lib_1/search", r.URL.Path)
		_, _ = w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	client := NewClient(Config{Host: srv.URL, APIToken: "token123"})
	ctx := context.Background()

	exists, err := client.BookExists(ctx, "lib_1", "B00ZVA2XWC", "Some Other Title")
	require.NoError(t, err)
	assert.True(t, exists, "ASIN match wins regardless of title")

	exists, err = client.BookExists(ctx, "lib_1", "B000000000", "the way of kings")
	require.NoError(t, err)
	assert.True(t, exists, "title match is case-insensitive")

	exists, err = client.BookExists(ctx, "lib_1", "B000000000", "Words of Radiance")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClientTriggerScan(t *testing.T) {
	var scanned bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/libraries/lib_1/scan", r.URL.Path)
		scanned = true
	}))
	defer srv.Close()

	client := NewClient(Config{Host: srv.URL, APIToken: "token123"})

	require.NoError(t, client.TriggerScan(context.Background(), "lib_1"))
	assert.True(t, scanned)

	require.Error(t, client.TriggerScan(context.Background(), ""))
}

func TestClientUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(Config{Host: srv.URL, APIToken: "bad"})

	_, err := client.GetLibraries(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}
