// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/audiobrr/internal/domain"
)

const audimetaBookBody = `{
	"asin": "B00ZVA2XWC",
	"title": "The Way of Kings",
	"authors": [{"name": "Brandon Sanderson"}],
	"narrators": [{"name": "Michael Kramer"}],
	"imageUrl": "https://img.example/cover.jpg",
	"releaseDate": "2010-08-31",
	"lengthMinutes": 2734
}`

// fakeBookStore is an in-memory BookStorer.
type fakeBookStore struct {
	mu    sync.Mutex
	books map[string]*domain.Book
}

func newFakeBookStore() *fakeBookStore {
	return &fakeBookStore{books: make(map[string]*domain.Book)}
}

func (f *fakeBookStore) GetExisting(_ context.Context, asins []string, _ time.Duration) (map[string]*domain.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*domain.Book)
	for _, asin := range asins {
		if b, ok := f.books[asin]; ok {
			out[asin] = b
		}
	}
	return out, nil
}

func (f *fakeBookStore) UpsertMany(_ context.Context, books []*domain.Book) ([]*domain.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range books {
		f.books[b.ASIN] = b
	}
	return books, nil
}

func TestServiceGetBookFallsBackToAudnexus(t *testing.T) {
	audimeta := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer audimeta.Close()

	var audnexusHits int
	audnexus := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		audnexusHits++
		assert.Equal(t, "/books/B00ZVA2XWC", r.URL.Path)
		assert.Equal(t, "us", r.URL.Query().Get("region"))
		_, _ = w.Write([]byte(`{
			"asin": "B00ZVA2XWC",
			"title": "The Way of Kings",
			"authors": [{"name": "Brandon Sanderson"}],
			"narrators": [],
			"image": "https://img.example/audnexus.jpg",
			"releaseDate": "2010-08-31T00:00:00Z",
			"runtimeLengthMin": 2734
		}`))
	}))
	defer audnexus.Close()

	svc := NewService(newFakeBookStore(), WithBaseURLs(audimeta.URL, audnexus.URL, ""))
	defer svc.Close()

	book, err := svc.GetBook(context.Background(), "B00ZVA2XWC", "us")
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, "https://img.example/audnexus.jpg", book.CoverURL)
	assert.Equal(t, 1, audnexusHits)
}

func TestServiceGetBookSoftMiss(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFound.Close()

	svc := NewService(newFakeBookStore(), WithBaseURLs(notFound.URL, notFound.URL, ""))
	defer svc.Close()

	book, err := svc.GetBook(context.Background(), "B000000000", "us")
	require.NoError(t, err, "provider misses are soft")
	assert.Nil(t, book)
}

func TestServiceGetBookNonJSONIsSoft(t *testing.T) {
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer garbage.Close()

	svc := NewService(newFakeBookStore(), WithBaseURLs(garbage.URL, garbage.URL, ""))
	defer svc.Close()

	book, err := svc.GetBook(context.Background(), "B000000000", "us")
	require.NoError(t, err)
	assert.Nil(t, book)
}

func TestServiceResolveBookUsesStoreFirst(t *testing.T) {
	var providerHits int
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerHits++
		_, _ = w.Write([]byte(audimetaBookBody))
	}))
	defer provider.Close()

	store := newFakeBookStore()
	svc := NewService(store, WithBaseURLs(provider.URL, provider.URL, ""))
	defer svc.Close()
	ctx := context.Background()

	book, err := svc.ResolveBook(ctx, "B00ZVA2XWC", "us")
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, 1, providerHits)

	// Second resolve is served from the store.
	_, err = svc.ResolveBook(ctx, "B00ZVA2XWC", "us")
	require.NoError(t, err)
	assert.Equal(t, 1, providerHits)
}

func TestServiceResolveBookNotFound(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFound.Close()

	svc := NewService(newFakeBookStore(), WithBaseURLs(notFound.URL, notFound.URL, ""))
	defer svc.Close()

	_, err := svc.ResolveBook(context.Background(), "B000000000", "us")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestServiceSearchMemoized(t *testing.T) {
	var searchHits int
	mux := http.NewServeMux()
	mux.HandleFunc("/1.0/catalog/products", func(w http.ResponseWriter, r *http.Request) {
		searchHits++
		assert.Equal(t, "way of kings", r.URL.Query().Get("keywords"))
		_, _ = w.Write([]byte(`{"products":[{"asin":"B00ZVA2XWC"},{"asin":"B08G9PRS1K"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := NewService(newFakeBookStore(), WithBaseURLs("", "", srv.URL))
	defer svc.Close()

	ctx := context.Background()
	asins, err := svc.Search(ctx, "way of kings", "us")
	require.NoError(t, err)
	require.Equal(t, []string{"B00ZVA2XWC", "B08G9PRS1K"}, asins)

	_, err = svc.Search(ctx, "Way Of Kings", "us")
	require.NoError(t, err)
	assert.Equal(t, 1, searchHits, "case-insensitive key hits the cache")
}

func TestServiceSearchBooksOrdersAndPersists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/1.0/catalog/products", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"products":[{"asin":"B000000002"},{"asin":"B000000001"}]}`))
	})
	mux.HandleFunc("/book/", func(w http.ResponseWriter, r *http.Request) {
		asin := r.URL.Path[len("/book/"):]
		_, _ = w.Write([]byte(`{
			"asin": "` + asin + `",
			"title": "Book ` + asin + `",
			"authors": [{"name": "Someone"}],
			"narrators": [],
			"releaseDate": "2020-01-01"
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := newFakeBookStore()
	svc := NewService(store, WithBaseURLs(srv.URL, srv.URL, srv.URL))
	defer svc.Close()

	books, err := svc.SearchBooks(context.Background(), "anything", "us")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "B000000002", books[0].ASIN, "catalog order is preserved")
	assert.Equal(t, "B000000001", books[1].ASIN)

	store.mu.Lock()
	assert.Len(t, store.books, 2, "fetched books are persisted")
	store.mu.Unlock()
}

func TestServiceSuggestions(t *testing.T) {
	var hits int
	mux := http.NewServeMux()
	mux.HandleFunc("/1.0/searchsuggestions", func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "way of", r.URL.Query().Get("key_strokes"))
		_, _ = w.Write([]byte(`{"model":{"items":[
			{"model":{"product_metadata":{"title":{"value":"The Way of Kings"}}}},
			{"model":{"product_metadata":{"title":{"value":""}}}}
		]}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := NewService(newFakeBookStore(), WithBaseURLs("", "", srv.URL))
	defer svc.Close()
	ctx := context.Background()

	titles, err := svc.Suggestions(ctx, "way of", "us")
	require.NoError(t, err)
	assert.Equal(t, []string{"The Way of Kings"}, titles)

	_, err = svc.Suggestions(ctx, "way of", "us")
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}
