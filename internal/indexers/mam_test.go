// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/audiobrr/internal/database"
	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/internal/testdb"
	"github.com/autobrr/audiobrr/pkg/prowlarr"
)

func newMAMSettings(t *testing.T) *models.SettingsStore {
	t.Helper()

	path := testdb.PathFromTemplate(t, "indexers", "indexers.db")
	db, err := database.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	settings := models.NewSettingsStore(db)
	ctx := context.Background()
	require.NoError(t, settings.SetBool(ctx, models.KeyMAMEnabled, true))
	require.NoError(t, settings.Set(ctx, models.KeyMAMSessionID, "session-cookie"))
	return settings
}

const mamSearchBody = `{
	"data": [
		{
			"id": 123456,
			"author_info": "{\"101\":\"Brandon Sanderson\"}",
			"narrator_info": "{\"201\":\"Michael Kramer\",\"202\":\"Kate Reading\"}",
			"filetype": "m4b",
			"personal_freeleech": 0,
			"free": 1,
			"fl_vip": 0,
			"vip": 1
		}
	]
}`

func TestMAMEnrichment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tor/js/loadSearchJSONbasic.php", r.URL.Path)
		cookie, err := r.Cookie("mam_id")
		require.NoError(t, err)
		assert.Equal(t, "session-cookie", cookie.Value)
		assert.Equal(t, "The Way of Kings", r.URL.Query().Get("tor[text]"))
		_, _ = w.Write([]byte(mamSearchBody))
	}))
	defer srv.Close()

	adapter := NewMAM(newMAMSettings(t))
	adapter.SetBaseURL(srv.URL)
	ctx := context.Background()

	require.True(t, adapter.Enabled(ctx))

	book := &domain.Book{ASIN: "B00ZVA2XWC", Title: "The Way of Kings"}
	require.NoError(t, adapter.Setup(ctx, book))

	claimed := prowlarr.Source{
		GUID:         "https://www.myanonamouse.net/t/123456",
		InfoURL:      "https://www.myanonamouse.net/t/123456",
		IndexerFlags: []string{"existing"},
	}
	other := prowlarr.Source{
		GUID:    "https://othertracker.example/t/99",
		InfoURL: "https://othertracker.example/t/99",
	}

	assert.True(t, adapter.Matches(ctx, &claimed))
	assert.False(t, adapter.Matches(ctx, &other))

	require.NoError(t, adapter.Edit(ctx, &claimed))
	require.NotNil(t, claimed.BookMetadata)
	assert.Equal(t, []string{"Brandon Sanderson"}, claimed.BookMetadata.Authors)
	assert.Equal(t, []string{"Kate Reading", "Michael Kramer"}, claimed.BookMetadata.Narrators)
	assert.Equal(t, "m4b", claimed.BookMetadata.Filetype)
	assert.ElementsMatch(t, []string{"existing", "free", "freeleech", "vip"}, claimed.IndexerFlags)
}

func TestMAMDisabledWithoutSession(t *testing.T) {
	path := testdb.PathFromTemplate(t, "indexers", "indexers2.db")
	db, err := database.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	settings := models.NewSettingsStore(db)
	ctx := context.Background()
	require.NoError(t, settings.SetBool(ctx, models.KeyMAMEnabled, true))

	adapter := NewMAM(settings)
	assert.False(t, adapter.Enabled(ctx), "enabled flag without a session id stays off")
}

// panicAdapter blows up in Setup to prove registry isolation.
type panicAdapter struct{}

func (panicAdapter) Name() string                                        { return "panicky" }
func (panicAdapter) Enabled(context.Context) bool                        { return true }
func (panicAdapter) Setup(context.Context, *domain.Book) error           { panic("boom") }
func (panicAdapter) Matches(context.Context, *prowlarr.Source) bool      { return true }
func (panicAdapter) Edit(context.Context, *prowlarr.Source) error        { return nil }

// taggingAdapter marks every source it sees.
type taggingAdapter struct{}

func (taggingAdapter) Name() string                                   { return "tagger" }
func (taggingAdapter) Enabled(context.Context) bool                   { return true }
func (taggingAdapter) Setup(context.Context, *domain.Book) error      { return nil }
func (taggingAdapter) Matches(context.Context, *prowlarr.Source) bool { return true }
func (taggingAdapter) Edit(_ context.Context, s *prowlarr.Source) error {
	s.IndexerFlags = append(s.IndexerFlags, "tagged")
	return nil
}

func TestRegistryIsolatesPanics(t *testing.T) {
	registry := NewRegistry(panicAdapter{}, taggingAdapter{})

	sources := []prowlarr.Source{{GUID: "g1"}, {GUID: "g2"}}
	registry.EnrichAll(context.Background(), &domain.Book{Title: "Anything"}, sources)

	for _, s := range sources {
		assert.Contains(t, s.IndexerFlags, "tagged", "later adapters run despite an earlier panic")
	}
}
