// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/pkg/prowlarr"
)

const (
	mamBaseURL       = "https://www.myanonamouse.net"
	mamInfoPrefix    = "https://www.myanonamouse.net/t/"
	mamAudiobookCat  = "13"
	mamResultsPerReq = "100"
)

// MAM enriches MyAnonamouse sources with author/narrator lists, filetype,
// and freeleech-style flags from the tracker's own search endpoint.
type MAM struct {
	settings   *models.SettingsStore
	httpClient *http.Client
	baseURL    string

	// results maps tracker torrent IDs to their search rows, filled by Setup.
	results map[string]mamResult
}

type mamResult struct {
	ID                json.Number `json:"id"`
	AuthorInfo        string      `json:"author_info"`
	NarratorInfo      string      `json:"narrator_info"`
	Filetype          string      `json:"filetype"`
	PersonalFreeleech int         `json:"personal_freeleech"`
	Free              int         `json:"free"`
	FLVIP             int         `json:"fl_vip"`
	VIP               int         `json:"vip"`
}

func NewMAM(settings *models.SettingsStore) *MAM {
	return &MAM{
		settings:   settings,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    mamBaseURL,
	}
}

func (m *MAM) Name() string { return "MyAnonamouse" }

func (m *MAM) Enabled(ctx context.Context) bool {
	if !m.settings.GetBool(ctx, models.KeyMAMEnabled, false) {
		return false
	}
	return m.settings.GetDefault(ctx, models.KeyMAMSessionID, "") != ""
}

// Setup queries MAM's JSON search for the book title and indexes the rows by
// torrent ID for Edit.
func (m *MAM) Setup(ctx context.Context, book *domain.Book) error {
	m.results = make(map[string]mamResult)

	params := url.Values{}
	params.Set("tor[text]", book.Title)
	params.Add("tor[main_cat][]", mamAudiobookCat)
	params.Set("tor[searchIn]", "torrents")
	params.Set("tor[srchIn][author]", "true")
	params.Set("tor[srchIn][title]", "true")
	params.Set("tor[searchType]", "active")
	params.Set("startNumber", "0")
	params.Set("perpage", mamResultsPerReq)

	endpoint := m.baseURL + "/tor/js/loadSearchJSONbasic.php?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build MAM request")
	}
	req.AddCookie(&http.Cookie{
		Name:  "mam_id",
		Value: m.settings.GetDefault(ctx, models.KeyMAMSessionID, ""),
	})

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "MAM search failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return errors.New("MAM session rejected (403), refresh mam_session_id")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("MAM search returned status %d", resp.StatusCode)
	}

	var payload struct {
		Error string      `json:"error"`
		Data  []mamResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return errors.Wrap(err, "failed to decode MAM response")
	}
	if payload.Error != "" {
		return errors.Errorf("MAM returned error: %s", payload.Error)
	}

	for _, row := range payload.Data {
		m.results[row.ID.String()] = row
	}
	return nil
}

// Matches claims sources whose info URL points at a MAM torrent page.
func (m *MAM) Matches(_ context.Context, source *prowlarr.Source) bool {
	return strings.HasPrefix(source.InfoURL, mamInfoPrefix)
}

// Edit fills book metadata and flags from the Setup results. The tracker ID
// is the last path segment of the source GUID.
func (m *MAM) Edit(_ context.Context, source *prowlarr.Source) error {
	parts := strings.Split(strings.TrimRight(source.GUID, "/"), "/")
	id := parts[len(parts)-1]

	row, ok := m.results[id]
	if !ok {
		return nil
	}

	if source.BookMetadata == nil {
		source.BookMetadata = &prowlarr.BookMetadata{}
	}

	source.BookMetadata.Authors = decodeNameMap(row.AuthorInfo)
	source.BookMetadata.Narrators = decodeNameMap(row.NarratorInfo)
	source.BookMetadata.Filetype = row.Filetype

	flags := make(map[string]struct{}, len(source.IndexerFlags)+4)
	for _, f := range source.IndexerFlags {
		flags[f] = struct{}{}
	}
	if row.PersonalFreeleech == 1 {
		flags["personal_freeleech"] = struct{}{}
		flags["freeleech"] = struct{}{}
	}
	if row.Free == 1 {
		flags["free"] = struct{}{}
		flags["freeleech"] = struct{}{}
	}
	if row.FLVIP == 1 {
		flags["fl_vip"] = struct{}{}
		flags["freeleech"] = struct{}{}
	}
	if row.VIP == 1 {
		flags["vip"] = struct{}{}
	}

	source.IndexerFlags = source.IndexerFlags[:0]
	for f := range flags {
		source.IndexerFlags = append(source.IndexerFlags, f)
	}
	sort.Strings(source.IndexerFlags)
	return nil
}

// decodeNameMap parses MAM's stringified-JSON id->name maps into name lists.
func decodeNameMap(raw string) []string {
	if raw == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	names := make([]string, 0, len(m))
	for _, name := range m {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// SetBaseURL points the adapter at a different host. Tests only.
func (m *MAM) SetBaseURL(u string) {
	m.baseURL = strings.TrimRight(u, "/")
}

var _ Adapter = (*MAM)(nil)
