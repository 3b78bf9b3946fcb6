// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/audiobrr/internal/domain"
)

// Persisted setting keys. All values are strings; typed getters layer above.
const (
	KeyLibraryPath        = "library_path"
	KeyFolderPattern      = "folder_pattern"
	KeyFilePattern        = "file_pattern"
	KeyUseSeriesFolders   = "use_series_folders"
	KeyReviewBeforeImport = "review_before_import"

	KeyQbitHost           = "qbit_host"
	KeyQbitPort           = "qbit_port"
	KeyQbitUser           = "qbit_user"
	KeyQbitPass           = "qbit_pass"
	KeyQbitCategory       = "qbit_category"
	KeyQbitSavePath       = "qbit_save_path"
	KeyQbitEnabled        = "qbit_enabled"
	KeyQbitCompleteAction = "qbit_complete_action"

	KeyProwlarrBaseURL    = "prowlarr_base_url"
	KeyProwlarrAPIKey     = "prowlarr_api_key"
	KeyProwlarrCategories = "prowlarr_categories"
	KeyProwlarrIndexers   = "prowlarr_indexers"
	KeyProwlarrSourceTTL  = "prowlarr_source_ttl"

	KeyQualityFLAC         = "quality_flac"
	KeyQualityM4B          = "quality_m4b"
	KeyQualityMP3          = "quality_mp3"
	KeyQualityUnknownAudio = "quality_unknown_audio"
	KeyQualityUnknown      = "quality_unknown"
	KeyMinSeeders          = "min_seeders"
	KeyNameExistsRatio     = "name_exists_ratio"
	KeyTitleExistsRatio    = "title_exists_ratio"
	KeyIndexerFlags        = "indexer_flags"
	KeyRankWeightQuality   = "ranking_weight_quality"
	KeyRankWeightSeeders   = "ranking_weight_seeders"
	KeyRankWeightFlags     = "ranking_weight_flags"
	KeyRankWeightTitle     = "ranking_weight_title"

	KeyAutoDownload  = "auto_download"
	KeyDefaultRegion = "default_region"

	KeyABSBaseURL         = "abs_base_url"
	KeyABSAPIToken        = "abs_api_token"
	KeyABSLibraryID       = "abs_library_id"
	KeyABSCheckDownloaded = "abs_check_downloaded"

	KeyMAMEnabled   = "mam_enabled"
	KeyMAMSessionID = "mam_session_id"
)

// Complete actions for finished downloads.
const (
	CompleteActionCopy     = "copy"
	CompleteActionHardlink = "hardlink"
	CompleteActionMove     = "move"
)

const (
	DefaultFolderPattern = "{author}/{title} ({year})"
	DefaultFilePattern   = "{title}-{year}-{part}"
)

// QualityBand is an implied-bitrate window in kbit/s.
type QualityBand struct {
	FromKbits int `json:"fromKbits"`
	ToKbits   int `json:"toKbits"`
}

// Contains reports whether kbits falls inside the band.
func (b QualityBand) Contains(kbits float64) bool {
	return kbits >= float64(b.FromKbits) && kbits <= float64(b.ToKbits)
}

// QualityBands maps detected file types to their acceptable bitrate windows.
type QualityBands struct {
	FLAC         QualityBand `json:"flac"`
	M4B          QualityBand `json:"m4b"`
	MP3          QualityBand `json:"mp3"`
	UnknownAudio QualityBand `json:"unknownAudio"`
	Unknown      QualityBand `json:"unknown"`
}

// RankingWeights are the configurable weights of the combined source score.
type RankingWeights struct {
	Quality float64 `json:"quality"`
	Seeders float64 `json:"seeders"`
	Flags   float64 `json:"flags"`
	Title   float64 `json:"title"`
}

// FlagScore awards a bonus when a source carries the (lowercased) flag.
type FlagScore struct {
	Flag  string  `json:"flag"`
	Score float64 `json:"score"`
}

// RankingSettings bundles everything the ranking engine reads.
type RankingSettings struct {
	Bands            QualityBands
	Weights          RankingWeights
	FlagScores       []FlagScore
	MinSeeders       int
	NameExistsRatio  int
	TitleExistsRatio int
}

func parseBand(encoded string, def QualityBand) QualityBand {
	from, to, ok := strings.Cut(encoded, "|")
	if !ok {
		return def
	}
	f, err1 := strconv.Atoi(strings.TrimSpace(from))
	t, err2 := strconv.Atoi(strings.TrimSpace(to))
	if err1 != nil || err2 != nil || f < 0 || t < f {
		return def
	}
	return QualityBand{FromKbits: f, ToKbits: t}
}

// EncodeBand renders a band as "from|to" for storage.
func EncodeBand(b QualityBand) string {
	return fmt.Sprintf("%d|%d", b.FromKbits, b.ToKbits)
}

// GetQualityBands returns the configured bands with sane defaults.
func (s *SettingsStore) GetQualityBands(ctx context.Context) QualityBands {
	return QualityBands{
		FLAC:         parseBand(s.GetDefault(ctx, KeyQualityFLAC, ""), QualityBand{FromKbits: 400, ToKbits: 1411}),
		M4B:          parseBand(s.GetDefault(ctx, KeyQualityM4B, ""), QualityBand{FromKbits: 30, ToKbits: 160}),
		MP3:          parseBand(s.GetDefault(ctx, KeyQualityMP3, ""), QualityBand{FromKbits: 30, ToKbits: 350}),
		UnknownAudio: parseBand(s.GetDefault(ctx, KeyQualityUnknownAudio, ""), QualityBand{FromKbits: 30, ToKbits: 350}),
		Unknown:      parseBand(s.GetDefault(ctx, KeyQualityUnknown, ""), QualityBand{FromKbits: 0, ToKbits: 0}),
	}
}

// GetIndexerFlagScores decodes the JSON flag score list; malformed or absent
// configuration yields an empty list.
func (s *SettingsStore) GetIndexerFlagScores(ctx context.Context) []FlagScore {
	raw := s.GetDefault(ctx, KeyIndexerFlags, "")
	if raw == "" {
		return nil
	}
	var scores []FlagScore
	if err := json.Unmarshal([]byte(raw), &scores); err != nil {
		return nil
	}
	for i := range scores {
		scores[i].Flag = strings.ToLower(strings.TrimSpace(scores[i].Flag))
	}
	return scores
}

// GetRankingSettings snapshots everything the ranking engine needs in one
// read, so a config edit mid-rank cannot mix old and new values.
func (s *SettingsStore) GetRankingSettings(ctx context.Context) RankingSettings {
	return RankingSettings{
		Bands:      s.GetQualityBands(ctx),
		FlagScores: s.GetIndexerFlagScores(ctx),
		Weights: RankingWeights{
			Quality: s.GetFloat(ctx, KeyRankWeightQuality, 0.40),
			Seeders: s.GetFloat(ctx, KeyRankWeightSeeders, 0.25),
			Flags:   s.GetFloat(ctx, KeyRankWeightFlags, 0.15),
			Title:   s.GetFloat(ctx, KeyRankWeightTitle, 0.20),
		},
		MinSeeders:       s.GetInt(ctx, KeyMinSeeders, 1),
		NameExistsRatio:  s.GetInt(ctx, KeyNameExistsRatio, 60),
		TitleExistsRatio: s.GetInt(ctx, KeyTitleExistsRatio, 60),
	}
}

// ProwlarrSettings configures the aggregator gateway.
type ProwlarrSettings struct {
	BaseURL    string
	APIKey     string
	Categories []int
	Indexers   []int
	SourceTTL  time.Duration
}

// Validate returns domain.ErrMisconfigured when the aggregator cannot be
// queried with the current settings.
func (p ProwlarrSettings) Validate() error {
	if strings.TrimSpace(p.BaseURL) == "" {
		return fmt.Errorf("prowlarr base URL is not set: %w", domain.ErrMisconfigured)
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return fmt.Errorf("prowlarr API key is not set: %w", domain.ErrMisconfigured)
	}
	return nil
}

func parseIntList(raw string) []int {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func (s *SettingsStore) GetProwlarrSettings(ctx context.Context) ProwlarrSettings {
	ttlSeconds := s.GetInt(ctx, KeyProwlarrSourceTTL, 24*60*60)
	return ProwlarrSettings{
		BaseURL:    s.GetDefault(ctx, KeyProwlarrBaseURL, ""),
		APIKey:     s.GetDefault(ctx, KeyProwlarrAPIKey, ""),
		Categories: parseIntList(s.GetDefault(ctx, KeyProwlarrCategories, "")),
		Indexers:   parseIntList(s.GetDefault(ctx, KeyProwlarrIndexers, "")),
		SourceTTL:  time.Duration(ttlSeconds) * time.Second,
	}
}

// QbitSettings configures the torrent client adapter.
type QbitSettings struct {
	Host           string
	Port           int
	Username       string
	Password       string
	Category       string
	SavePath       string
	Enabled        bool
	CompleteAction string
}

// URL renders the WebUI base URL. A host that already carries a scheme is
// used as-is (plus port when set).
func (q QbitSettings) URL() string {
	host := strings.TrimRight(q.Host, "/")
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	if q.Port > 0 {
		return fmt.Sprintf("%s:%d", host, q.Port)
	}
	return host
}

func (s *SettingsStore) GetQbitSettings(ctx context.Context) QbitSettings {
	action := s.GetDefault(ctx, KeyQbitCompleteAction, CompleteActionCopy)
	switch action {
	case CompleteActionCopy, CompleteActionHardlink, CompleteActionMove:
	default:
		action = CompleteActionCopy
	}
	return QbitSettings{
		Host:           s.GetDefault(ctx, KeyQbitHost, ""),
		Port:           s.GetInt(ctx, KeyQbitPort, 8080),
		Username:       s.GetDefault(ctx, KeyQbitUser, ""),
		Password:       s.GetDefault(ctx, KeyQbitPass, ""),
		Category:       s.GetDefault(ctx, KeyQbitCategory, "audiobrr"),
		SavePath:       s.GetDefault(ctx, KeyQbitSavePath, ""),
		Enabled:        s.GetBool(ctx, KeyQbitEnabled, false),
		CompleteAction: action,
	}
}

// MediaSettings configures library layout and the processor.
type MediaSettings struct {
	LibraryPath        string
	FolderPattern      string
	FilePattern        string
	UseSeriesFolders   bool
	ReviewBeforeImport bool
}

// Validate returns domain.ErrMisconfigured when the library root is unset or
// not absolute.
func (m MediaSettings) Validate() error {
	if strings.TrimSpace(m.LibraryPath) == "" {
		return fmt.Errorf("library path is not set: %w", domain.ErrMisconfigured)
	}
	if !filepath.IsAbs(m.LibraryPath) {
		return fmt.Errorf("library path must be absolute: %w", domain.ErrMisconfigured)
	}
	return nil
}

func (s *SettingsStore) GetMediaSettings(ctx context.Context) MediaSettings {
	return MediaSettings{
		LibraryPath:        s.GetDefault(ctx, KeyLibraryPath, ""),
		FolderPattern:      s.GetDefault(ctx, KeyFolderPattern, DefaultFolderPattern),
		FilePattern:        s.GetDefault(ctx, KeyFilePattern, DefaultFilePattern),
		UseSeriesFolders:   s.GetBool(ctx, KeyUseSeriesFolders, false),
		ReviewBeforeImport: s.GetBool(ctx, KeyReviewBeforeImport, false),
	}
}

// ABSSettings configures the optional Audiobookshelf existence check.
type ABSSettings struct {
	BaseURL         string
	APIToken        string
	LibraryID       string
	CheckDownloaded bool
}

func (s *SettingsStore) GetABSSettings(ctx context.Context) ABSSettings {
	return ABSSettings{
		BaseURL:         s.GetDefault(ctx, KeyABSBaseURL, ""),
		APIToken:        s.GetDefault(ctx, KeyABSAPIToken, ""),
		LibraryID:       s.GetDefault(ctx, KeyABSLibraryID, ""),
		CheckDownloaded: s.GetBool(ctx, KeyABSCheckDownloaded, false),
	}
}

// GetAutoDownload reports whether accepted requests dispatch automatically.
func (s *SettingsStore) GetAutoDownload(ctx context.Context) bool {
	return s.GetBool(ctx, KeyAutoDownload, false)
}

// GetDefaultRegion returns the configured metadata region.
func (s *SettingsStore) GetDefaultRegion(ctx context.Context) string {
	return domain.NormalizeRegion(s.GetDefault(ctx, KeyDefaultRegion, domain.DefaultRegion))
}
