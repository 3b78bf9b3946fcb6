// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/internal/qbittorrent"
)

// SettingsHandler reads and writes the persisted setting groups. Updates are
// partial: absent fields keep their stored value.
type SettingsHandler struct {
	settings *models.SettingsStore

	// testQbit probes a torrent client config; swapped in tests.
	testQbit func(ctx context.Context, cfg models.QbitSettings) error
}

func NewSettingsHandler(settings *models.SettingsStore) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		testQbit: func(ctx context.Context, cfg models.QbitSettings) error {
			client, err := qbittorrent.NewClient(cfg)
			if err != nil {
				return err
			}
			return client.HealthCheck(ctx)
		},
	}
}

func (h *SettingsHandler) Routes(r chi.Router) {
	r.Get("/{group}", h.get)
	r.Put("/{group}", h.update)
	r.Post("/qbittorrent/test", h.testConnection)
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	group, ok := ParseStringParam(w, r, "group", "settings group")
	if !ok {
		return
	}

	ctx := r.Context()
	switch group {
	case "download":
		RespondJSON(w, http.StatusOK, h.downloadSettings(ctx))
	case "prowlarr":
		RespondJSON(w, http.StatusOK, prowlarrDTO(h.settings.GetProwlarrSettings(ctx)))
	case "qbittorrent":
		RespondJSON(w, http.StatusOK, qbitDTO(h.settings.GetQbitSettings(ctx)))
	case "media":
		RespondJSON(w, http.StatusOK, mediaDTO(h.settings.GetMediaSettings(ctx)))
	case "metadata":
		RespondJSON(w, http.StatusOK, h.metadataSettings(ctx))
	case "abs":
		RespondJSON(w, http.StatusOK, absDTO(h.settings.GetABSSettings(ctx)))
	default:
		RespondError(w, http.StatusNotFound, "unknown settings group")
	}
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	group, ok := ParseStringParam(w, r, "group", "settings group")
	if !ok {
		return
	}

	var err error
	switch group {
	case "download":
		err = h.updateDownload(w, r)
	case "prowlarr":
		err = h.updateProwlarr(w, r)
	case "qbittorrent":
		err = h.updateQbit(w, r)
	case "media":
		err = h.updateMedia(w, r)
	case "metadata":
		err = h.updateMetadata(w, r)
	case "abs":
		err = h.updateABS(w, r)
	default:
		RespondError(w, http.StatusNotFound, "unknown settings group")
		return
	}
	if err != nil {
		if !errors.Is(err, errHandled) {
			RespondDomainError(w, err)
		}
		return
	}
	h.get(w, r)
}

// errHandled marks failures whose response was already written.
var errHandled = errors.New("response already written")

func (h *SettingsHandler) testConnection(w http.ResponseWriter, r *http.Request) {
	cfg := h.settings.GetQbitSettings(r.Context())
	if err := h.testQbit(r.Context(), cfg); err != nil {
		RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type downloadSettingsDTO struct {
	AutoDownload  *bool    `json:"autoDownload,omitempty"`
	MinSeeders    *int     `json:"minSeeders,omitempty"`
	WeightQuality *float64 `json:"weightQuality,omitempty"`
	WeightSeeders *float64 `json:"weightSeeders,omitempty"`
	WeightFlags   *float64 `json:"weightFlags,omitempty"`
	WeightTitle   *float64 `json:"weightTitle,omitempty"`
}

func (h *SettingsHandler) downloadSettings(ctx context.Context) downloadSettingsDTO {
	auto := h.settings.GetAutoDownload(ctx)
	ranking := h.settings.GetRankingSettings(ctx)
	return downloadSettingsDTO{
		AutoDownload:  &auto,
		MinSeeders:    &ranking.MinSeeders,
		WeightQuality: &ranking.Weights.Quality,
		WeightSeeders: &ranking.Weights.Seeders,
		WeightFlags:   &ranking.Weights.Flags,
		WeightTitle:   &ranking.Weights.Title,
	}
}

func (h *SettingsHandler) updateDownload(w http.ResponseWriter, r *http.Request) error {
	var body downloadSettingsDTO
	if !DecodeJSON(w, r, &body) {
		return errHandled
	}
	ctx := r.Context()

	if body.AutoDownload != nil {
		if err := h.settings.SetBool(ctx, models.KeyAutoDownload, *body.AutoDownload); err != nil {
			return err
		}
	}
	if body.MinSeeders != nil {
		if *body.MinSeeders < 0 {
			return fmt.Errorf("minSeeders must be >= 0: %w", domain.ErrValidation)
		}
		if err := h.settings.SetInt(ctx, models.KeyMinSeeders, *body.MinSeeders); err != nil {
			return err
		}
	}
	weights := map[string]*float64{
		models.KeyRankWeightQuality: body.WeightQuality,
		models.KeyRankWeightSeeders: body.WeightSeeders,
		models.KeyRankWeightFlags:   body.WeightFlags,
		models.KeyRankWeightTitle:   body.WeightTitle,
	}
	for key, value := range weights {
		if value == nil {
			continue
		}
		if *value < 0 || *value > 1 {
			return fmt.Errorf("ranking weights must be in [0,1]: %w", domain.ErrValidation)
		}
		if err := h.settings.Set(ctx, key, strconv.FormatFloat(*value, 'f', -1, 64)); err != nil {
			return err
		}
	}
	return nil
}

type prowlarrSettingsDTO struct {
	BaseURL          *string `json:"baseUrl,omitempty"`
	APIKey           *string `json:"apiKey,omitempty"`
	Categories       *string `json:"categories,omitempty"`
	Indexers         *string `json:"indexers,omitempty"`
	SourceTTLSeconds *int    `json:"sourceTtlSeconds,omitempty"`
}

func prowlarrDTO(cfg models.ProwlarrSettings) prowlarrSettingsDTO {
	base := cfg.BaseURL
	key := maskSecret(cfg.APIKey)
	cats := joinInts(cfg.Categories)
	idx := joinInts(cfg.Indexers)
	ttl := int(cfg.SourceTTL.Seconds())
	return prowlarrSettingsDTO{BaseURL: &base, APIKey: &key, Categories: &cats, Indexers: &idx, SourceTTLSeconds: &ttl}
}

func (h *SettingsHandler) updateProwlarr(w http.ResponseWriter, r *http.Request) error {
	var body prowlarrSettingsDTO
	if !DecodeJSON(w, r, &body) {
		return errHandled
	}
	ctx := r.Context()

	if err := setString(ctx, h.settings, models.KeyProwlarrBaseURL, body.BaseURL); err != nil {
		return err
	}
	if err := setSecret(ctx, h.settings, models.KeyProwlarrAPIKey, body.APIKey); err != nil {
		return err
	}
	if err := setString(ctx, h.settings, models.KeyProwlarrCategories, body.Categories); err != nil {
		return err
	}
	if err := setString(ctx, h.settings, models.KeyProwlarrIndexers, body.Indexers); err != nil {
		return err
	}
	if body.SourceTTLSeconds != nil {
		if *body.SourceTTLSeconds < 60 {
			return fmt.Errorf("sourceTtlSeconds must be at least 60: %w", domain.ErrValidation)
		}
		if err := h.settings.SetInt(ctx, models.KeyProwlarrSourceTTL, *body.SourceTTLSeconds); err != nil {
			return err
		}
	}
	return nil
}

type qbitSettingsDTO struct {
	Host           *string `json:"host,omitempty"`
	Port           *int    `json:"port,omitempty"`
	Username       *string `json:"username,omitempty"`
	Password       *string `json:"password,omitempty"`
	Category       *string `json:"category,omitempty"`
	SavePath       *string `json:"savePath,omitempty"`
	Enabled        *bool   `json:"enabled,omitempty"`
	CompleteAction *string `json:"completeAction,omitempty"`
}

func qbitDTO(cfg models.QbitSettings) qbitSettingsDTO {
	pass := maskSecret(cfg.Password)
	return qbitSettingsDTO{
		Host:           &cfg.Host,
		Port:           &cfg.Port,
		Username:       &cfg.Username,
		Password:       &pass,
		Category:       &cfg.Category,
		SavePath:       &cfg.SavePath,
		Enabled:        &cfg.Enabled,
		CompleteAction: &cfg.CompleteAction,
	}
}

func (h *SettingsHandler) updateQbit(w http.ResponseWriter, r *http.Request) error {
	var body qbitSettingsDTO
	if !DecodeJSON(w, r, &body) {
		return errHandled
	}
	ctx := r.Context()

	if err := setString(ctx, h.settings, models.KeyQbitHost, body.Host); err != nil {
		return err
	}
	if body.Port != nil {
		if *body.Port < 1 || *body.Port > 65535 {
			return fmt.Errorf("port must be in 1..65535: %w", domain.ErrValidation)
		}
		if err := h.settings.SetInt(ctx, models.KeyQbitPort, *body.Port); err != nil {
			return err
		}
	}
	if err := setString(ctx, h.settings, models.KeyQbitUser, body.Username); err != nil {
		return err
	}
	if err := setSecret(ctx, h.settings, models.KeyQbitPass, body.Password); err != nil {
		return err
	}
	if err := setString(ctx, h.settings, models.KeyQbitCategory, body.Category); err != nil {
		return err
	}
	if err := setString(ctx, h.settings, models.KeyQbitSavePath, body.SavePath); err != nil {
		return err
	}
	if body.Enabled != nil {
		if err := h.settings.SetBool(ctx, models.KeyQbitEnabled, *body.Enabled); err != nil {
			return err
		}
	}
	if body.CompleteAction != nil {
		switch *body.CompleteAction {
		case models.CompleteActionCopy, models.CompleteActionHardlink, models.CompleteActionMove:
		default:
			return fmt.Errorf("completeAction must be copy, hardlink, or move: %w", domain.ErrValidation)
		}
		if err := h.settings.Set(ctx, models.KeyQbitCompleteAction, *body.CompleteAction); err != nil {
			return err
		}
	}
	return nil
}

type mediaSettingsDTO struct {
	LibraryPath        *string `json:"libraryPath,omitempty"`
	FolderPattern      *string `json:"folderPattern,omitempty"`
	FilePattern        *string `json:"filePattern,omitempty"`
	UseSeriesFolders   *bool   `json:"useSeriesFolders,omitempty"`
	ReviewBeforeImport *bool   `json:"reviewBeforeImport,omitempty"`
}

func mediaDTO(cfg models.MediaSettings) mediaSettingsDTO {
	return mediaSettingsDTO{
		LibraryPath:        &cfg.LibraryPath,
		FolderPattern:      &cfg.FolderPattern,
		FilePattern:        &cfg.FilePattern,
		UseSeriesFolders:   &cfg.UseSeriesFolders,
		ReviewBeforeImport: &cfg.ReviewBeforeImport,
	}
}

func (h *SettingsHandler) updateMedia(w http.ResponseWriter, r *http.Request) error {
	var body mediaSettingsDTO
	if !DecodeJSON(w, r, &body) {
		return errHandled
	}
	ctx := r.Context()

	if body.LibraryPath != nil {
		probe := models.MediaSettings{LibraryPath: *body.LibraryPath}
		if err := probe.Validate(); err != nil {
			return fmt.Errorf("invalid library path: %w", domain.ErrValidation)
		}
		if err := h.settings.Set(ctx, models.KeyLibraryPath, *body.LibraryPath); err != nil {
			return err
		}
	}
	if err := setString(ctx, h.settings, models.KeyFolderPattern, body.FolderPattern); err != nil {
		return err
	}
	if err := setString(ctx, h.settings, models.KeyFilePattern, body.FilePattern); err != nil {
		return err
	}
	if body.UseSeriesFolders != nil {
		if err := h.settings.SetBool(ctx, models.KeyUseSeriesFolders, *body.UseSeriesFolders); err != nil {
			return err
		}
	}
	if body.ReviewBeforeImport != nil {
		if err := h.settings.SetBool(ctx, models.KeyReviewBeforeImport, *body.ReviewBeforeImport); err != nil {
			return err
		}
	}
	return nil
}

type metadataSettingsDTO struct {
	DefaultRegion *string `json:"defaultRegion,omitempty"`
	MAMEnabled    *bool   `json:"mamEnabled,omitempty"`
	MAMSessionID  *string `json:"mamSessionId,omitempty"`
}

func (h *SettingsHandler) metadataSettings(ctx context.Context) metadataSettingsDTO {
	region := h.settings.GetDefaultRegion(ctx)
	enabled := h.settings.GetBool(ctx, models.KeyMAMEnabled, false)
	session := maskSecret(h.settings.GetDefault(ctx, models.KeyMAMSessionID, ""))
	return metadataSettingsDTO{DefaultRegion: &region, MAMEnabled: &enabled, MAMSessionID: &session}
}

func (h *SettingsHandler) updateMetadata(w http.ResponseWriter, r *http.Request) error {
	var body metadataSettingsDTO
	if !DecodeJSON(w, r, &body) {
		return errHandled
	}
	ctx := r.Context()

	if body.DefaultRegion != nil {
		region := strings.ToLower(strings.TrimSpace(*body.DefaultRegion))
		if !domain.KnownRegion(region) {
			return fmt.Errorf("unknown region %q: %w", *body.DefaultRegion, domain.ErrValidation)
		}
		if err := h.settings.Set(ctx, models.KeyDefaultRegion, region); err != nil {
			return err
		}
	}
	if body.MAMEnabled != nil {
		if err := h.settings.SetBool(ctx, models.KeyMAMEnabled, *body.MAMEnabled); err != nil {
			return err
		}
	}
	if err := setSecret(ctx, h.settings, models.KeyMAMSessionID, body.MAMSessionID); err != nil {
		return err
	}
	return nil
}

type absSettingsDTO struct {
	BaseURL         *string `json:"baseUrl,omitempty"`
	APIToken        *string `json:"apiToken,omitempty"`
	LibraryID       *string `json:"libraryId,omitempty"`
	CheckDownloaded *bool   `json:"checkDownloaded,omitempty"`
}

func absDTO(cfg models.ABSSettings) absSettingsDTO {
	token := maskSecret(cfg.APIToken)
	return absSettingsDTO{
		BaseURL:         &cfg.BaseURL,
		APIToken:        &token,
		LibraryID:       &cfg.LibraryID,
		CheckDownloaded: &cfg.CheckDownloaded,
	}
}

func (h *SettingsHandler) updateABS(w http.ResponseWriter, r *http.Request) error {
	var body absSettingsDTO
	if !DecodeJSON(w, r, &body) {
		return errHandled
	}
	ctx := r.Context()

	if err := setString(ctx, h.settings, models.KeyABSBaseURL, body.BaseURL); err != nil {
		return err
	}
	if err := setSecret(ctx, h.settings, models.KeyABSAPIToken, body.APIToken); err != nil {
		return err
	}
	if err := setString(ctx, h.settings, models.KeyABSLibraryID, body.LibraryID); err != nil {
		return err
	}
	if body.CheckDownloaded != nil {
		if err := h.settings.SetBool(ctx, models.KeyABSCheckDownloaded, *body.CheckDownloaded); err != nil {
			return err
		}
	}
	return nil
}

func setString(ctx context.Context, store *models.SettingsStore, key string, value *string) error {
	if value == nil {
		return nil
	}
	return store.Set(ctx, key, strings.TrimSpace(*value))
}

// setSecret ignores redacted values so a round-tripped GET body cannot
// clobber a stored credential.
func setSecret(ctx context.Context, store *models.SettingsStore, key string, value *string) error {
	if value == nil || domain.IsRedactedValue(*value) {
		return nil
	}
	return store.Set(ctx, key, strings.TrimSpace(*value))
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// maskSecret hides stored credentials in GET responses while signaling
// whether a value is set.
func maskSecret(s string) string {
	return domain.RedactString(s)
}
