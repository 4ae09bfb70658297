// Package v1 holds the HTTP handlers. Handlers are thin: they bind the
// request, resolve the caller's stored credentials, delegate to the domain
// packages, and attach any error for the error middleware to map.
package v1

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lumeo/content-api/internal/config"
	"github.com/lumeo/content-api/internal/fault"
	"github.com/lumeo/content-api/internal/imagefx"
	"github.com/lumeo/content-api/internal/llm"
	"github.com/lumeo/content-api/internal/store"
	"github.com/lumeo/content-api/internal/store/cache"
	"github.com/lumeo/content-api/internal/store/model"
	"go.uber.org/zap"
)

// settingsTTL bounds how stale a cached credential set may be after an
// update lands through another instance.
const settingsTTL = 30 * time.Second

// TextService is what the generate handlers need from the gateway.
type TextService interface {
	Generate(ctx context.Context, model, prompt string, opts llm.Options) (*llm.Result, error)
	Stream(ctx context.Context, model, prompt string, opts llm.Options) (<-chan llm.Chunk, error)
}

// ImageGenerator is what the images handler needs from the pipeline.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, opts imagefx.Options) ([]imagefx.Image, error)
}

// Dependencies wires handlers to storage, caching and the domain services.
// The factory fields exist so tests can substitute stubs.
type Dependencies struct {
	Repo      store.Repository
	Cache     cache.Service
	Logger    *zap.Logger
	Providers config.ProvidersConfig
	ImageFX   config.ImageFXConfig

	NewTextService func(creds llm.Credentials) TextService
	NewImageClient func(cookie string) (ImageGenerator, error)
}

// resolveSettings loads a caller's stored settings, consulting the cache
// first. A caller with no row gets empty settings, not an error: the config
// defaults may still cover them.
func (d *Dependencies) resolveSettings(ctx context.Context, callerID string) (*model.Settings, error) {
	cacheKey := "settings:" + callerID

	var cached model.Settings
	if err := d.Cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	settings, err := d.Repo.Settings().Get(ctx, callerID)
	if errors.Is(err, sql.ErrNoRows) {
		settings = &model.Settings{CallerID: callerID}
	} else if err != nil {
		return nil, err
	}

	if err := d.Cache.Set(ctx, cacheKey, settings, settingsTTL); err != nil {
		d.Logger.Warn("settings cache write failed", zap.Error(err))
	}
	return settings, nil
}

// credentialsFor merges a caller's stored keys over the config defaults.
func (d *Dependencies) credentialsFor(settings *model.Settings) llm.Credentials {
	creds := llm.Credentials{
		GPTKey:     d.Providers.OpenAIKey,
		ClaudeKey:  d.Providers.AnthropicKey,
		GeminiKeys: d.Providers.GeminiKeys,
	}
	if settings.OpenAIKey != "" {
		creds.GPTKey = settings.OpenAIKey
	}
	if settings.AnthropicKey != "" {
		creds.ClaudeKey = settings.AnthropicKey
	}
	if keys := settings.GeminiKeys(); len(keys) > 0 {
		creds.GeminiKeys = keys
	}
	return creds
}

// cookieFor picks the caller's ImageFX cookie, falling back to the default.
func (d *Dependencies) cookieFor(settings *model.Settings) string {
	if settings.ImageFXCookie != "" {
		return settings.ImageFXCookie
	}
	return d.ImageFX.Cookie
}

func errStatus(err error) string {
	return fault.KindOf(err).String()
}

// logGeneration records a completed request off the hot path.
func (d *Dependencies) logGeneration(callerID, kind, modelName string, promptChars, outputChars int, started time.Time, genErr error) {
	status := "ok"
	if genErr != nil {
		status = errStatus(genErr)
	}
	entry := &model.GenerationLog{
		ID:          uuid.NewString(),
		CallerID:    callerID,
		Kind:        kind,
		Model:       modelName,
		PromptChars: promptChars,
		OutputChars: outputChars,
		LatencyMS:   time.Since(started).Milliseconds(),
		Status:      status,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.Repo.Generations().Log(ctx, entry); err != nil {
			d.Logger.Warn("generation log write failed", zap.Error(err))
		}
	}()
}
