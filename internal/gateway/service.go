// Package gateway is the provider-agnostic generation service: it detects
// which provider owns a model identifier and dispatches to the matching
// adapter, in streaming and non-streaming modes. It performs no retries;
// retry policy belongs to callers (the image pipeline has its own).
package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/lumeo/content-api/internal/fault"
	"github.com/lumeo/content-api/internal/llm"
	"github.com/lumeo/content-api/internal/llm/anthropic"
	"github.com/lumeo/content-api/internal/llm/google"
	"github.com/lumeo/content-api/internal/llm/openai"
	"go.uber.org/zap"
)

// Endpoints overrides the provider base URLs. Zero values mean the real
// provider endpoints; tests point these at stub servers.
type Endpoints struct {
	GPT    string
	Claude string
	Gemini string
}

// Service dispatches generation requests to provider adapters. Credentials
// are swappable between calls so one process can serve many callers, each
// with their own key set.
type Service struct {
	logger    *zap.Logger
	endpoints Endpoints

	mu       sync.RWMutex
	creds    llm.Credentials
	adapters map[string]llm.Adapter
}

type Option func(*Service)

// WithEndpoints overrides provider base URLs (stub servers, proxies).
func WithEndpoints(e Endpoints) Option {
	return func(s *Service) { s.endpoints = e }
}

func NewService(creds llm.Credentials, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		logger:   logger,
		creds:    creds,
		adapters: make(map[string]llm.Adapter),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCredentials swaps the credential set. Memoized adapters are dropped
// since they captured the old keys.
func (s *Service) SetCredentials(creds llm.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	s.adapters = make(map[string]llm.Adapter)
}

// Generate runs a non-streaming generation against whichever provider owns
// the model.
func (s *Service) Generate(ctx context.Context, model, prompt string, opts llm.Options) (*llm.Result, error) {
	adapter, err := s.adapterFor(model)
	if err != nil {
		return nil, err
	}
	return adapter.Generate(ctx, model, prompt, opts)
}

// Stream runs a streaming generation. The returned channel closes on
// provider-signaled completion; cancelling ctx tears the stream down.
func (s *Service) Stream(ctx context.Context, model, prompt string, opts llm.Options) (<-chan llm.Chunk, error) {
	adapter, err := s.adapterFor(model)
	if err != nil {
		return nil, err
	}
	return adapter.Stream(ctx, model, prompt, opts)
}

// adapterFor resolves the provider for a model and returns a memoized
// adapter bound to the current credentials. A missing credential is a
// configuration error surfaced immediately, never retried.
func (s *Service) adapterFor(model string) (llm.Adapter, error) {
	provider, err := llm.DetectProvider(model)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	key, keyErr := s.credentialFor(provider)
	if keyErr != nil {
		s.mu.RUnlock()
		return nil, keyErr
	}
	cacheKey := fmt.Sprintf("%s:%s", provider, key)
	if a, ok := s.adapters[cacheKey]; ok {
		s.mu.RUnlock()
		return a, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.adapters[cacheKey]; ok {
		return a, nil
	}

	var a llm.Adapter
	switch provider {
	case llm.GPT:
		a = openai.New(openai.Config{APIKey: key, BaseURL: s.endpoints.GPT})
	case llm.Claude:
		a = anthropic.New(anthropic.Config{APIKey: key, BaseURL: s.endpoints.Claude})
	case llm.Gemini:
		a = google.New(google.Config{APIKey: key, BaseURL: s.endpoints.Gemini})
	}
	s.adapters[cacheKey] = a
	s.logger.Debug("provider adapter created", zap.String("provider", string(provider)))
	return a, nil
}

// credentialFor picks the key for a provider. Gemini may carry several
// keys; the first non-empty one is used. Rotating through the remainder on
// quota errors is an extension point, not implemented.
func (s *Service) credentialFor(provider llm.Provider) (string, error) {
	switch provider {
	case llm.GPT:
		if s.creds.GPTKey == "" {
			return "", fault.Configf("no gpt api key configured")
		}
		return s.creds.GPTKey, nil
	case llm.Claude:
		if s.creds.ClaudeKey == "" {
			return "", fault.Configf("no claude api key configured")
		}
		return s.creds.ClaudeKey, nil
	case llm.Gemini:
		for _, k := range s.creds.GeminiKeys {
			if k != "" {
				return k, nil
			}
		}
		return "", fault.Configf("no gemini api key configured")
	}
	return "", fault.Configf("unsupported provider %q", provider)
}
