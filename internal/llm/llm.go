// Package llm defines the provider-agnostic generation contract: the
// closed provider set, model-to-provider classification, and the request
// and response shapes shared by every adapter.
package llm

import (
	"context"
	"strings"

	"github.com/lumeo/content-api/internal/fault"
)

// Provider is the closed set of upstream LLM vendors.
type Provider string

const (
	GPT    Provider = "gpt"
	Claude Provider = "claude"
	Gemini Provider = "gemini"
)

// DetectProvider classifies a model identifier by case-insensitive
// substring match. Everything downstream dispatches on the result with
// exhaustive switches; unknown models fail here, not deeper in.
func DetectProvider(model string) (Provider, error) {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "gpt") || strings.Contains(m, "o1"):
		return GPT, nil
	case strings.Contains(m, "claude"):
		return Claude, nil
	case strings.Contains(m, "gemini"):
		return Gemini, nil
	}
	return "", fault.Configf("unknown model %q: cannot detect provider", model)
}

// Credentials holds the per-provider API keys for one caller. Gemini
// accepts several keys; only the first is used today, rotation across the
// rest is an extension point.
type Credentials struct {
	GPTKey     string
	ClaudeKey  string
	GeminiKeys []string
}

// Options are caller hints; absent fields fall back to per-provider
// defaults inside each adapter.
type Options struct {
	MaxOutputTokens int
	Temperature     *float64
	// Schema requests structured (JSON-mime) output. Only the Gemini
	// adapter honors it; the response text is routed through the repair
	// parser and surfaced in Result.Data.
	Schema map[string]any
}

// Result is a completed non-streaming generation.
type Result struct {
	Text string
	// Data holds the parsed structured value when Options.Schema was set.
	Data any
}

// Chunk is one incremental fragment of a streaming generation. A Chunk
// with Err set terminates the stream.
type Chunk struct {
	Text string
	Err  error
}

// Adapter is implemented by each provider-specific request/response shaper.
type Adapter interface {
	Generate(ctx context.Context, model, prompt string, opts Options) (*Result, error)
	Stream(ctx context.Context, model, prompt string, opts Options) (<-chan Chunk, error)
}
