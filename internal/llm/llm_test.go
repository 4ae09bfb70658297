package llm_test

import (
	"testing"

	"github.com/lumeo/content-api/internal/fault"
	"github.com/lumeo/content-api/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	cases := map[string]llm.Provider{
		"gpt-4o":                     llm.GPT,
		"GPT-3.5-TURBO":              llm.GPT,
		"o1-mini":                    llm.GPT,
		"chatgpt-4o-latest":          llm.GPT,
		"claude-3-5-sonnet-20240620": llm.Claude,
		"CLAUDE-3-opus":              llm.Claude,
		"gemini-2.5-flash":           llm.Gemini,
		"Gemini-1.5-Pro":             llm.Gemini,
	}

	for model, want := range cases {
		got, err := llm.DetectProvider(model)
		require.NoError(t, err, "model %q", model)
		assert.Equal(t, want, got, "model %q", model)
	}
}

func TestDetectProviderUnknown(t *testing.T) {
	for _, model := range []string{"", "llama-3-70b", "mistral-large", "deepseek-chat"} {
		_, err := llm.DetectProvider(model)
		require.Error(t, err, "model %q", model)
		assert.Equal(t, fault.KindConfig, fault.KindOf(err))
	}
}
