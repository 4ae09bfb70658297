package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "content.db", cfg.Database.DSN)
	assert.Equal(t, 10.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_ENV", "test")
	t.Setenv("DATABASE_DSN", ":memory:")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "test", cfg.Server.Env)
	assert.Equal(t, ":memory:", cfg.Database.DSN)
}

func TestLoadConfig_SecretResolution(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("TEST_OPENAI_KEY", "sk-test-12345")
	t.Setenv("TEST_COOKIE", "session-cookie")

	configContent := `
providers:
  openai_key: "ENV:TEST_OPENAI_KEY"
  anthropic_key: "literal-key"
  gemini_keys:
    - "ENV:MISSING_VAR"
imagefx:
  cookie: "ENV:TEST_COOKIE"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configContent), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sk-test-12345", cfg.Providers.OpenAIKey)
	assert.Equal(t, "literal-key", cfg.Providers.AnthropicKey)
	require.Len(t, cfg.Providers.GeminiKeys, 1)
	assert.Empty(t, cfg.Providers.GeminiKeys[0])
	assert.Equal(t, "session-cookie", cfg.ImageFX.Cookie)
}
