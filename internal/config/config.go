// Package config loads application configuration from a YAML file and the
// environment. Secrets are never written into config files directly: key
// fields accept an "ENV:VAR_NAME" indirection resolved at load time.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Providers ProvidersConfig `mapstructure:"providers"`
	ImageFX   ImageFXConfig   `mapstructure:"imagefx"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ProvidersConfig holds the default text-generation credentials. Per-caller
// keys stored in the database take precedence; these act as the fallback.
type ProvidersConfig struct {
	OpenAIKey    string   `mapstructure:"openai_key"`
	AnthropicKey string   `mapstructure:"anthropic_key"`
	GeminiKeys   []string `mapstructure:"gemini_keys"`
}

type ImageFXConfig struct {
	Cookie     string `mapstructure:"cookie"`
	SessionURL string `mapstructure:"session_url"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./internal/config")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("database.dsn", "content.db")
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	cfg.Providers.OpenAIKey = resolveSecret(v, cfg.Providers.OpenAIKey)
	cfg.Providers.AnthropicKey = resolveSecret(v, cfg.Providers.AnthropicKey)
	for i, key := range cfg.Providers.GeminiKeys {
		cfg.Providers.GeminiKeys[i] = resolveSecret(v, key)
	}
	cfg.ImageFX.Cookie = resolveSecret(v, cfg.ImageFX.Cookie)

	return &cfg, nil
}

// resolveSecret expands "ENV:VAR" values. The process environment wins over
// viper so an exported variable always overrides a .env entry.
func resolveSecret(v *viper.Viper, value string) string {
	if !strings.HasPrefix(value, "ENV:") {
		return value
	}
	envVar := strings.TrimPrefix(value, "ENV:")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return v.GetString(envVar)
}
