// Command seed writes a caller's provider settings into the sqlite store
// from environment variables, for local development.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lumeo/content-api/internal/store/model"
	"github.com/lumeo/content-api/internal/store/sqlite"
)

func main() {
	dsn := envOr("DATABASE_DSN", "content.db")
	caller := envOr("SEED_CALLER_ID", "default")

	repo, err := sqlite.NewStorage(dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer repo.Close()

	settings := &model.Settings{
		CallerID:      caller,
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:  os.Getenv("ANTHROPIC_API_KEY"),
		ImageFXCookie: os.Getenv("IMAGEFX_COOKIE"),
	}
	if raw := os.Getenv("GEMINI_API_KEYS"); raw != "" {
		settings.SetGeminiKeys(strings.Split(raw, ","))
	}

	if err := repo.Settings().Upsert(context.Background(), settings); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Seeded settings for caller %q into %s\n", caller, dsn)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
