package model

import (
	"encoding/json"
	"time"
)

// Settings holds one caller's provider credentials. Gemini accepts several
// keys; they travel as a JSON array in a single column.
// Secrets keep JSON names so the settings cache can round-trip them; the
// HTTP layer never serializes this struct directly, it returns a redacted
// view.
type Settings struct {
	CallerID      string    `db:"caller_id" json:"caller_id"`
	OpenAIKey     string    `db:"openai_key" json:"openai_key"`
	AnthropicKey  string    `db:"anthropic_key" json:"anthropic_key"`
	GeminiKeysRaw string    `db:"gemini_keys" json:"gemini_keys"`
	ImageFXCookie string    `db:"imagefx_cookie" json:"imagefx_cookie"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// GeminiKeys decodes the stored JSON array. A malformed or empty column
// yields nil rather than an error: a broken key list reads as "no keys".
func (s *Settings) GeminiKeys() []string {
	if s.GeminiKeysRaw == "" {
		return nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(s.GeminiKeysRaw), &keys); err != nil {
		return nil
	}
	return keys
}

// SetGeminiKeys encodes the key list into the raw column form.
func (s *Settings) SetGeminiKeys(keys []string) {
	if len(keys) == 0 {
		s.GeminiKeysRaw = ""
		return
	}
	raw, _ := json.Marshal(keys)
	s.GeminiKeysRaw = string(raw)
}

// GenerationLog captures one completed generation request, text or image.
type GenerationLog struct {
	ID          string    `db:"id" json:"id"`
	CallerID    string    `db:"caller_id" json:"caller_id"`
	Kind        string    `db:"kind" json:"kind"` // 'text', 'image'
	Model       string    `db:"model" json:"model"`
	PromptChars int       `db:"prompt_chars" json:"prompt_chars"`
	OutputChars int       `db:"output_chars" json:"output_chars"`
	LatencyMS   int64     `db:"latency_ms" json:"latency_ms"`
	Status      string    `db:"status" json:"status"` // 'ok' or the fault kind
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
