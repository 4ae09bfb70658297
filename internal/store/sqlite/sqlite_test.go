package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/lumeo/content-api/internal/store"
	"github.com/lumeo/content-api/internal/store/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStorage(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo.(*Repository)
}

func TestSettingsUpsertGetDelete(t *testing.T) {
	repo := testStorage(t)
	ctx := context.Background()

	s := &model.Settings{
		CallerID:      "caller-1",
		OpenAIKey:     "sk-abc",
		AnthropicKey:  "ak-def",
		ImageFXCookie: "cookie",
	}
	s.SetGeminiKeys([]string{"g1", "g2"})

	require.NoError(t, repo.Settings().Upsert(ctx, s))

	got, err := repo.Settings().Get(ctx, "caller-1")
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", got.OpenAIKey)
	assert.Equal(t, "ak-def", got.AnthropicKey)
	assert.Equal(t, []string{"g1", "g2"}, got.GeminiKeys())
	assert.Equal(t, "cookie", got.ImageFXCookie)

	// upsert replaces
	s.OpenAIKey = "sk-new"
	require.NoError(t, repo.Settings().Upsert(ctx, s))
	got, err = repo.Settings().Get(ctx, "caller-1")
	require.NoError(t, err)
	assert.Equal(t, "sk-new", got.OpenAIKey)

	require.NoError(t, repo.Settings().Delete(ctx, "caller-1"))
	_, err = repo.Settings().Get(ctx, "caller-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSettingsGeminiKeysMalformed(t *testing.T) {
	s := &model.Settings{GeminiKeysRaw: "{not json"}
	assert.Nil(t, s.GeminiKeys())

	s.GeminiKeysRaw = ""
	assert.Nil(t, s.GeminiKeys())
}

func TestGenerationLogAndRecent(t *testing.T) {
	repo := testStorage(t)
	ctx := context.Background()

	for i, m := range []string{"gpt-4o", "gemini-2.5-flash", "claude-3-5-sonnet"} {
		require.NoError(t, repo.Generations().Log(ctx, &model.GenerationLog{
			ID:          uuid.NewString(),
			CallerID:    "caller-1",
			Kind:        "text",
			Model:       m,
			PromptChars: 100 + i,
			OutputChars: 200 + i,
			LatencyMS:   int64(50 * (i + 1)),
			Status:      "ok",
		}))
	}

	logs, err := repo.Generations().GetRecent(ctx, "caller-1", 2)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = repo.Generations().GetRecent(ctx, "other", 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	repo := testStorage(t)
	ctx := context.Background()

	boom := assert.AnError
	err := repo.WithTx(ctx, func(tx store.Repository) error {
		s := &model.Settings{CallerID: "tx-caller", OpenAIKey: "sk"}
		if err := tx.Settings().Upsert(ctx, s); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = repo.Settings().Get(ctx, "tx-caller")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestWithTxCommits(t *testing.T) {
	repo := testStorage(t)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx store.Repository) error {
		return tx.Settings().Upsert(ctx, &model.Settings{CallerID: "tx-ok"})
	})
	require.NoError(t, err)

	got, err := repo.Settings().Get(ctx, "tx-ok")
	require.NoError(t, err)
	assert.Equal(t, "tx-ok", got.CallerID)
}
