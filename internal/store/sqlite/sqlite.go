package sqlite

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lumeo/content-api/internal/store"
	"github.com/lumeo/content-api/internal/store/model"
)

// DB is satisfied by both *sqlx.DB and *sqlx.Tx so the repositories work
// inside and outside transactions.
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repository implements store.Repository over sqlite.
type Repository struct {
	db       *sqlx.DB // required for starting new transactions
	executor DB       // *sqlx.DB or *sqlx.Tx
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db:       db,
		executor: db,
	}
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	txRepo := &Repository{
		db:       r.db,
		executor: tx,
	}

	if err := fn(txRepo); err != nil {
		// attempt rollback, but prioritize original error
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *Repository) Settings() store.SettingsRepository {
	return &settingsRepo{db: r.executor}
}

func (r *Repository) Generations() store.GenerationRepository {
	return &generationRepo{db: r.executor}
}

type settingsRepo struct {
	db DB
}

func (r *settingsRepo) Get(ctx context.Context, callerID string) (*model.Settings, error) {
	var s model.Settings
	query := `SELECT * FROM settings WHERE caller_id = ?`
	if err := r.db.GetContext(ctx, &s, query, callerID); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepo) Upsert(ctx context.Context, settings *model.Settings) error {
	query := `
	INSERT INTO settings (caller_id, openai_key, anthropic_key, gemini_keys, imagefx_cookie, created_at, updated_at)
	VALUES (:caller_id, :openai_key, :anthropic_key, :gemini_keys, :imagefx_cookie, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(caller_id) DO UPDATE SET
		openai_key = excluded.openai_key,
		anthropic_key = excluded.anthropic_key,
		gemini_keys = excluded.gemini_keys,
		imagefx_cookie = excluded.imagefx_cookie,
		updated_at = CURRENT_TIMESTAMP`
	_, err := r.db.NamedExecContext(ctx, query, settings)
	return err
}

func (r *settingsRepo) Delete(ctx context.Context, callerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE caller_id = ?`, callerID)
	return err
}

type generationRepo struct {
	db DB
}

func (r *generationRepo) Log(ctx context.Context, log *model.GenerationLog) error {
	query := `
	INSERT INTO generation_logs (
		id, caller_id, kind, model, prompt_chars, output_chars, latency_ms, status, created_at
	) VALUES (
		:id, :caller_id, :kind, :model, :prompt_chars, :output_chars, :latency_ms, :status, CURRENT_TIMESTAMP
	)`
	_, err := r.db.NamedExecContext(ctx, query, log)
	return err
}

func (r *generationRepo) GetRecent(ctx context.Context, callerID string, limit int) ([]model.GenerationLog, error) {
	var logs []model.GenerationLog
	query := `SELECT * FROM generation_logs WHERE caller_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	err := r.db.SelectContext(ctx, &logs, query, callerID, limit)
	return logs, err
}
