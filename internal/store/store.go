// Package store defines the data-layer contract. The sqlite subpackage
// implements it; handlers only see these interfaces.
package store

import (
	"context"

	"github.com/lumeo/content-api/internal/store/model"
)

// Repository is the main contract for the data layer.
type Repository interface {
	Settings() SettingsRepository
	Generations() GenerationRepository

	// transaction support
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Close() error
}

type SettingsRepository interface {
	// Get retrieves a caller's settings. sql.ErrNoRows when absent.
	Get(ctx context.Context, callerID string) (*model.Settings, error)
	// Upsert creates or replaces a caller's settings.
	Upsert(ctx context.Context, settings *model.Settings) error
	// Delete removes a caller's settings.
	Delete(ctx context.Context, callerID string) error
}

type GenerationRepository interface {
	// Log stores a completed generation.
	Log(ctx context.Context, log *model.GenerationLog) error
	// GetRecent returns the last N logs for a caller.
	GetRecent(ctx context.Context, callerID string, limit int) ([]model.GenerationLog, error)
}
