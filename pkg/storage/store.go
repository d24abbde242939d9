package storage

import (
	"context"
	"errors"
	"fmt"

	"heart-audio/pkg/config"
	"heart-audio/pkg/models"
)

var ErrAnalysisNotFound = errors.New("analysis not found")

// ResultStore persists finished analyses. Records round-trip through JSON.
type ResultStore interface {
	Save(ctx context.Context, a *models.Analysis) error
	Get(ctx context.Context, id string) (*models.Analysis, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Analysis, error)
	List(ctx context.Context) ([]*models.Analysis, error)
	Close() error
}

// Open returns the result store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (ResultStore, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return NewSQLiteStore(ctx, cfg.DBPath)
	case config.BackendBadger, "":
		return NewBadgerStore(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
