package storage

import (
	"context"
	"fmt"

	"gallery/internal/config"
)

// New returns the Storage selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case config.StorageMinIO:
		return NewMinIO(ctx, cfg)
	case config.StorageS3:
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
