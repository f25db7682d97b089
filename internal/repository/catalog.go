package repository

import (
	"context"

	"gallery/internal/model"
)

// CatalogRepository is the metadata index behind the gallery.
// It is append-only: records are never updated. Scan is a full, unordered
// enumeration with no pagination.
type CatalogRepository interface {
	// Append stores one record. Duplicate file URLs are allowed.
	Append(ctx context.Context, rec model.CatalogRecord) error

	// Scan returns every stored record. It either returns all of them or an error.
	Scan(ctx context.Context) ([]model.CatalogRecord, error)

	// Ping reports whether the index is reachable.
	Ping(ctx context.Context) error
}
