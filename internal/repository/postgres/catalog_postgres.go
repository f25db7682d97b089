package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gallery/internal/model"
	"gallery/internal/repository"
)

// CatalogPostgres is a PostgreSQL implementation of repository.CatalogRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type CatalogPostgres struct {
	db        *sql.DB
	appendSQL string
	scanSQL   string
}

// NewCatalogPostgres creates a repository over the given table.
// The table name is quoted as an identifier, never interpolated raw.
func NewCatalogPostgres(db *sql.DB, table string) *CatalogPostgres {
	t := pgx.Identifier{table}.Sanitize()
	return &CatalogPostgres{
		db:        db,
		appendSQL: fmt.Sprintf(`INSERT INTO %s (id, file_url, folder, created_at) VALUES ($1, $2, $3, $4)`, t),
		scanSQL:   fmt.Sprintf(`SELECT id, file_url, folder, created_at FROM %s`, t),
	}
}

var _ repository.CatalogRepository = (*CatalogPostgres)(nil)

// Append inserts one catalog row.
func (r *CatalogPostgres) Append(ctx context.Context, rec model.CatalogRecord) error {
	var folder sql.NullString
	if rec.Folder != "" {
		folder = sql.NullString{String: rec.Folder, Valid: true}
	}
	var createdAt sql.NullTime
	if rec.CreatedAt != nil {
		createdAt = sql.NullTime{Time: *rec.CreatedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, r.appendSQL, rec.ID, rec.FileURL, folder, createdAt)
	return err
}

// Scan reads the whole table. Rows with NULL folder or created_at are returned
// with those fields empty.
func (r *CatalogPostgres) Scan(ctx context.Context) ([]model.CatalogRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.scanSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.CatalogRecord, 0)
	for rows.Next() {
		var (
			rec       model.CatalogRecord
			folder    sql.NullString
			createdAt sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.FileURL, &folder, &createdAt); err != nil {
			return nil, err
		}
		rec.Folder = folder.String
		if createdAt.Valid {
			t := createdAt.Time
			rec.CreatedAt = &t
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Ping checks database connectivity.
func (r *CatalogPostgres) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
