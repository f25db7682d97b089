package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type migrationStep struct {
	Name string
	SQL  string
}

// catalogSteps returns the bootstrap for the catalog table. Only id and
// file_url are mandatory; rows written by older producers may lack the rest.
func catalogSteps(table string) []migrationStep {
	ident := pgx.Identifier{table}.Sanitize()
	return []migrationStep{
		{
			Name: "create_table_" + table,
			SQL: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id         TEXT        PRIMARY KEY,
  file_url   TEXT        NOT NULL,
  folder     TEXT        NULL,
  created_at TIMESTAMPTZ NULL
);`, ident),
		},
		{
			Name: "create_index_" + table + "_folder",
			SQL:  fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (folder);`, pgx.Identifier{"idx_" + table + "_folder"}.Sanitize(), ident),
		},
	}
}

// EnsureMigrated creates the catalog table when it does not exist yet.
// An existing table is left untouched.
func EnsureMigrated(ctx context.Context, db *sql.DB, table string, log zerolog.Logger) error {
	start := time.Now()
	log = log.With().Str("component", "database").Str("table", table).Logger()

	log.Info().Str("event", "db_migration_check").Msg("checking catalog schema")

	var exists bool
	err := db.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", "public."+table).Scan(&exists)
	if err != nil {
		log.Error().Err(err).
			Str("event", "db_migration_failed").
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("failed to check sentinel table")
		return fmt.Errorf("check sentinel table: %w", err)
	}

	if exists {
		log.Info().
			Str("event", "db_migration_skip").
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("schema already exists, skipping migration")
		return nil
	}

	for _, step := range catalogSteps(table) {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error().Err(err).
				Str("event", "db_migration_failed").
				Str("migration_step", step.Name).
				Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
				Msg("migration step failed")
			return fmt.Errorf("migration step %s: %w", step.Name, err)
		}
		log.Info().
			Str("event", "db_migration_step").
			Str("migration_step", step.Name).
			Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
			Send()
	}

	log.Info().
		Str("event", "db_migration_success").
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("catalog schema created")
	return nil
}
