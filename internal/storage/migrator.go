package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/sonar/assets"
)

const migrationTableSchema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at DATETIME
);`

// runMigrations applies every embedded migration not yet recorded in schema_migrations.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(migrationTableSchema); err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	migrations, err := assets.Migrations()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow("SELECT 1 FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", m.Version, err)
		}

		log.Info().Str("version", m.Version).Msg("Applying database migration")

		if err := applyMigration(db, m); err != nil {
			return err
		}
	}

	return nil
}

func applyMigration(db *sql.DB, m assets.Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("exec migration %s: %w", m.Version, err)
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.Version, time.Now().UTC()); err != nil {
		return fmt.Errorf("record migration %s: %w", m.Version, err)
	}

	return tx.Commit()
}
