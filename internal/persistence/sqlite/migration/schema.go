package migration

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements is the ordered, append-only list of schema steps. The
// position in the slice is the schema version; released entries are never
// edited, only appended to.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS technicians (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		busy_calendar_url TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		customer_name TEXT NOT NULL,
		customer_email TEXT NOT NULL DEFAULT '',
		customer_phone TEXT,
		summary TEXT NOT NULL DEFAULT '',
		estimated_hours TEXT NOT NULL DEFAULT '',
		assigned_to TEXT,
		status TEXT NOT NULL DEFAULT 'unscheduled',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (assigned_to) REFERENCES technicians(id)
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		technician_id TEXT NOT NULL,
		scheduled_date TEXT NOT NULL,
		scheduled_time_start TEXT NOT NULL,
		scheduled_time_end TEXT NOT NULL,
		schedule_status TEXT NOT NULL DEFAULT 'draft',
		calendar_event_id TEXT,
		declined_by TEXT,
		segment_group TEXT,
		part_number INTEGER NOT NULL DEFAULT 1,
		part_total INTEGER NOT NULL DEFAULT 1,
		part_hours REAL NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (job_id) REFERENCES jobs(id),
		FOREIGN KEY (technician_id) REFERENCES technicians(id),
		CHECK (scheduled_time_start < scheduled_time_end)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_technician_date
		ON appointments(technician_id, scheduled_date)`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_job
		ON appointments(job_id)`,
	`CREATE TABLE IF NOT EXISTS operators (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		is_manager INTEGER NOT NULL DEFAULT 0,
		disabled INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		operator_id TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		expires_at TEXT NOT NULL,
		revoked_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (operator_id) REFERENCES operators(id)
	)`,
}

// Apply brings the database schema up to the current version. Each schema
// step runs in its own transaction and the applied version is recorded, so
// a restart resumes where it left off.
func Apply(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	for version := current; version < len(schemaStatements); version++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, schemaStatements[version]); err != nil {
			tx.Rollback()
			return fmt.Errorf("schema step %d failed: %w", version+1, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to reset schema version: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, version+1); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record schema version: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit schema step %d: %w", version+1, err)
		}
	}

	return nil
}

func currentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
