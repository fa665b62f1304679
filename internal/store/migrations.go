package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all sherpa tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS studies (
		id                  TEXT PRIMARY KEY,
		name                TEXT NOT NULL,
		state               TEXT NOT NULL DEFAULT 'ACTIVE',
		lower_is_better     INTEGER NOT NULL DEFAULT 0,
		min_resource        INTEGER NOT NULL,
		max_resource        INTEGER NOT NULL,
		eta                 INTEGER NOT NULL,
		max_finished_trials INTEGER NOT NULL,
		seed                INTEGER NOT NULL DEFAULT 0,
		definition          TEXT NOT NULL DEFAULT '{}',
		labels              TEXT NOT NULL DEFAULT '{}',
		created_at          TEXT NOT NULL,
		finished_at         TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS trials (
		study_id      TEXT NOT NULL REFERENCES studies(id),
		id            INTEGER NOT NULL,
		parameters    TEXT NOT NULL DEFAULT '{}',
		rung          INTEGER NOT NULL,
		resource_from INTEGER NOT NULL,
		resource_to   INTEGER NOT NULL,
		parent_id     INTEGER NOT NULL DEFAULT 0,
		state         TEXT NOT NULL DEFAULT 'PENDING',
		worker_id     TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL,
		started_at    TEXT,
		completed_at  TEXT,
		PRIMARY KEY (study_id, id)
	)`,

	// Observations are append-only; rowid order is insertion order.
	`CREATE TABLE IF NOT EXISTS observations (
		study_id    TEXT NOT NULL REFERENCES studies(id),
		trial_id    INTEGER NOT NULL,
		rung        INTEGER NOT NULL,
		objective   REAL NOT NULL,
		context     TEXT NOT NULL DEFAULT '{}',
		recorded_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_studies_state ON studies(state)`,
	`CREATE INDEX IF NOT EXISTS idx_trials_state ON trials(study_id, state)`,
	`CREATE INDEX IF NOT EXISTS idx_observations_study ON observations(study_id)`,

	// Workers table for remote trial execution
	`CREATE TABLE IF NOT EXISTS workers (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		hostname      TEXT NOT NULL DEFAULT '',
		state         TEXT NOT NULL DEFAULT 'online',
		trainer       TEXT NOT NULL DEFAULT 'sim',
		labels        TEXT NOT NULL DEFAULT '{}',
		last_seen     TEXT NOT NULL,
		current_trial INTEGER NOT NULL DEFAULT 0,
		registered_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_workers_state ON workers(state)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "studies",
		column:   "submitted_by",
		alterSQL: "ALTER TABLE studies ADD COLUMN submitted_by TEXT NOT NULL DEFAULT ''",
		indexSQL: "CREATE INDEX IF NOT EXISTS idx_studies_submitted_by ON studies(submitted_by)",
	},
	// Study the worker is currently checked out against, for the reaper.
	{
		table:    "workers",
		column:   "current_study",
		alterSQL: "ALTER TABLE workers ADD COLUMN current_study TEXT NOT NULL DEFAULT ''",
	},
}

// migrate executes all schema DDL statements, alter migrations, and post-migration indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	// Execute ALTER TABLE statements idempotently.
	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	// Query table info to check if column exists.
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil // Column already exists
		}
	}

	// Column doesn't exist, add it.
	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
