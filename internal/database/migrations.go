package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS people (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    nama TEXT UNIQUE NOT NULL,
    alias TEXT NOT NULL DEFAULT '',
    jenis_kelamin TEXT NOT NULL DEFAULT '',
    kta TEXT NOT NULL DEFAULT '',
    jabatan TEXT NOT NULL DEFAULT '',
    tingkat TEXT NOT NULL DEFAULT '',
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS analysis_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    person_name TEXT NOT NULL,
    jabatan TEXT NOT NULL DEFAULT '',
    text TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    risk_score INTEGER NOT NULL DEFAULT 0,
    risk_percentage TEXT NOT NULL DEFAULT '0%',
    category TEXT NOT NULL DEFAULT 'RENDAH',
    risk_factors TEXT NOT NULL DEFAULT '[]',
    recommendation TEXT NOT NULL DEFAULT '',
    urgency TEXT NOT NULL DEFAULT 'MONITORING',
    source TEXT,
    url TEXT,
    added_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_records_person ON analysis_records(person_name);
CREATE INDEX IF NOT EXISTS idx_records_added ON analysis_records(added_at);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "search keyword on analysis records",
		Up: func(tx *sql.Tx) error {
			return addColumn(tx, "analysis_records", "search_keyword", "TEXT")
		},
	},
	{
		Version:     3,
		Description: "background tasks",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS tasks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    query TEXT NOT NULL,
    from_date TEXT NOT NULL,
    to_date TEXT,
    include_today INTEGER NOT NULL DEFAULT 1,
    person_ids TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL DEFAULT 'active'
        CHECK(status IN ('active', 'paused', 'completed', 'failed')),
    last_run_at TEXT,
    last_run_id TEXT,
    results_count INTEGER NOT NULL DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
`); err != nil {
				return err
			}
			// Untasked records carry task_id 0 so the unique key covers them.
			if err := addColumn(tx, "analysis_records", "task_id", "INTEGER NOT NULL DEFAULT 0"); err != nil {
				return err
			}
			_, err := tx.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_records_identity
    ON analysis_records(person_name, text, task_id);
CREATE INDEX IF NOT EXISTS idx_records_task ON analysis_records(task_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
