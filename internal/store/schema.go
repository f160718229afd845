package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaVersion is bumped whenever ddl or optionalColumns change.
const schemaVersion = "2"

const ddl = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS resources (
    id            TEXT PRIMARY KEY,
    path          TEXT NOT NULL UNIQUE,
    language      TEXT NOT NULL DEFAULT '',
    last_modified INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS symbols (
    id          TEXT PRIMARY KEY,
    resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    kind        TEXT NOT NULL DEFAULT 'unknown',
    line_start  INTEGER NOT NULL,
    line_end    INTEGER NOT NULL,
    description TEXT
);

CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_resource ON symbols(resource_id);

CREATE VIRTUAL TABLE IF NOT EXISTS resources_fts USING fts4(id, content, notindexed=id);

CREATE TABLE IF NOT EXISTS memories (
    id               TEXT PRIMARY KEY,
    tier             TEXT NOT NULL,
    content          TEXT NOT NULL,
    category         TEXT NOT NULL DEFAULT '',
    timestamp        INTEGER NOT NULL,
    protection_level INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_memories_tier ON memories(tier, timestamp);

CREATE TABLE IF NOT EXISTS memory_embeddings (
    memory_id  TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
    model_id   TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    vector     BLOB NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (memory_id, model_id)
);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// optionalColumns were added to resources after the first release. They are
// checked and added one by one so old databases upgrade in place.
var optionalColumns = []struct {
	name string
	decl string
}{
	{"content_hash", "TEXT NOT NULL DEFAULT ''"},
	{"quality_score", "REAL NOT NULL DEFAULT 0"},
	{"quality_details", "TEXT"},
	{"ai_enriched", "INTEGER NOT NULL DEFAULT 0"},
	{"summary", "TEXT"},
}

// migrate creates the schema tables if they don't exist and adds any
// missing optional columns. Safe to run on every open.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fail(OpExec, "create schema", err)
	}
	for _, col := range optionalColumns {
		exists, err := columnExists(ctx, db, "resources", col.name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE resources ADD COLUMN %s %s", col.name, col.decl)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fail(OpExec, "add column "+col.name, err)
		}
	}
	_, err := db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES ('schema_version', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		schemaVersion,
	)
	return fail(OpExec, "record schema version", err)
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column,
	).Scan(&n)
	if err != nil {
		return false, fail(OpStep, "inspect "+table, err)
	}
	return n > 0, nil
}
