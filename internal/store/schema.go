package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// schemaVersion is bumped whenever migrate gains a step. A store already at
// this version is opened without any write.
const schemaVersion = 3

// Schema DDL. Tables are created with their original column set; later
// columns are added by addMissingColumns so older stores upgrade in place.
const (
	createSchemaMigrations = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`

	createWorkspaces = `CREATE TABLE IF NOT EXISTS workspaces (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
)`

	createWorkspaceDirs = `CREATE TABLE IF NOT EXISTS workspace_dirs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    workspace_id INTEGER NOT NULL,
    path TEXT NOT NULL,
    collapsed INTEGER NOT NULL DEFAULT 0,
    UNIQUE (workspace_id, path),
    FOREIGN KEY (workspace_id) REFERENCES workspaces(id) ON DELETE CASCADE
)`

	createItems = `CREATE TABLE IF NOT EXISTS items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    text TEXT NOT NULL,
    completed INTEGER NOT NULL DEFAULT 0,
    item_type TEXT NOT NULL DEFAULT 'daily',
    memo TEXT,
    target_count INTEGER,
    current_count INTEGER NOT NULL DEFAULT 0
)`

	createTags = `CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    color TEXT,
    position INTEGER NOT NULL DEFAULT 0
)`

	createItemTags = `CREATE TABLE IF NOT EXISTS item_tags (
    item_id INTEGER NOT NULL,
    tag_id INTEGER NOT NULL,
    PRIMARY KEY (item_id, tag_id),
    FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE,
    FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
)`

	createTagTags = `CREATE TABLE IF NOT EXISTS tag_tags (
    child_tag_id INTEGER NOT NULL,
    parent_tag_id INTEGER NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (child_tag_id, parent_tag_id),
    CHECK (child_tag_id <> parent_tag_id),
    FOREIGN KEY (child_tag_id) REFERENCES tags(id) ON DELETE CASCADE,
    FOREIGN KEY (parent_tag_id) REFERENCES tags(id) ON DELETE CASCADE
)`

	createWindowState = `CREATE TABLE IF NOT EXISTS window_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    width REAL NOT NULL,
    height REAL NOT NULL,
    x REAL NOT NULL,
    y REAL NOT NULL,
    pinned INTEGER NOT NULL DEFAULT 0
)`
)

// Columns added to items after the first release, in the order they were
// introduced. ALTER TABLE ADD COLUMN only accepts constant defaults, so
// timestamps default to 0 and are always written explicitly.
var itemColumnMigrations = []struct {
	name string
	ddl  string
}{
	{"parent_id", "parent_id INTEGER"},
	{"position", "position INTEGER NOT NULL DEFAULT 0"},
	{"collapsed", "collapsed INTEGER NOT NULL DEFAULT 0"},
	{"workspace_id", "workspace_id INTEGER NOT NULL DEFAULT 1"},
	{"url", "url TEXT"},
	{"summary", "summary TEXT"},
	{"created_at", "created_at INTEGER NOT NULL DEFAULT 0"},
	{"updated_at", "updated_at INTEGER NOT NULL DEFAULT 0"},
	{"content_hash", "content_hash TEXT"},
	{"quick_hash", "quick_hash TEXT"},
	{"last_known_path", "last_known_path TEXT"},
	{"is_dir", "is_dir INTEGER NOT NULL DEFAULT 0"},
}

var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_items_siblings ON items(workspace_id, parent_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_items_last_known_path ON items(last_known_path)`,
	`CREATE INDEX IF NOT EXISTS idx_items_quick_hash ON items(quick_hash, is_dir)`,
	`CREATE INDEX IF NOT EXISTS idx_items_content_hash ON items(content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_tag_tags_parent ON tag_tags(parent_tag_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_item_tags_tag ON item_tags(tag_id)`,
}

const seedFixedWorkspaces = `INSERT OR IGNORE INTO workspaces (id, name) VALUES
    (1, 'todos'), (2, 'files'), (3, 'others'), (4, 'bookmarks')`

// Migrate brings the schema of db up to date in one transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	current, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration: %w", err)
	}
	defer tx.Rollback()

	for _, ddl := range []string{
		createSchemaMigrations,
		createWorkspaces,
		createWorkspaceDirs,
		createItems,
		createTags,
		createItemTags,
		createTagTags,
		createWindowState,
	} {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	if err := addMissingColumns(ctx, tx); err != nil {
		return err
	}

	for _, ddl := range schemaIndexes {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, seedFixedWorkspaces); err != nil {
		return fmt.Errorf("seeding workspaces: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		schemaVersion, time.Now().Unix()); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}

func currentSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`).Scan(&n)
	if err != nil || n == 0 {
		return 0, err
	}
	var v int
	err = db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
	return v, err
}

func addMissingColumns(ctx context.Context, tx *sql.Tx) error {
	existing, err := tableColumns(ctx, tx, "items")
	if err != nil {
		return err
	}
	for _, col := range itemColumnMigrations {
		if existing[col.name] {
			continue
		}
		if _, err := tx.ExecContext(ctx, "ALTER TABLE items ADD COLUMN "+col.ddl); err != nil {
			return fmt.Errorf("adding items.%s: %w", col.name, err)
		}
	}
	return nil
}

// tableColumns returns the column names of table. table is always a
// constant from this package.
func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return nil, fmt.Errorf("reading %s columns: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scanning %s columns: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
