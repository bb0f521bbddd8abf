package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sources (
	canonical_id      TEXT PRIMARY KEY,
	display_name      TEXT NOT NULL DEFAULT '',
	last_seen_item_id TEXT NOT NULL DEFAULT '',
	last_seen_title   TEXT NOT NULL DEFAULT '',
	last_checked_at   TEXT,
	last_error        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS items (
	item_id       TEXT PRIMARY KEY,
	source_id     TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	published_at  TEXT,
	raw_text      TEXT NOT NULL DEFAULT '',
	raw_text_hash TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS summaries (
	item_id      TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	points       TEXT NOT NULL DEFAULT '[]',
	mentions     TEXT NOT NULL DEFAULT '[]',
	verdict      TEXT NOT NULL DEFAULT '',
	summary_text TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS report_windows (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	window_start TEXT,
	window_end   TEXT NOT NULL,
	item_ids     TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS report_state (
	id              INTEGER PRIMARY KEY,
	last_window_end TEXT NOT NULL
);
`

// NewSQLite opens the local fallback database, creating the parent directory
// and schema as needed.
func NewSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc's driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent sweeps.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure sqlite schema: %w", err)
	}

	return newSQLStore(db, sq.Question), nil
}
