package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
)

const postgresSchema = `
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
	id           BIGSERIAL PRIMARY KEY,
	window_start TEXT,
	window_end   TEXT NOT NULL,
	item_ids     TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS report_state (
	id              INT PRIMARY KEY,
	last_window_end TEXT NOT NULL
);
`

// NewPostgres connects to the primary Postgres backend and ensures the schema.
func NewPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure postgres schema: %w", err)
	}

	return newSQLStore(db, sq.Dollar), nil
}
