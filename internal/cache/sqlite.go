package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteGateway persists cached wikis in a local SQLite database, for use
// without a reachable backend cache service. Use ":memory:" for an
// in-memory database.
type SQLiteGateway struct {
	db *sql.DB
}

// NewSQLiteGateway opens (or creates) the database at dbPath and ensures
// the cache table exists.
func NewSQLiteGateway(dbPath string) (*SQLiteGateway, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS wiki_cache (
		owner         TEXT NOT NULL,
		repo          TEXT NOT NULL,
		platform      TEXT NOT NULL,
		language      TEXT NOT NULL,
		comprehensive INTEGER NOT NULL,
		entry         TEXT NOT NULL,
		saved_at      DATETIME NOT NULL DEFAULT (datetime('now')),
		PRIMARY KEY (owner, repo, platform, language, comprehensive)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteGateway{db: db}, nil
}

// Close closes the underlying database connection.
func (g *SQLiteGateway) Close() error {
	return g.db.Close()
}

// Lookup implements Gateway.
func (g *SQLiteGateway) Lookup(ctx context.Context, key Key) (*Entry, bool, error) {
	var raw string
	err := g.db.QueryRowContext(ctx,
		`SELECT entry FROM wiki_cache
		 WHERE owner = ? AND repo = ? AND platform = ? AND language = ? AND comprehensive = ?`,
		key.Owner, key.Repo, string(key.Platform), key.Language, boolToInt(key.Comprehensive),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache query: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	if entry.Empty() {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Save implements Gateway, replacing any previous entry for the key.
func (g *SQLiteGateway) Save(ctx context.Context, key Key, entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}

	_, err = g.db.ExecContext(ctx,
		`INSERT INTO wiki_cache (owner, repo, platform, language, comprehensive, entry)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (owner, repo, platform, language, comprehensive)
		 DO UPDATE SET entry = excluded.entry, saved_at = datetime('now')`,
		key.Owner, key.Repo, string(key.Platform), key.Language, boolToInt(key.Comprehensive), string(raw),
	)
	if err != nil {
		return fmt.Errorf("cache insert: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
