// Package cache stores rewritten package sources in a SQLite database so
// that unchanged packages are not type-checked and rewritten again.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"
)

// codegenVersion is bumped when the emitted literal format changes.
// This ensures stale cached rewrites are redone.
const codegenVersion = "v1"

// FileName is the database file inside the cache directory.
const FileName = "cache.db"

const schema = `
CREATE TABLE IF NOT EXISTS rewrites (
	key      TEXT    NOT NULL,
	file     TEXT    NOT NULL,
	source   BLOB    NOT NULL,
	rewrites INTEGER NOT NULL,
	PRIMARY KEY (key, file)
)`

// Cache is an open rewrite cache.
type Cache struct {
	dir string
	db  *sql.DB
}

// Input is one source file contributing to a key.
type Input struct {
	Name    string
	Content []byte
}

// Entry is one cached file rewrite.
type Entry struct {
	File     string
	Source   []byte
	Rewrites int
}

// Open opens or creates the cache in dir.
func Open(ctx context.Context, dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	// A single connection serializes writers; sqlite locks the file anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache: %w", err)
	}
	return &Cache{dir: dir, db: db}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Lookup returns the entries stored under key. The boolean is false on a
// miss.
func (c *Cache) Lookup(ctx context.Context, key string) ([]Entry, bool, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT file, source, rewrites FROM rewrites WHERE key = ? ORDER BY file`, key)
	if err != nil {
		return nil, false, fmt.Errorf("querying cache: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.File, &e.Source, &e.Rewrites); err != nil {
			return nil, false, fmt.Errorf("reading cache: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("reading cache: %w", err)
	}
	return entries, len(entries) > 0, nil
}

// Store replaces the entries stored under key.
func (c *Cache) Store(ctx context.Context, key string, entries []Entry) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rewrites WHERE key = ?`, key); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rewrites (key, file, source, rewrites) VALUES (?, ?, ?, ?)`,
			key, e.File, e.Source, e.Rewrites); err != nil {
			return fmt.Errorf("writing cache entry %s: %w", e.File, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Len returns the number of distinct keys stored.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT key) FROM rewrites`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache: %w", err)
	}
	return n, nil
}

// Clean removes the cache directory.
func Clean(dir string) error {
	return os.RemoveAll(dir)
}

// Key computes a deterministic cache key from the package identity, its
// source files and the config content. Inputs are hashed in name order.
func Key(pkgPath string, configData []byte, inputs []Input) string {
	sorted := append([]Input(nil), inputs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	h.Write([]byte(pkgPath))
	h.Write([]byte("\x00"))
	h.Write(configData)
	for _, in := range sorted {
		h.Write([]byte("\x00"))
		h.Write([]byte(in.Name))
		h.Write([]byte("\x00"))
		h.Write(in.Content)
	}

	// Include the version of the codegen (so cache invalidates on updates)
	h.Write([]byte("\x00"))
	h.Write([]byte(codegenVersion))

	return hex.EncodeToString(h.Sum(nil))[:32]
}
