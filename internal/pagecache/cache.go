// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pagecache persists raw page text between runs in SQLite.
//
// Text is stored content-addressed (blobs keyed by SHA-256) and mapped from
// canonical titles. The cache is append-only: the first text stored for a
// title wins and nothing here ever replaces or removes an entry. Resetting
// the cache means deleting the database file.
package pagecache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/infobox-kg/internal/wikitext"
)

// ErrNotCached is the cause of a FetchError when the cache has no source and
// the title was never stored.
var ErrNotCached = errors.New("page not cached")

// Source fetches raw page text for a title. The MediaWiki client implements it.
type Source interface {
	FetchWikitext(ctx context.Context, title string) (string, error)
}

// FetchError reports that a title could not be fetched after the source's
// retries were exhausted. Callers skip the title and continue.
type FetchError struct {
	Title string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %q: %v", e.Title, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Stats counts cache traffic since Open.
type Stats struct {
	Hits     int64
	Misses   int64
	Failures int64
}

// Cache is the page store. It is safe for concurrent use.
type Cache struct {
	db    *sql.DB
	src   Source
	group singleflight.Group

	hits, misses, failures atomic.Int64
}

// Open opens or creates the cache database at path. src may be nil, in
// which case misses fail with ErrNotCached.
func Open(path string, src Source) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	// One connection serializes concurrent writers.
	db.SetMaxOpenConns(1)

	c := &Cache{db: db, src: src}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return c, nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS blobs (
			hash TEXT PRIMARY KEY,
			text TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pages (
			title TEXT PRIMARY KEY,
			hash TEXT NOT NULL REFERENCES blobs(hash),
			fetched_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS lookups (
			kind TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (kind, key)
		)`,
	}
	for _, stmt := range statements {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Key returns the canonical form of title used as the cache key.
func Key(title string) string {
	return wikitext.CanonicalTitle(strings.TrimSpace(title))
}

// Get returns the raw text of title, fetching and storing it on a miss.
// Concurrent misses for the same title share one fetch. Fetch failures are
// returned as *FetchError.
func (c *Cache) Get(ctx context.Context, title string) (string, error) {
	key := Key(title)
	if key == "" {
		return "", &FetchError{Title: title, Err: errors.New("empty title")}
	}
	text, ok, err := c.lookup(ctx, key)
	if err != nil {
		return "", err
	}
	if ok {
		c.hits.Add(1)
		return text, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A fetch for key may have completed between lookup and Do.
		if text, ok, err := c.lookup(ctx, key); err != nil || ok {
			return text, err
		}
		c.misses.Add(1)
		if c.src == nil {
			c.failures.Add(1)
			return nil, &FetchError{Title: key, Err: ErrNotCached}
		}
		fetched, err := c.src.FetchWikitext(ctx, key)
		if err != nil {
			c.failures.Add(1)
			return nil, &FetchError{Title: key, Err: err}
		}
		return c.Put(ctx, key, fetched)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Put stores text for title unless the title is already present, and
// returns the stored text, which is the earlier text when one existed.
func (c *Cache) Put(ctx context.Context, title, text string) (string, error) {
	key := Key(title)
	sum := sha256.Sum256([]byte(text))
	hash := hex.EncodeToString(sum[:])

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO blobs (hash, text) VALUES (?, ?)`, hash, text,
	); err != nil {
		return "", fmt.Errorf("storing blob: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO pages (title, hash, fetched_at) VALUES (?, ?, ?)`,
		key, hash, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return "", fmt.Errorf("storing page %q: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing page %q: %w", key, err)
	}

	stored, ok, err := c.lookup(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("page %q missing after insert", key)
	}
	return stored, nil
}

func (c *Cache) lookup(ctx context.Context, key string) (string, bool, error) {
	var text string
	err := c.db.QueryRowContext(ctx,
		`SELECT b.text FROM pages p JOIN blobs b ON b.hash = p.hash WHERE p.title = ?`, key,
	).Scan(&text)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("reading page %q: %w", key, err)
	}
	return text, true, nil
}

// Has reports whether title is cached.
func (c *Cache) Has(ctx context.Context, title string) (bool, error) {
	var n int
	if err := c.db.QueryRowContext(ctx,
		`SELECT count(*) FROM pages WHERE title = ?`, Key(title),
	).Scan(&n); err != nil {
		return false, fmt.Errorf("checking page: %w", err)
	}
	return n > 0, nil
}

// Len returns the number of cached titles.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM pages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting pages: %w", err)
	}
	return n, nil
}

// Stats returns traffic counters since Open.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Failures: c.failures.Load(),
	}
}

// Memo returns the memoised result of an external lookup identified by
// (kind, key), calling fn on the first request. An empty string is a valid
// result meaning "no identifier" and is memoised too; errors are not.
func (c *Cache) Memo(ctx context.Context, kind, key string, fn func(context.Context) (string, error)) (string, error) {
	if v, ok, err := c.memoLookup(ctx, kind, key); err != nil || ok {
		return v, err
	}
	v, err, _ := c.group.Do("lookup\x00"+kind+"\x00"+key, func() (any, error) {
		if v, ok, err := c.memoLookup(ctx, kind, key); err != nil || ok {
			return v, err
		}
		value, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := c.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO lookups (kind, key, value) VALUES (?, ?, ?)`, kind, key, value,
		); err != nil {
			return nil, fmt.Errorf("storing %s lookup: %w", kind, err)
		}
		v, _, err := c.memoLookup(ctx, kind, key)
		return v, err
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) memoLookup(ctx context.Context, kind, key string) (string, bool, error) {
	var v string
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM lookups WHERE kind = ? AND key = ?`, kind, key,
	).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("reading %s lookup: %w", kind, err)
	}
	return v, true, nil
}
