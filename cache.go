package edgar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Cache keeps fetched EDGAR documents in a SQLite file keyed by URL.
// Entries only expire when maxAge is positive.
type Cache struct {
	db     *sql.DB
	maxAge time.Duration
	now    func() time.Time
}

// OpenCache opens (or creates) the cache database at path. Use ":memory:"
// for a throwaway cache.
func OpenCache(path string, maxAge time.Duration) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	// A :memory: database exists per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		url TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		fetched_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate cache: %w", err)
	}

	return &Cache{db: db, maxAge: maxAge, now: time.Now}, nil
}

// Get returns the cached body for url
func (c *Cache) Get(ctx context.Context, url string) (string, bool, error) {
	var (
		body      string
		fetchedAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT body, fetched_at FROM documents WHERE url = ?`, url,
	).Scan(&body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cache: %w", err)
	}

	if c.maxAge > 0 && c.now().Sub(time.Unix(fetchedAt, 0)) > c.maxAge {
		return "", false, nil
	}
	return body, true, nil
}

// Put stores body for url, replacing any earlier entry
func (c *Cache) Put(ctx context.Context, url, body string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO documents (url, body, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		url, body, c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Len returns the number of cached documents
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}
