// Package calculations provides a sqlite-backed TTL cache for expensive
// derived results (covariance matrices, expected-return vectors). Values are
// opaque byte blobs; callers serialize with msgpack.
package calculations

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Cache stores kind/key addressed blobs with an expiry.
type Cache struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if necessary) the cache database at path.
func Open(path string, log zerolog.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open calculations cache: %w", err)
	}

	c := &Cache{db: db, log: log.With().Str("component", "calculations").Logger()}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS cached_calculations (
			kind       TEXT NOT NULL,
			key        TEXT NOT NULL,
			data       BLOB NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (kind, key)
		);
		CREATE INDEX IF NOT EXISTS idx_cached_calculations_expiry ON cached_calculations(expires_at);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate cache schema: %w", err)
	}
	return nil
}

// Get returns the cached blob for kind/key if present and unexpired.
func (c *Cache) Get(kind, key string) ([]byte, bool) {
	var data []byte
	var expiresAt int64
	err := c.db.QueryRow(`
		SELECT data, expires_at FROM cached_calculations WHERE kind = ? AND key = ?
	`, kind, key).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		c.log.Warn().Err(err).Str("kind", kind).Msg("Cache read failed")
		return nil, false
	}
	if time.Now().Unix() >= expiresAt {
		return nil, false
	}
	return data, true
}

// Set stores a blob under kind/key with the given TTL, replacing any
// previous value.
func (c *Cache) Set(kind, key string, data []byte, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl).Unix()
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO cached_calculations (kind, key, data, expires_at)
		VALUES (?, ?, ?, ?)
	`, kind, key, data, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to write cache entry %s/%s: %w", kind, key, err)
	}
	return nil
}

// Prune deletes expired rows and returns how many were removed. The cron
// scheduler calls this periodically.
func (c *Cache) Prune() (int64, error) {
	res, err := c.db.Exec(`DELETE FROM cached_calculations WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	removed, _ := res.RowsAffected()
	if removed > 0 {
		c.log.Debug().Int64("removed", removed).Msg("Pruned expired cache entries")
	}
	return removed, nil
}
