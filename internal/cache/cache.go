package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go-storefront/internal/config"
	"go-storefront/internal/logger"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	_ "modernc.org/sqlite"
)

// Cache provides a SQLite-based caching mechanism.
type Cache struct {
	db  *sqlx.DB
	now func() time.Time
}

// New creates a new Cache instance.
// It opens the SQLite database at cfg.FilePath and ensures the cache table
// exists. "file::memory:" gives a private in-memory cache.
func New(cfg config.CacheConfig) (*Cache, error) {
	db, err := sqlx.Connect("sqlite", cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite cache: %w", err)
	}
	// A single connection keeps in-memory caches coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode on sqlite cache: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		value BLOB,
		expires_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_expires_at ON cache (expires_at);
	`
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &Cache{db: db, now: time.Now}, nil
}

// Get retrieves an item from the cache. It returns nil if the item is not found or is expired.
func (c *Cache) Get(key string) ([]byte, error) {
	var item struct {
		Value     []byte `db:"value"`
		ExpiresAt int64  `db:"expires_at"`
	}
	query := `SELECT value, expires_at FROM cache WHERE key = ?`
	err := c.db.Get(&item, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found is not an error for a cache miss.
		}
		return nil, fmt.Errorf("failed to get item from cache: %w", err)
	}

	if c.now().UnixNano() > item.ExpiresAt {
		_ = c.Delete(key)
		return nil, nil
	}

	return item.Value, nil
}

// Set adds an item to the cache with a specific TTL (time-to-live).
func (c *Cache) Set(key string, value []byte, ttl time.Duration) error {
	expiresAt := c.now().Add(ttl).UnixNano()
	query := `INSERT OR REPLACE INTO cache (key, value, expires_at) VALUES (?, ?, ?)`
	if _, err := c.db.Exec(query, key, value, expiresAt); err != nil {
		return fmt.Errorf("failed to set item in cache: %w", err)
	}
	return nil
}

// Delete removes an item from the cache.
func (c *Cache) Delete(key string) error {
	query := `DELETE FROM cache WHERE key = ?`
	if _, err := c.db.Exec(query, key); err != nil {
		return fmt.Errorf("failed to delete item from cache: %w", err)
	}
	return nil
}

// PurgeExpired deletes every expired entry and returns how many were removed.
func (c *Cache) PurgeExpired() (int64, error) {
	res, err := c.db.Exec(`DELETE FROM cache WHERE expires_at < ?`, c.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return res.RowsAffected()
}

// StartPurger runs PurgeExpired on the given cron schedule until the
// returned cron is stopped.
func (c *Cache) StartPurger(schedule string, log logger.Logger) (*cron.Cron, error) {
	cr := cron.New()
	_, err := cr.AddFunc(schedule, func() {
		n, err := c.PurgeExpired()
		if err != nil {
			log.Error(err, "cache purge failed")
			return
		}
		if n > 0 {
			log.Debug(fmt.Sprintf("purged %d expired cache entries", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cache purge schedule %q: %w", schedule, err)
	}
	cr.Start()
	return cr, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
