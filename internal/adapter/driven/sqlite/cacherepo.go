package sqlite

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmorling/credvault/internal/offline"
)

// Compile-time interface satisfaction checks.
var _ offline.CacheStore = (*CacheRepo)(nil)

// CacheRepo is the SQLite-backed named cache used by the offline gateway.
// It implements httpcache.Cache plus the namespace enumeration the cache
// controller needs to purge superseded cache versions. The httpcache.Cache
// methods carry no error returns by design; storage failures degrade to a
// cache miss and a background log line.
type CacheRepo struct {
	db     *DB
	logger *slog.Logger
}

// NewCacheRepo creates a new CacheRepo backed by the given DB.
func NewCacheRepo(db *DB, logger *slog.Logger) *CacheRepo {
	return &CacheRepo{db: db, logger: logger}
}

// Get returns the cached response bytes for key, if present.
func (r *CacheRepo) Get(key string) ([]byte, bool) {
	const query = `SELECT response FROM http_cache WHERE cache_key = ?`

	var resp []byte
	err := r.db.Reader.QueryRow(query, key).Scan(&resp)
	if err != nil {
		return nil, false
	}

	return resp, true
}

// Set stores response bytes under key, replacing any previous entry.
func (r *CacheRepo) Set(key string, responseBytes []byte) {
	const query = `
		INSERT INTO http_cache (cache_key, response) VALUES (?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET response = excluded.response`

	if _, err := r.db.Writer.Exec(query, key, responseBytes); err != nil {
		r.logger.Error("cache write failed", "key", key, "error", err)
	}
}

// Delete removes the entry for key, if present.
func (r *CacheRepo) Delete(key string) {
	const query = `DELETE FROM http_cache WHERE cache_key = ?`

	if _, err := r.db.Writer.Exec(query, key); err != nil {
		r.logger.Error("cache delete failed", "key", key, "error", err)
	}
}

// Names returns the distinct cache namespaces present in the store. Keys are
// namespaced as "<cache name>|<request key>".
func (r *CacheRepo) Names() ([]string, error) {
	const query = `SELECT DISTINCT cache_key FROM http_cache`

	rows, err := r.db.Reader.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	var names []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan cache key: %w", err)
		}
		name, _, ok := strings.Cut(key, "|")
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache keys: %w", err)
	}

	return names, nil
}

// DropName removes every entry stored under the given cache namespace.
func (r *CacheRepo) DropName(name string) error {
	const query = `DELETE FROM http_cache WHERE cache_key LIKE ? ESCAPE '\'`

	pattern := likeEscape(name) + "|%"
	if _, err := r.db.Writer.Exec(query, pattern); err != nil {
		return fmt.Errorf("drop cache %s: %w", name, err)
	}

	return nil
}

// likeEscape escapes LIKE metacharacters in a cache name.
func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
