// Package clientdata provides persistent caching for external API client responses.
// All data is stored as JSON blobs with expiration timestamps for cache-first behavior.
package clientdata

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AllTables lists all tables in clientdata.db for cleanup operations.
var AllTables = []string{
	"appstore_search",
	"appstore_hints",
	"trends",
	"community",
}

// validTables is a set for O(1) table name validation.
var validTables = func() map[string]bool {
	m := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		m[t] = true
	}
	return m
}()

// Repository provides cache operations for client data.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// validateTable ensures the table name is in our allowed list.
// This prevents SQL injection through table names.
func validateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

// Store saves data with expiration = now + ttl.
// Uses INSERT OR REPLACE to upsert data; the hit counter restarts at zero.
func (r *Repository) Store(table, key string, params map[string]interface{}, data interface{}, ttl time.Duration) error {
	if err := validateTable(table); err != nil {
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	expiresAt := r.now().Add(ttl).Unix()

	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (cache_key, data, hits, expires_at) VALUES (?, ?, 0, ?)",
		table,
	)

	if _, err := r.db.Exec(query, Key(table, key, params), string(jsonData), expiresAt); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}

	return nil
}

// Lookup reads one entry and reports whether it is still fresh. An expired
// row is deleted lazily and counts as a miss, but its data is still returned
// so callers can keep it as a stale fallback when the refetch fails.
// A missing key returns (nil, false, nil).
func (r *Repository) Lookup(table, key string, params map[string]interface{}) (json.RawMessage, bool, error) {
	if err := validateTable(table); err != nil {
		return nil, false, err
	}

	cacheKey := Key(table, key, params)
	now := r.now().Unix()

	query := fmt.Sprintf("SELECT data, expires_at FROM %s WHERE cache_key = ?", table)

	var data string
	var expiresAt int64
	err := r.db.QueryRow(query, cacheKey).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	if expiresAt <= now {
		// Lazy eviction: the row is gone by the time the caller refetches.
		deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE cache_key = ?", table)
		if _, err := r.db.Exec(deleteQuery, cacheKey); err != nil {
			return nil, false, fmt.Errorf("failed to evict expired row from %s: %w", table, err)
		}
		return json.RawMessage(data), false, nil
	}

	hitQuery := fmt.Sprintf("UPDATE %s SET hits = hits + 1 WHERE cache_key = ?", table)
	if _, err := r.db.Exec(hitQuery, cacheKey); err != nil {
		return nil, false, fmt.Errorf("failed to record cache hit in %s: %w", table, err)
	}

	return json.RawMessage(data), true, nil
}

// GetIfFresh returns data only if expires_at > now, nil otherwise.
// An expired row is deleted lazily and reported as a miss.
func (r *Repository) GetIfFresh(table, key string, params map[string]interface{}) (json.RawMessage, error) {
	data, fresh, err := r.Lookup(table, key, params)
	if err != nil || !fresh {
		return nil, err
	}
	return data, nil
}

// Get returns data regardless of expiration status.
// Use this as a fallback when API calls fail - stale data is better than no data.
// Returns nil, nil if the key doesn't exist.
func (r *Repository) Get(table, key string, params map[string]interface{}) (json.RawMessage, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE cache_key = ?", table)

	var data string
	err := r.db.QueryRow(query, Key(table, key, params)).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	return json.RawMessage(data), nil
}

// Invalidate removes a specific entry.
func (r *Repository) Invalidate(table, key string, params map[string]interface{}) error {
	if err := validateTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE cache_key = ?", table)

	if _, err := r.db.Exec(query, Key(table, key, params)); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	return nil
}

// InvalidateAll removes every entry of one type.
func (r *Repository) InvalidateAll(table string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s", table)

	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	return nil
}

// SweepExpired removes all rows where expires_at < now.
// Returns the number of rows deleted.
func (r *Repository) SweepExpired(table string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	now := r.now().Unix()

	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table)

	result, err := r.db.Exec(query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}

	return deleted, nil
}

// SweepAllExpired removes all expired entries from all tables.
// Returns a map of table name to number of rows deleted.
func (r *Repository) SweepAllExpired() (map[string]int64, error) {
	results := make(map[string]int64)

	for _, table := range AllTables {
		deleted, err := r.SweepExpired(table)
		if err != nil {
			return results, fmt.Errorf("failed to delete expired from %s: %w", table, err)
		}
		results[table] = deleted
	}

	return results, nil
}
