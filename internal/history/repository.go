// Package history persists finished score results so past runs can be
// listed, ranked and diffed. The full result is stored as JSON for API
// reads; the raw signal snapshot is additionally stored as a compact
// msgpack blob so audit tooling can decode evidence without parsing the
// whole result document.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/nichescout/nichescout/internal/opportunity"
	"github.com/nichescout/nichescout/internal/signals"
)

// Entry is one persisted scoring run, without the full result document.
type Entry struct {
	ID               string    `json:"id"`
	Keyword          string    `json:"keyword"`
	Category         string    `json:"category"`
	Country          string    `json:"country"`
	OpportunityScore float64   `json:"opportunity_score"`
	ScoredAt         time.Time `json:"scored_at"`
}

// Repository stores and queries score history.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a score history repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Save persists one finished result.
func (r *Repository) Save(ctx context.Context, result *opportunity.ScoreResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	snapshot, err := msgpack.Marshal(result.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO opportunity_scores
			(id, keyword, category, country, opportunity_score, result_json, snapshot, scored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.Keyword, result.Category, result.Country,
		result.OpportunityScore, string(resultJSON), snapshot, result.ScoredAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save score for %q: %w", result.Keyword, err)
	}
	return nil
}

// Get returns one stored result by ID, or nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*opportunity.ScoreResult, error) {
	var resultJSON string
	err := r.db.QueryRowContext(ctx,
		"SELECT result_json FROM opportunity_scores WHERE id = ?", id,
	).Scan(&resultJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score %s: %w", id, err)
	}

	var result opportunity.ScoreResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to decode score %s: %w", id, err)
	}
	return &result, nil
}

// GetSnapshot decodes the msgpack evidence blob for one stored result.
func (r *Repository) GetSnapshot(ctx context.Context, id string) (*signals.RawSignalSnapshot, error) {
	var blob []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT snapshot FROM opportunity_scores WHERE id = ?", id,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s: %w", id, err)
	}

	var snap signals.RawSignalSnapshot
	if err := msgpack.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// List returns recent runs for a keyword (all keywords when empty),
// newest first.
func (r *Repository) List(ctx context.Context, keyword string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, keyword, category, country, opportunity_score, scored_at
		FROM opportunity_scores`
	args := []interface{}{}
	if keyword != "" {
		query += " WHERE keyword = ?"
		args = append(args, keyword)
	}
	query += " ORDER BY scored_at DESC LIMIT ?"
	args = append(args, limit)

	return r.queryEntries(ctx, query, args...)
}

// Top returns the highest-scoring runs, best first. When a keyword was
// scored more than once only its latest run counts.
func (r *Repository) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	return r.queryEntries(ctx, `
		SELECT id, keyword, category, country, opportunity_score, scored_at
		FROM opportunity_scores
		WHERE scored_at = (
			SELECT MAX(s2.scored_at) FROM opportunity_scores s2
			WHERE s2.keyword = opportunity_scores.keyword
			AND s2.country = opportunity_scores.country
		)
		ORDER BY opportunity_score DESC
		LIMIT ?`, limit)
}

// DeleteOlderThan removes runs scored before the cutoff. Returns the
// number of rows deleted.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM opportunity_scores WHERE scored_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old scores: %w", err)
	}
	return res.RowsAffected()
}

func (r *Repository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var scoredAt int64
		if err := rows.Scan(&e.ID, &e.Keyword, &e.Category, &e.Country, &e.OpportunityScore, &scoredAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.ScoredAt = time.Unix(scoredAt, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
