// Package history persists batch run summaries to PostgreSQL so past
// runs can be inspected after the fact. The store is optional: a nil
// *Store disables persistence without affecting the pipeline.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// BatchRecord is one persisted batch run.
type BatchRecord struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	OutputName  string    `json:"output_name"`
	TotalRows   int       `json:"total_rows"`
	Generated   int       `json:"generated"`
	Skipped     int       `json:"skipped"`
	Invalid     int       `json:"invalid"`
	Errored     int       `json:"errored"`
	ZipFileName string    `json:"zip_filename"`
	DurationMs  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store reads and writes batch history rows.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a connection pool. Returns nil when pool is nil so the
// caller can pass the store around unconditionally.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

// Enabled reports whether history persistence is active.
func (s *Store) Enabled() bool {
	return s != nil
}

// EnsureSchema creates the history table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS qr_batches (
			id            UUID PRIMARY KEY,
			file_name     TEXT NOT NULL,
			output_name   TEXT NOT NULL,
			total_rows    INTEGER NOT NULL,
			generated     INTEGER NOT NULL,
			skipped       INTEGER NOT NULL,
			invalid       INTEGER NOT NULL,
			errored       INTEGER NOT NULL,
			zip_file_name TEXT NOT NULL,
			duration_ms   BIGINT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure qr_batches schema: %w", err)
	}
	return nil
}

// RecordBatch inserts one batch run.
func (s *Store) RecordBatch(ctx context.Context, rec BatchRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO qr_batches
			(id, file_name, output_name, total_rows, generated, skipped, invalid, errored, zip_file_name, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.FileName, rec.OutputName, rec.TotalRows,
		rec.Generated, rec.Skipped, rec.Invalid, rec.Errored,
		rec.ZipFileName, rec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert batch record: %w", err)
	}
	return nil
}

// RecentBatches returns up to limit batch runs, newest first.
func (s *Store) RecentBatches(ctx context.Context, limit int) ([]BatchRecord, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, file_name, output_name, total_rows, generated, skipped, invalid, errored, zip_file_name, duration_ms, created_at
		FROM qr_batches
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query batch history: %w", err)
	}
	defer rows.Close()

	records := make([]BatchRecord, 0, limit)
	for rows.Next() {
		var rec BatchRecord
		if err := rows.Scan(
			&rec.ID, &rec.FileName, &rec.OutputName, &rec.TotalRows,
			&rec.Generated, &rec.Skipped, &rec.Invalid, &rec.Errored,
			&rec.ZipFileName, &rec.DurationMs, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan batch record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batch history rows: %w", err)
	}

	return records, nil
}
