package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS conversion_history (
	id               UUID PRIMARY KEY,
	source_file      TEXT NOT NULL,
	output_file      TEXT NOT NULL DEFAULT '',
	language         TEXT NOT NULL,
	status           TEXT NOT NULL,
	error_code       TEXT NOT NULL DEFAULT '',
	rows_read        INTEGER NOT NULL DEFAULT 0,
	empty_rows       INTEGER NOT NULL DEFAULT 0,
	records          INTEGER NOT NULL DEFAULT 0,
	holdings_items   INTEGER NOT NULL DEFAULT 0,
	parse_anomalies  INTEGER NOT NULL DEFAULT 0,
	malformed_pairs  INTEGER NOT NULL DEFAULT 0,
	holdings_rereads INTEGER NOT NULL DEFAULT 0,
	ip_address       TEXT NOT NULL DEFAULT '',
	user_agent       TEXT NOT NULL DEFAULT '',
	duration_ms      BIGINT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS conversion_history_created_at_idx
	ON conversion_history (created_at DESC);
`

const insertSQL = `
INSERT INTO conversion_history (
	id, source_file, output_file, language, status, error_code,
	rows_read, empty_rows, records, holdings_items, parse_anomalies,
	malformed_pairs, holdings_rereads, ip_address, user_agent,
	duration_ms, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

const recentSQL = `
SELECT id, source_file, output_file, language, status, error_code,
	rows_read, empty_rows, records, holdings_items, parse_anomalies,
	malformed_pairs, holdings_rereads, ip_address, user_agent,
	duration_ms, created_at
FROM conversion_history
ORDER BY created_at DESC
LIMIT $1`

// PostgresStore persists entries in the conversion_history table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the history table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create conversion_history: %w", err)
	}
	return nil
}

// Record inserts e.
func (s *PostgresStore) Record(ctx context.Context, e Entry) error {
	_, err := s.pool.Exec(ctx, insertSQL,
		e.ID, e.SourceFile, e.OutputFile, e.Language, string(e.Status), e.ErrorCode,
		e.Stats.Rows, e.Stats.EmptyRows, e.Stats.Records, e.Stats.HoldingsItems,
		e.Stats.ParseAnomalies, e.Stats.MalformedPairs, e.Stats.HoldingsRereads,
		e.IPAddress, e.UserAgent, e.DurationMS, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversion history: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultCapacity
	}

	rows, err := s.pool.Query(ctx, recentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversion history: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		var status string
		err := row.Scan(
			&e.ID, &e.SourceFile, &e.OutputFile, &e.Language, &status, &e.ErrorCode,
			&e.Stats.Rows, &e.Stats.EmptyRows, &e.Stats.Records, &e.Stats.HoldingsItems,
			&e.Stats.ParseAnomalies, &e.Stats.MalformedPairs, &e.Stats.HoldingsRereads,
			&e.IPAddress, &e.UserAgent, &e.DurationMS, &e.CreatedAt,
		)
		e.Status = Status(status)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan conversion history: %w", err)
	}
	return entries, nil
}
