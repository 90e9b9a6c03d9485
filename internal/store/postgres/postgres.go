// Package postgres is a Store backed by PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/csvclean/internal/quota"
	"github.com/JonMunkholm/csvclean/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage_records (
	identity     TEXT PRIMARY KEY,
	period_start TIMESTAMPTZ NOT NULL,
	count        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS cleaning_jobs (
	id            TEXT PRIMARY KEY,
	identity      TEXT NOT NULL,
	tier          TEXT NOT NULL,
	file_name     TEXT NOT NULL,
	file_size     BIGINT NOT NULL,
	original_rows INTEGER NOT NULL,
	final_rows    INTEGER NOT NULL,
	column_count  INTEGER NOT NULL,
	score_before  DOUBLE PRECISION NOT NULL,
	score_after   DOUBLE PRECISION NOT NULL,
	operations    TEXT[] NOT NULL,
	llm_error     TEXT NOT NULL DEFAULT '',
	processing_ms BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_cleaning_jobs_identity ON cleaning_jobs (identity, created_at DESC);
`

const tryIncrementSQL = `
INSERT INTO usage_records (identity, period_start, count) VALUES ($1, $2, 1)
ON CONFLICT (identity) DO UPDATE SET
	count = CASE WHEN usage_records.period_start < EXCLUDED.period_start THEN 1 ELSE usage_records.count + 1 END,
	period_start = GREATEST(usage_records.period_start, EXCLUDED.period_start)
WHERE usage_records.period_start < EXCLUDED.period_start OR $3::int < 0 OR usage_records.count < $3::int
RETURNING count`

// PoolOptions tunes the connection pool.
type PoolOptions struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Connect opens a pool, verifies it and applies the schema.
func Connect(ctx context.Context, url string, opts PoolOptions) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		cfg.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. The Store takes ownership of it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) TryIncrement(ctx context.Context, identity string, period time.Time, limit int) (int, bool, error) {
	if limit == 0 {
		return 0, false, nil
	}
	var count int
	err := s.pool.QueryRow(ctx, tryIncrementSQL, identity, period.UTC(), limit).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		used, err := s.Usage(ctx, identity, period)
		return used, false, err
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment usage: %w", err)
	}
	return count, true, nil
}

func (s *Store) Decrement(ctx context.Context, identity string, period time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE usage_records SET count = count - 1 WHERE identity = $1 AND period_start = $2 AND count > 0`,
		identity, period.UTC())
	if err != nil {
		return fmt.Errorf("decrement usage: %w", err)
	}
	return nil
}

func (s *Store) Usage(ctx context.Context, identity string, period time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count FROM usage_records WHERE identity = $1 AND period_start = $2`,
		identity, period.UTC()).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage: %w", err)
	}
	return count, nil
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM usage_records WHERE period_start < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge usage: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RecordJob inserts a committed cleaning.
func (s *Store) RecordJob(ctx context.Context, job store.CleaningJob) error {
	ops := job.Operations
	if ops == nil {
		ops = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cleaning_jobs (
			id, identity, tier, file_name, file_size, original_rows, final_rows,
			column_count, score_before, score_after, operations, llm_error, processing_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		job.ID, job.Identity, string(job.Tier), job.FileName, job.FileSize,
		job.OriginalRows, job.FinalRows, job.Columns, job.ScoreBefore, job.ScoreAfter,
		ops, job.LLMError, job.ProcessingMS, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cleaning job: %w", err)
	}
	return nil
}

// RecentJobs returns an identity's most recent cleanings, newest first.
func (s *Store) RecentJobs(ctx context.Context, identity string, limit int) ([]store.CleaningJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, identity, tier, file_name, file_size, original_rows, final_rows,
			column_count, score_before, score_after, operations, llm_error, processing_ms, created_at
		FROM cleaning_jobs
		WHERE identity = $1
		ORDER BY created_at DESC
		LIMIT $2`, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("query cleaning jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]store.CleaningJob, 0)
	for rows.Next() {
		var (
			job  store.CleaningJob
			tier string
		)
		if err := rows.Scan(&job.ID, &job.Identity, &tier, &job.FileName, &job.FileSize,
			&job.OriginalRows, &job.FinalRows, &job.Columns, &job.ScoreBefore, &job.ScoreAfter,
			&job.Operations, &job.LLMError, &job.ProcessingMS, &job.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cleaning job: %w", err)
		}
		job.Tier = quota.Tier(tier)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
