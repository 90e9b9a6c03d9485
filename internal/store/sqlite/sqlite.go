// Package sqlite is an embedded Store backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/csvclean/internal/quota"
	"github.com/JonMunkholm/csvclean/internal/store"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage_records (
	identity     TEXT PRIMARY KEY,
	period_start INTEGER NOT NULL,
	count        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS cleaning_jobs (
	id            TEXT PRIMARY KEY,
	identity      TEXT NOT NULL,
	tier          TEXT NOT NULL,
	file_name     TEXT NOT NULL,
	file_size     INTEGER NOT NULL,
	original_rows INTEGER NOT NULL,
	final_rows    INTEGER NOT NULL,
	column_count  INTEGER NOT NULL,
	score_before  REAL NOT NULL,
	score_after   REAL NOT NULL,
	operations    TEXT NOT NULL,
	llm_error     TEXT NOT NULL DEFAULT '',
	processing_ms INTEGER NOT NULL,
	created_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cleaning_jobs_identity ON cleaning_jobs(identity, created_at DESC);
`

// The DO UPDATE branch only fires when the stored period is older or a
// slot is free; otherwise no row is returned and the request is rejected.
const tryIncrementSQL = `
INSERT INTO usage_records (identity, period_start, count) VALUES (?1, ?2, 1)
ON CONFLICT(identity) DO UPDATE SET
	count = CASE WHEN usage_records.period_start < excluded.period_start THEN 1 ELSE usage_records.count + 1 END,
	period_start = MAX(usage_records.period_start, excluded.period_start)
WHERE usage_records.period_start < excluded.period_start OR ?3 < 0 OR usage_records.count < ?3
RETURNING count`

// Store is a SQLite-backed store.Store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema. Use
// ":memory:" for a private in-memory database.
//
// The pool is limited to one connection: SQLite serializes writers anyway,
// and an in-memory database exists only on the connection that created it.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) TryIncrement(ctx context.Context, identity string, period time.Time, limit int) (int, bool, error) {
	if limit == 0 {
		return 0, false, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx, tryIncrementSQL, identity, period.Unix(), limit).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		used, err := s.Usage(ctx, identity, period)
		return used, false, err
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment usage: %w", err)
	}
	return count, true, nil
}

func (s *Store) Decrement(ctx context.Context, identity string, period time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE usage_records SET count = count - 1 WHERE identity = ? AND period_start = ? AND count > 0`,
		identity, period.Unix())
	if err != nil {
		return fmt.Errorf("decrement usage: %w", err)
	}
	return nil
}

func (s *Store) Usage(ctx context.Context, identity string, period time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM usage_records WHERE identity = ? AND period_start = ?`,
		identity, period.Unix()).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage: %w", err)
	}
	return count, nil
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM usage_records WHERE period_start < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge usage: %w", err)
	}
	return result.RowsAffected()
}

// RecordJob inserts a committed cleaning.
func (s *Store) RecordJob(ctx context.Context, job store.CleaningJob) error {
	ops, err := json.Marshal(job.Operations)
	if err != nil {
		return fmt.Errorf("encode operations: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cleaning_jobs (
			id, identity, tier, file_name, file_size, original_rows, final_rows,
			column_count, score_before, score_after, operations, llm_error, processing_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Identity, string(job.Tier), job.FileName, job.FileSize,
		job.OriginalRows, job.FinalRows, job.Columns, job.ScoreBefore, job.ScoreAfter,
		string(ops), job.LLMError, job.ProcessingMS, job.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert cleaning job: %w", err)
	}
	return nil
}

// RecentJobs returns an identity's most recent cleanings, newest first.
func (s *Store) RecentJobs(ctx context.Context, identity string, limit int) ([]store.CleaningJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity, tier, file_name, file_size, original_rows, final_rows,
			column_count, score_before, score_after, operations, llm_error, processing_ms, created_at
		FROM cleaning_jobs
		WHERE identity = ?
		ORDER BY created_at DESC
		LIMIT ?`, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("query cleaning jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]store.CleaningJob, 0)
	for rows.Next() {
		var (
			job     store.CleaningJob
			tier    string
			ops     string
			created int64
		)
		if err := rows.Scan(&job.ID, &job.Identity, &tier, &job.FileName, &job.FileSize,
			&job.OriginalRows, &job.FinalRows, &job.Columns, &job.ScoreBefore, &job.ScoreAfter,
			&ops, &job.LLMError, &job.ProcessingMS, &created); err != nil {
			return nil, fmt.Errorf("scan cleaning job: %w", err)
		}
		if err := json.Unmarshal([]byte(ops), &job.Operations); err != nil {
			return nil, fmt.Errorf("decode operations for job %s: %w", job.ID, err)
		}
		job.Tier = quota.Tier(tier)
		job.CreatedAt = time.UnixMilli(created).UTC()
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
