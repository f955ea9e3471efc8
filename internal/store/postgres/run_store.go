// Package postgres provides the Postgres-backed crawl run repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omarathon/riot-api-crawler/internal/store"
)

// Schema creates the crawl_runs table.
const Schema = `
CREATE TABLE IF NOT EXISTS crawl_runs (
	id                 UUID PRIMARY KEY,
	crawler            TEXT NOT NULL,
	started_at         TIMESTAMPTZ NOT NULL,
	finished_at        TIMESTAMPTZ,
	updated_at         TIMESTAMPTZ NOT NULL,
	status             TEXT NOT NULL,
	reason             TEXT,
	summoners_accepted BIGINT NOT NULL DEFAULT 0,
	summoners_rejected BIGINT NOT NULL DEFAULT 0,
	matches_accepted   BIGINT NOT NULL DEFAULT 0,
	matches_rejected   BIGINT NOT NULL DEFAULT 0,
	errors             BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS crawl_runs_started_at_idx ON crawl_runs (started_at DESC);`

const runColumns = `id, crawler, started_at, finished_at, updated_at, status, reason, ` +
	`summoners_accepted, summoners_rejected, matches_accepted, matches_rejected, errors`

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RunStore implements store.RunRepository on Postgres.
type RunStore struct {
	pool pool
}

// NewRunStore connects to dsn.
func NewRunStore(ctx context.Context, dsn string) (*RunStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	return &RunStore{pool: p}, nil
}

// NewRunStoreWithPool wraps an existing pool (primarily for testing).
func NewRunStoreWithPool(p pool) (*RunStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: p}, nil
}

// EnsureSchema creates the table if it is missing.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create crawl_runs: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StartRun inserts a running row; an existing row is left untouched.
func (s *RunStore) StartRun(ctx context.Context, id uuid.UUID, crawler string, startedAt time.Time) error {
	const query = `
		INSERT INTO crawl_runs (id, crawler, started_at, updated_at, status)
		VALUES ($1, $2, $3, $3, $4)
		ON CONFLICT (id) DO NOTHING;`
	if _, err := s.pool.Exec(ctx, query, id, crawler, startedAt, string(store.RunRunning)); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// AddCounts increments the run's tallies.
func (s *RunStore) AddCounts(ctx context.Context, id uuid.UUID, delta store.Counts, at time.Time) error {
	const query = `
		UPDATE crawl_runs SET
			summoners_accepted = summoners_accepted + $1,
			summoners_rejected = summoners_rejected + $2,
			matches_accepted = matches_accepted + $3,
			matches_rejected = matches_rejected + $4,
			errors = errors + $5,
			updated_at = GREATEST(updated_at, $6)
		WHERE id = $7;`
	tag, err := s.pool.Exec(ctx, query,
		delta.SummonersAccepted,
		delta.SummonersRejected,
		delta.MatchesAccepted,
		delta.MatchesRejected,
		delta.Errors,
		at,
		id,
	)
	if err != nil {
		return fmt.Errorf("add run counts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FinishRun marks a run terminal with an optional reason.
func (s *RunStore) FinishRun(
	ctx context.Context,
	id uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	reason *string,
) error {
	const query = `
		UPDATE crawl_runs
		SET finished_at = $1, updated_at = $1, status = $2, reason = $3
		WHERE id = $4;`
	tag, err := s.pool.Exec(ctx, query, finishedAt, string(status), reason, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetRun loads one run.
func (s *RunStore) GetRun(ctx context.Context, id uuid.UUID) (store.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM crawl_runs WHERE id = $1;`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Run{}, store.ErrNotFound
		}
		return store.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns pages through runs newest first.
func (s *RunStore) ListRuns(ctx context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	var statusArg *string
	if status != nil {
		v := string(*status)
		statusArg = &v
	}
	rows, err := s.pool.Query(ctx, `SELECT `+runColumns+` FROM crawl_runs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;`, statusArg, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []store.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (store.Run, error) {
	var (
		run    store.Run
		status string
	)
	err := row.Scan(
		&run.ID,
		&run.Crawler,
		&run.StartedAt,
		&run.FinishedAt,
		&run.UpdatedAt,
		&status,
		&run.Reason,
		&run.SummonersAccepted,
		&run.SummonersRejected,
		&run.MatchesAccepted,
		&run.MatchesRejected,
		&run.Errors,
	)
	run.Status = store.RunStatus(status)
	return run, err
}
