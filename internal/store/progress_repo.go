// Package store declares the crawl-run repository used to persist progress.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested run does not exist.
var ErrNotFound = errors.New("crawl run not found")

// RunStatus mirrors the crawl_runs.status column.
type RunStatus string

// Run statuses persisted in crawl_runs.status.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunHalted    RunStatus = "halted"
	RunFailed    RunStatus = "failed"
)

// Counts are per-run tallies. Repositories add deltas to the stored values.
type Counts struct {
	SummonersAccepted int64 `json:"summoners_accepted"`
	SummonersRejected int64 `json:"summoners_rejected"`
	MatchesAccepted   int64 `json:"matches_accepted"`
	MatchesRejected   int64 `json:"matches_rejected"`
	Errors            int64 `json:"errors"`
}

// IsZero reports whether every tally is zero.
func (c Counts) IsZero() bool {
	return c == Counts{}
}

// Add returns the sum of c and d.
func (c Counts) Add(d Counts) Counts {
	return Counts{
		SummonersAccepted: c.SummonersAccepted + d.SummonersAccepted,
		SummonersRejected: c.SummonersRejected + d.SummonersRejected,
		MatchesAccepted:   c.MatchesAccepted + d.MatchesAccepted,
		MatchesRejected:   c.MatchesRejected + d.MatchesRejected,
		Errors:            c.Errors + d.Errors,
	}
}

// Run models one row of crawl_runs.
type Run struct {
	ID         uuid.UUID  `json:"id"`
	Crawler    string     `json:"crawler"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Status     RunStatus  `json:"status"`
	// Reason holds the halt or failure reason, if any.
	Reason *string `json:"reason,omitempty"`
	Counts
}

// RunRepository persists crawl runs.
type RunRepository interface {
	// StartRun records a running crawl. Repeating it for the same id is a no-op.
	StartRun(ctx context.Context, id uuid.UUID, crawler string, startedAt time.Time) error
	// AddCounts applies tally deltas to a run.
	AddCounts(ctx context.Context, id uuid.UUID, delta Counts, at time.Time) error
	// FinishRun marks a run terminal.
	FinishRun(ctx context.Context, id uuid.UUID, finishedAt time.Time, status RunStatus, reason *string) error
	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (Run, error)
	// ListRuns returns runs newest first, optionally filtered by status.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]Run, error)
}
