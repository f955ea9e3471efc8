// Package platform declares the game-platform client the crawler consumes and
// the error taxonomy shared by its adapters.
package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/rank"
)

// ErrNoRankData signals that a summoner (or every participant of a match) has
// no ranked data in the requested scope. It is an expected outcome, not a fault.
var ErrNoRankData = errors.New("no rank data")

// ErrNotFound signals that the platform has no such summoner or match.
var ErrNotFound = errors.New("not found")

// Client is the subset of the platform API the crawler needs. Implementations
// must be safe for concurrent use by multiple engines.
type Client interface {
	// Summoner resolves a display name to a summoner.
	Summoner(ctx context.Context, name string) (league.Summoner, error)
	// MatchHistory returns up to limit most recent matches, newest first.
	MatchHistory(ctx context.Context, s league.Summoner, limit int) ([]league.Match, error)
	// Rank returns s's rank in queue or ErrNoRankData.
	Rank(ctx context.Context, s league.Summoner, queue league.Queue) (rank.Rank, error)
}

// RankLister is implemented by clients that load every queue's rank in one call.
type RankLister interface {
	Ranks(ctx context.Context, s league.Summoner) (map[league.Queue]rank.Rank, error)
}

// FetchError wraps a failed remote call.
type FetchError struct {
	// Op names the remote operation, e.g. "match-history".
	Op string
	// Subject identifies what was being fetched (summoner key, match id).
	Subject string
	// StatusCode is the HTTP status when one was received.
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s %s: status %d: %v", e.Op, e.Subject, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s %s: %v", e.Op, e.Subject, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// AsFetchError wraps err as a FetchError unless it already is one.
func AsFetchError(op, subject string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Op: op, Subject: subject, Err: err}
}

// RankFromMap picks queue from a rank map, returning ErrNoRankData when absent.
func RankFromMap(ranks map[league.Queue]rank.Rank, queue league.Queue) (rank.Rank, error) {
	r, ok := ranks[queue]
	if !ok || !r.Valid() {
		return rank.Rank{}, ErrNoRankData
	}
	return r, nil
}
