// Package output turns accepted matches into records. Stages wrap the next
// stage; the terminal stage writes to a sink.
package output

import (
	"context"
	"errors"
	"time"

	"github.com/omarathon/riot-api-crawler/internal/elo"
	"github.com/omarathon/riot-api-crawler/internal/filter"
	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/platform"
	"github.com/omarathon/riot-api-crawler/internal/rank"
	"github.com/omarathon/riot-api-crawler/internal/sink"
)

// Envelope is a match plus the metadata collected on its way to the sink.
type Envelope struct {
	Match league.Match
	// Elo is the match estimate, nil when it could not be computed.
	Elo        *rank.Rank
	Crawler    string
	RunID      string
	CapturedAt time.Time
}

// Handler processes one envelope.
type Handler interface {
	Handle(ctx context.Context, env Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env Envelope) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// Discard accepts and drops every envelope.
var Discard Handler = HandlerFunc(func(context.Context, Envelope) error { return nil })

// Filtering forwards only matches accepted by f.
func Filtering(f filter.MatchFilter, next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, env Envelope) error {
		if !f.Accepts(ctx, env.Match) {
			return nil
		}
		return next.Handle(ctx, env)
	})
}

// WithElo fills Envelope.Elo when it is not set yet. A match without rank data
// is forwarded with a nil Elo.
func WithElo(est elo.MatchEstimator, next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, env Envelope) error {
		if env.Elo == nil {
			r, err := est.Estimate(ctx, env.Match)
			switch {
			case errors.Is(err, platform.ErrNoRankData):
			case err != nil:
				return err
			default:
				env.Elo = &r
			}
		}
		return next.Handle(ctx, env)
	})
}

// Write formats each envelope and writes it to s. A failed write is returned
// as *sink.WriteError.
func Write(f Formatter, s sink.Sink) Handler {
	return HandlerFunc(func(ctx context.Context, env Envelope) error {
		rec, err := f.Format(env)
		if err != nil {
			return err
		}
		if err := s.Write(ctx, rec); err != nil {
			return sink.AsWriteError(rec.Key, err)
		}
		return nil
	})
}
