// Package filter holds the predicates that decide which summoners the crawler
// expands and which matches it emits.
package filter

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/omarathon/riot-api-crawler/internal/elo"
	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/platform"
	"github.com/omarathon/riot-api-crawler/internal/rank"
)

// Filter is a predicate over T. Implementations must not panic and must be
// safe for concurrent use.
type Filter[T any] interface {
	Accepts(ctx context.Context, v T) bool
}

// SummonerFilter decides whether a summoner is expanded.
type SummonerFilter = Filter[league.Summoner]

// MatchFilter decides whether a match is emitted.
type MatchFilter = Filter[league.Match]

// Func adapts a function to Filter.
type Func[T any] func(ctx context.Context, v T) bool

// Accepts calls f.
func (f Func[T]) Accepts(ctx context.Context, v T) bool {
	return f(ctx, v)
}

// AcceptAll accepts everything.
func AcceptAll[T any]() Filter[T] {
	return Func[T](func(context.Context, T) bool { return true })
}

// And accepts when every operand accepts. It short-circuits, and with no
// operands it accepts.
func And[T any](filters ...Filter[T]) Filter[T] {
	return Func[T](func(ctx context.Context, v T) bool {
		for _, f := range filters {
			if !f.Accepts(ctx, v) {
				return false
			}
		}
		return true
	})
}

// Or accepts when any operand accepts. With no operands it rejects.
func Or[T any](filters ...Filter[T]) Filter[T] {
	return Func[T](func(ctx context.Context, v T) bool {
		for _, f := range filters {
			if f.Accepts(ctx, v) {
				return true
			}
		}
		return false
	})
}

// Not inverts f.
func Not[T any](f Filter[T]) Filter[T] {
	return Func[T](func(ctx context.Context, v T) bool {
		return !f.Accepts(ctx, v)
	})
}

type eloFilter[T any] struct {
	ranks    rank.Set
	estimate func(context.Context, T) (rank.Rank, error)
	logger   *zap.Logger
	describe func(T) zap.Field
}

func (f *eloFilter[T]) Accepts(ctx context.Context, v T) bool {
	r, err := f.estimate(ctx, v)
	if err != nil {
		if !errors.Is(err, platform.ErrNoRankData) {
			f.logger.Warn("elo estimate failed", f.describe(v), zap.Error(err))
		}
		return false
	}
	return f.ranks.Contains(r)
}

// EloSummonerFilter accepts summoners whose estimate lies in ranks. A summoner
// with no rank data, or whose estimate fails, is rejected.
func EloSummonerFilter(ranks rank.Set, est elo.SummonerEstimator, logger *zap.Logger) SummonerFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &eloFilter[league.Summoner]{
		ranks:    ranks,
		estimate: est.Estimate,
		logger:   logger,
		describe: func(s league.Summoner) zap.Field { return zap.String("summoner", s.String()) },
	}
}

// EloMatchFilter accepts matches whose estimate lies in ranks.
func EloMatchFilter(ranks rank.Set, est elo.MatchEstimator, logger *zap.Logger) MatchFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &eloFilter[league.Match]{
		ranks:    ranks,
		estimate: est.Estimate,
		logger:   logger,
		describe: func(m league.Match) zap.Field { return zap.String("match_id", m.ID) },
	}
}

// QueueMatchFilter accepts matches played in one of queues.
func QueueMatchFilter(queues ...league.Queue) MatchFilter {
	allowed := make(map[league.Queue]struct{}, len(queues))
	for _, q := range queues {
		allowed[q] = struct{}{}
	}
	return Func[league.Match](func(_ context.Context, m league.Match) bool {
		_, ok := allowed[m.Queue]
		return ok
	})
}
