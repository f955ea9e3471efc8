// Package elo estimates a skill level for summoners and matches from ranked
// data. Estimates are rank.Rank values and compare tier-major, division-minor.
package elo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/platform"
	"github.com/omarathon/riot-api-crawler/internal/rank"
)

// RankSource answers per-queue rank lookups. platform.Client satisfies it.
type RankSource interface {
	Rank(ctx context.Context, s league.Summoner, queue league.Queue) (rank.Rank, error)
}

// SummonerEstimator estimates one summoner.
type SummonerEstimator interface {
	Estimate(ctx context.Context, s league.Summoner) (rank.Rank, error)
}

// MatchEstimator estimates one match.
type MatchEstimator interface {
	Estimate(ctx context.Context, m league.Match) (rank.Rank, error)
}

// MaxSummonerEstimator returns the highest rank a summoner holds across a
// fixed set of queues.
type MaxSummonerEstimator struct {
	ranks  RankSource
	queues []league.Queue
}

// NewMaxSummonerEstimator builds an estimator over queues. ranks may be nil
// when every summoner carries its own rank info.
func NewMaxSummonerEstimator(ranks RankSource, queues ...league.Queue) *MaxSummonerEstimator {
	return &MaxSummonerEstimator{ranks: ranks, queues: append([]league.Queue(nil), queues...)}
}

// Queues returns the estimator's queue scope.
func (e *MaxSummonerEstimator) Queues() []league.Queue {
	return append([]league.Queue(nil), e.queues...)
}

// Estimate returns the maximum rank over the scope, or an error matching
// platform.ErrNoRankData if no queue in scope has data.
func (e *MaxSummonerEstimator) Estimate(ctx context.Context, s league.Summoner) (rank.Rank, error) {
	found := make([]rank.Rank, 0, len(e.queues))
	for _, q := range e.queues {
		r, err := e.lookup(ctx, s, q)
		switch {
		case errors.Is(err, platform.ErrNoRankData):
			continue
		case err != nil:
			return rank.Rank{}, fmt.Errorf("estimate %s in %s: %w", s, q, err)
		}
		found = append(found, r)
	}
	best, ok := rank.Max(found...)
	if !ok {
		return rank.Rank{}, fmt.Errorf("estimate %s: %w", s, platform.ErrNoRankData)
	}
	return best, nil
}

func (e *MaxSummonerEstimator) lookup(ctx context.Context, s league.Summoner, q league.Queue) (rank.Rank, error) {
	if s.Ranks != nil || e.ranks == nil {
		return platform.RankFromMap(s.Ranks, q)
	}
	return e.ranks.Rank(ctx, s, q)
}

// TieBreak picks between equally common participant ranks.
type TieBreak int

const (
	// TieBreakHighest picks the highest of the tied ranks.
	TieBreakHighest TieBreak = iota
	// TieBreakLowest picks the lowest of the tied ranks.
	TieBreakLowest
)

func (t TieBreak) String() string {
	if t == TieBreakLowest {
		return "lowest"
	}
	return "highest"
}

// ParseTieBreak reads "highest" or "lowest". Empty means highest.
func ParseTieBreak(s string) (TieBreak, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "highest", "max":
		return TieBreakHighest, nil
	case "lowest", "min":
		return TieBreakLowest, nil
	default:
		return TieBreakHighest, fmt.Errorf("unknown tie break %q", s)
	}
}

// CommonMatchEstimator attributes to a match the rank shared by the most
// participants. Participants without rank data do not vote.
type CommonMatchEstimator struct {
	summoners SummonerEstimator
	tieBreak  TieBreak
}

// NewCommonMatchEstimator builds a match estimator on top of summoners.
func NewCommonMatchEstimator(summoners SummonerEstimator, tieBreak TieBreak) *CommonMatchEstimator {
	return &CommonMatchEstimator{summoners: summoners, tieBreak: tieBreak}
}

// Estimate returns the modal participant rank. Ties resolve by the configured
// TieBreak. If no participant is ranked the error matches platform.ErrNoRankData.
func (e *CommonMatchEstimator) Estimate(ctx context.Context, m league.Match) (rank.Rank, error) {
	counts := make(map[rank.Rank]int, len(m.Participants))
	for _, p := range m.Participants {
		r, err := e.summoners.Estimate(ctx, p.Summoner)
		switch {
		case errors.Is(err, platform.ErrNoRankData):
			continue
		case err != nil:
			return rank.Rank{}, fmt.Errorf("estimate match %s: %w", m.ID, err)
		}
		counts[r]++
	}
	if len(counts) == 0 {
		return rank.Rank{}, fmt.Errorf("estimate match %s: %w", m.ID, platform.ErrNoRankData)
	}

	var (
		best  rank.Rank
		votes int
	)
	for r, n := range counts {
		switch {
		case n > votes:
			best, votes = r, n
		case n == votes && e.prefer(r, best):
			best = r
		}
	}
	return best, nil
}

func (e *CommonMatchEstimator) prefer(candidate, current rank.Rank) bool {
	if e.tieBreak == TieBreakLowest {
		return candidate.Less(current)
	}
	return current.Less(candidate)
}
