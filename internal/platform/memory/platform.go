// Package memory provides an in-process platform graph for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/platform"
	"github.com/omarathon/riot-api-crawler/internal/rank"
)

// Platform is a thread-safe fake of platform.Client backed by maps.
type Platform struct {
	mu        sync.Mutex
	summoners map[string]league.Summoner
	byName    map[string]string
	ranks     map[string]map[league.Queue]rank.Rank
	history   map[string][]league.Match
	failures  map[string]error
	calls     map[string]int
}

// New returns an empty Platform.
func New() *Platform {
	return &Platform{
		summoners: make(map[string]league.Summoner),
		byName:    make(map[string]string),
		ranks:     make(map[string]map[league.Queue]rank.Rank),
		history:   make(map[string][]league.Match),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

// AddSummoner registers s with optional ranks. Passing no ranks leaves the
// summoner unranked.
func (p *Platform) AddSummoner(s league.Summoner, ranks map[league.Queue]rank.Rank) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summoners[s.Key()] = s
	if s.Name != "" {
		p.byName[s.Name] = s.Key()
	}
	if ranks != nil {
		p.ranks[s.Key()] = ranks
	}
}

// AddMatch appends m to the history of each of its participants.
func (p *Platform) AddMatch(m league.Match) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range m.Summoners() {
		p.history[s.Key()] = append(p.history[s.Key()], m)
	}
}

// FailHistory makes MatchHistory for s return err.
func (p *Platform) FailHistory(s league.Summoner, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[s.Key()] = err
}

// HistoryCalls reports how many times s's history was fetched.
func (p *Platform) HistoryCalls(s league.Summoner) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[s.Key()]
}

// Summoner resolves a registered display name.
func (p *Platform) Summoner(_ context.Context, name string) (league.Summoner, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key, ok := p.byName[name]
	if !ok {
		return league.Summoner{}, &platform.FetchError{Op: "summoner", Subject: name, Err: platform.ErrNotFound}
	}
	return p.summoners[key], nil
}

// MatchHistory returns up to limit matches in insertion order.
func (p *Platform) MatchHistory(ctx context.Context, s league.Summoner, limit int) ([]league.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, &platform.FetchError{Op: "match-history", Subject: s.Key(), Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[s.Key()]++
	if err, ok := p.failures[s.Key()]; ok {
		return nil, platform.AsFetchError("match-history", s.Key(), err)
	}
	matches := p.history[s.Key()]
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return append([]league.Match(nil), matches...), nil
}

// Rank returns the registered rank for queue.
func (p *Platform) Rank(_ context.Context, s league.Summoner, queue league.Queue) (rank.Rank, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return platform.RankFromMap(p.ranks[s.Key()], queue)
}

// Ranks returns a copy of every registered rank for s.
func (p *Platform) Ranks(_ context.Context, s league.Summoner) (map[league.Queue]rank.Rank, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.summoners[s.Key()]; !ok {
		return nil, &platform.FetchError{Op: "ranks", Subject: s.Key(), Err: fmt.Errorf("summoner %s: %w", s.Key(), platform.ErrNotFound)}
	}
	out := make(map[league.Queue]rank.Rank, len(p.ranks[s.Key()]))
	for q, r := range p.ranks[s.Key()] {
		out[q] = r
	}
	return out, nil
}
