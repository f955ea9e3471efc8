package crawler

import (
	"errors"

	"github.com/omarathon/riot-api-crawler/internal/filter"
)

// Config is the immutable per-engine crawl policy.
type Config struct {
	MatchFilter    filter.MatchFilter
	SummonerFilter filter.SummonerFilter
	// MatchesPerSummoner caps each history fetch.
	MatchesPerSummoner int
	// MaxSummoners stops the crawl once this many summoners were dequeued.
	// Zero means unbounded.
	MaxSummoners int
}

// Validate reports missing or out-of-range settings.
func (c Config) Validate() error {
	var errs []error
	if c.MatchFilter == nil {
		errs = append(errs, errors.New("match filter is required"))
	}
	if c.SummonerFilter == nil {
		errs = append(errs, errors.New("summoner filter is required"))
	}
	if c.MatchesPerSummoner <= 0 {
		errs = append(errs, errors.New("matches per summoner must be positive"))
	}
	if c.MaxSummoners < 0 {
		errs = append(errs, errors.New("max summoners must not be negative"))
	}
	return errors.Join(errs...)
}
