package crawler

import (
	"context"

	"github.com/omarathon/riot-api-crawler/internal/league"
)

// Signal is what a listener hook tells the engine to do next.
type Signal int

const (
	// Continue lets the crawl proceed.
	Continue Signal = iota
	// Halt stops the crawl at once.
	Halt
)

func (s Signal) String() string {
	if s == Halt {
		return "halt"
	}
	return "continue"
}

// RunInfo identifies the run a hook fires for.
type RunInfo struct {
	Crawler string
	RunID   string
	Seed    league.Summoner
}

// Listener observes an engine. The engine checks the returned Signal after
// every call.
type Listener interface {
	OnCrawlStart(ctx context.Context, run RunInfo) Signal
	OnSummonerAccepted(ctx context.Context, run RunInfo, s league.Summoner) Signal
	OnSummonerRejected(ctx context.Context, run RunInfo, s league.Summoner) Signal
	OnMatchAccepted(ctx context.Context, run RunInfo, m league.Match) Signal
	OnMatchRejected(ctx context.Context, run RunInfo, m league.Match) Signal
	// OnError reports a recovered failure: a *platform.FetchError for a
	// skipped summoner or a *sink.WriteError for a skipped output.
	OnError(ctx context.Context, run RunInfo, err error) Signal
	OnEndCrawl(ctx context.Context, run RunInfo) Signal
}

// NopListener ignores every event. Embed it to override single hooks.
type NopListener struct{}

var _ Listener = NopListener{}

func (NopListener) OnCrawlStart(context.Context, RunInfo) Signal { return Continue }

func (NopListener) OnSummonerAccepted(context.Context, RunInfo, league.Summoner) Signal {
	return Continue
}

func (NopListener) OnSummonerRejected(context.Context, RunInfo, league.Summoner) Signal {
	return Continue
}

func (NopListener) OnMatchAccepted(context.Context, RunInfo, league.Match) Signal { return Continue }

func (NopListener) OnMatchRejected(context.Context, RunInfo, league.Match) Signal { return Continue }

func (NopListener) OnError(context.Context, RunInfo, error) Signal { return Continue }

func (NopListener) OnEndCrawl(context.Context, RunInfo) Signal { return Continue }
