package listener

import (
	"context"

	"github.com/omarathon/riot-api-crawler/internal/crawler"
	"github.com/omarathon/riot-api-crawler/internal/league"
)

// MultiListener notifies every listener in order. It halts when any of them asks to.
type MultiListener struct {
	listeners []crawler.Listener
}

// Multi combines listeners, dropping nils.
func Multi(listeners ...crawler.Listener) *MultiListener {
	m := &MultiListener{}
	for _, l := range listeners {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
	}
	return m
}

func (m *MultiListener) each(fn func(l crawler.Listener) crawler.Signal) crawler.Signal {
	sig := crawler.Continue
	for _, l := range m.listeners {
		if fn(l) == crawler.Halt {
			sig = crawler.Halt
		}
	}
	return sig
}

func (m *MultiListener) OnCrawlStart(ctx context.Context, run crawler.RunInfo) crawler.Signal {
	return m.each(func(l crawler.Listener) crawler.Signal { return l.OnCrawlStart(ctx, run) })
}

func (m *MultiListener) OnSummonerAccepted(ctx context.Context, run crawler.RunInfo, s league.Summoner) crawler.Signal {
	return m.each(func(l crawler.Listener) crawler.Signal { return l.OnSummonerAccepted(ctx, run, s) })
}

func (m *MultiListener) OnSummonerRejected(ctx context.Context, run crawler.RunInfo, s league.Summoner) crawler.Signal {
	return m.each(func(l crawler.Listener) crawler.Signal { return l.OnSummonerRejected(ctx, run, s) })
}

func (m *MultiListener) OnMatchAccepted(ctx context.Context, run crawler.RunInfo, match league.Match) crawler.Signal {
	return m.each(func(l crawler.Listener) crawler.Signal { return l.OnMatchAccepted(ctx, run, match) })
}

func (m *MultiListener) OnMatchRejected(ctx context.Context, run crawler.RunInfo, match league.Match) crawler.Signal {
	return m.each(func(l crawler.Listener) crawler.Signal { return l.OnMatchRejected(ctx, run, match) })
}

func (m *MultiListener) OnError(ctx context.Context, run crawler.RunInfo, err error) crawler.Signal {
	return m.each(func(l crawler.Listener) crawler.Signal { return l.OnError(ctx, run, err) })
}

func (m *MultiListener) OnEndCrawl(ctx context.Context, run crawler.RunInfo) crawler.Signal {
	return m.each(func(l crawler.Listener) crawler.Signal { return l.OnEndCrawl(ctx, run) })
}
