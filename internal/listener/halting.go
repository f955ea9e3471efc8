package listener

import (
	"context"

	"github.com/omarathon/riot-api-crawler/internal/crawler"
)

// HaltingListener forwards every hook to the wrapped listener and turns the
// end of the crawl into a halt.
type HaltingListener struct {
	crawler.Listener
}

// Halting wraps base. A nil base behaves like crawler.NopListener.
func Halting(base crawler.Listener) *HaltingListener {
	if base == nil {
		base = crawler.NopListener{}
	}
	return &HaltingListener{Listener: base}
}

// OnEndCrawl notifies the wrapped listener, then halts regardless of its answer.
func (h *HaltingListener) OnEndCrawl(ctx context.Context, run crawler.RunInfo) crawler.Signal {
	h.Listener.OnEndCrawl(ctx, run)
	return crawler.Halt
}
