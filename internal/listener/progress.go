package listener

import (
	"context"
	"time"

	"github.com/omarathon/riot-api-crawler/internal/clock/system"
	"github.com/omarathon/riot-api-crawler/internal/crawler"
	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/progress"
)

// Clock supplies event timestamps.
type Clock interface {
	Now() time.Time
}

// ProgressListener publishes hooks as progress events. It never halts.
type ProgressListener struct {
	emitter progress.Emitter
	clock   Clock
}

// Progress returns a listener emitting to emitter. A nil clock uses the
// system clock.
func Progress(emitter progress.Emitter, clock Clock) *ProgressListener {
	if clock == nil {
		clock = system.New()
	}
	return &ProgressListener{emitter: emitter, clock: clock}
}

func (p *ProgressListener) emit(run crawler.RunInfo, stage progress.Stage, subject, note string) crawler.Signal {
	if p.emitter == nil {
		return crawler.Continue
	}
	p.emitter.Emit(progress.Event{
		RunID:   progress.ParseRunID(run.RunID),
		TS:      p.clock.Now(),
		Stage:   stage,
		Crawler: run.Crawler,
		Subject: subject,
		Note:    note,
	})
	return crawler.Continue
}

func (p *ProgressListener) OnCrawlStart(_ context.Context, run crawler.RunInfo) crawler.Signal {
	return p.emit(run, progress.StageCrawlStart, run.Seed.Key(), "")
}

func (p *ProgressListener) OnSummonerAccepted(_ context.Context, run crawler.RunInfo, s league.Summoner) crawler.Signal {
	return p.emit(run, progress.StageSummonerAccepted, s.Key(), "")
}

func (p *ProgressListener) OnSummonerRejected(_ context.Context, run crawler.RunInfo, s league.Summoner) crawler.Signal {
	return p.emit(run, progress.StageSummonerRejected, s.Key(), "")
}

func (p *ProgressListener) OnMatchAccepted(_ context.Context, run crawler.RunInfo, m league.Match) crawler.Signal {
	return p.emit(run, progress.StageMatchAccepted, m.ID, "")
}

func (p *ProgressListener) OnMatchRejected(_ context.Context, run crawler.RunInfo, m league.Match) crawler.Signal {
	return p.emit(run, progress.StageMatchRejected, m.ID, "")
}

func (p *ProgressListener) OnError(_ context.Context, run crawler.RunInfo, err error) crawler.Signal {
	return p.emit(run, progress.StageCrawlError, "", err.Error())
}

func (p *ProgressListener) OnEndCrawl(_ context.Context, run crawler.RunInfo) crawler.Signal {
	return p.emit(run, progress.StageCrawlEnd, "", "")
}
