package listener

import (
	"context"

	"go.uber.org/zap"

	"github.com/omarathon/riot-api-crawler/internal/crawler"
	"github.com/omarathon/riot-api-crawler/internal/league"
)

// LoggingListener writes every hook to a zap logger and never halts.
type LoggingListener struct {
	logger *zap.Logger
}

// Logging returns a listener that logs through logger.
func Logging(logger *zap.Logger) *LoggingListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingListener{logger: logger.Named("listener")}
}

func (l *LoggingListener) with(run crawler.RunInfo) *zap.Logger {
	return l.logger.With(zap.String("crawler", run.Crawler), zap.String("run_id", run.RunID))
}

func (l *LoggingListener) OnCrawlStart(_ context.Context, run crawler.RunInfo) crawler.Signal {
	l.with(run).Info("crawl start", zap.String("seed", run.Seed.String()))
	return crawler.Continue
}

func (l *LoggingListener) OnSummonerAccepted(_ context.Context, run crawler.RunInfo, s league.Summoner) crawler.Signal {
	l.with(run).Debug("summoner accepted", zap.String("summoner", s.String()))
	return crawler.Continue
}

func (l *LoggingListener) OnSummonerRejected(_ context.Context, run crawler.RunInfo, s league.Summoner) crawler.Signal {
	l.with(run).Debug("summoner rejected", zap.String("summoner", s.String()))
	return crawler.Continue
}

func (l *LoggingListener) OnMatchAccepted(_ context.Context, run crawler.RunInfo, m league.Match) crawler.Signal {
	l.with(run).Debug("match accepted", zap.String("match_id", m.ID), zap.String("queue", string(m.Queue)))
	return crawler.Continue
}

func (l *LoggingListener) OnMatchRejected(_ context.Context, run crawler.RunInfo, m league.Match) crawler.Signal {
	l.with(run).Debug("match rejected", zap.String("match_id", m.ID), zap.String("queue", string(m.Queue)))
	return crawler.Continue
}

func (l *LoggingListener) OnError(_ context.Context, run crawler.RunInfo, err error) crawler.Signal {
	l.with(run).Warn("crawl error", zap.Error(err))
	return crawler.Continue
}

func (l *LoggingListener) OnEndCrawl(_ context.Context, run crawler.RunInfo) crawler.Signal {
	l.with(run).Info("crawl end")
	return crawler.Continue
}
