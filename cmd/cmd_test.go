package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/omarathon/riot-api-crawler/internal/app"
	"github.com/omarathon/riot-api-crawler/internal/config"
	"github.com/omarathon/riot-api-crawler/internal/crawler"
	"github.com/omarathon/riot-api-crawler/internal/driver"
	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/platform/memory"
	"github.com/omarathon/riot-api-crawler/internal/rank"
)

type fakeFleet struct {
	outcomes []driver.Outcome
	err      error
	closed   bool
}

func (f *fakeFleet) Run(context.Context) ([]driver.Outcome, error) { return f.outcomes, f.err }

func (f *fakeFleet) Close(context.Context) error {
	f.closed = true
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Platform: config.PlatformConfig{Region: "euw1", Routing: "europe"},
		Crawler: config.CrawlerConfig{
			RankQueues: []string{string(league.QueueRankedSolo)},
		},
		Cache: config.CacheConfig{Backend: "memory", TTLSeconds: 60},
	}
}

// execute runs the root command with args against a stubbed config loader.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := loadConfig
	loadConfig = func(string) (config.Config, error) { return testConfig(), nil }
	t.Cleanup(func() { loadConfig = prev })

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRanksCommand(t *testing.T) {
	out, err := execute(t, "ranks", "gold")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines, "GOLD IV")
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "GOLD "), l)
	}

	_, err = execute(t, "ranks", "wood")
	require.Error(t, err)
}

func TestEstimateCommand(t *testing.T) {
	plat := memory.New()
	plat.AddSummoner(league.Summoner{Platform: "euw1", ID: "a", Name: "alice"},
		map[league.Queue]rank.Rank{league.QueueRankedSolo: rank.New(rank.Silver, rank.DivisionIV)})
	plat.AddSummoner(league.Summoner{Platform: "euw1", ID: "b", Name: "bob"}, nil)

	prev := newRanker
	newRanker = func(cfg config.Config) (*app.Ranker, error) {
		return app.NewRanker(cfg, app.WithPlatform(plat), app.WithLogger(zap.NewNop()))
	}
	t.Cleanup(func() { newRanker = prev })

	out, err := execute(t, "estimate", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "SILVER IV")

	out, err = execute(t, "estimate", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "unranked in RANKED_SOLO_5x5")

	_, err = execute(t, "estimate", "nobody")
	require.Error(t, err)
}

func TestCrawlCommandPrintsOutcomes(t *testing.T) {
	f := &fakeFleet{outcomes: []driver.Outcome{
		{Name: "gold", Result: crawler.Result{Visited: 12, MatchesEmitted: 30, HaltReason: "listener halted at end of crawl"},
			Err: &crawler.HaltError{Crawler: "gold", Reason: "end"}},
		{Name: "silver", Result: crawler.Result{Visited: 3}},
	}}
	prev := buildFleet
	buildFleet = func(context.Context, config.Config) (fleet, error) { return f, nil }
	t.Cleanup(func() { buildFleet = prev })

	out, err := execute(t, "crawl")
	require.NoError(t, err)
	assert.True(t, f.closed)
	assert.Contains(t, out, "CRAWLER")
	assert.Contains(t, out, "listener halted at end of crawl")
	assert.Regexp(t, `gold\s+halted\s+12\s+30`, out)
	assert.Regexp(t, `silver\s+completed\s+3`, out)
}

func TestCrawlCommandFailsWhenACrawlerFails(t *testing.T) {
	f := &fakeFleet{outcomes: []driver.Outcome{
		{Name: "iron", Err: errors.New("resolve seed: not found")},
	}}
	prev := buildFleet
	buildFleet = func(context.Context, config.Config) (fleet, error) { return f, nil }
	t.Cleanup(func() { buildFleet = prev })

	out, err := execute(t, "crawl")
	require.ErrorContains(t, err, "1 of 1 crawlers failed")
	assert.Contains(t, out, "resolve seed: not found")
}

func TestConfigLoadFailure(t *testing.T) {
	prev := loadConfig
	loadConfig = func(string) (config.Config, error) { return config.Config{}, errors.New("bad yaml") }
	t.Cleanup(func() { loadConfig = prev })

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"ranks", "gold"})
	require.ErrorContains(t, root.Execute(), "bad yaml")
}
