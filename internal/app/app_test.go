package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/omarathon/riot-api-crawler/internal/config"
	"github.com/omarathon/riot-api-crawler/internal/driver"
	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/platform"
	"github.com/omarathon/riot-api-crawler/internal/platform/memory"
	"github.com/omarathon/riot-api-crawler/internal/rank"
	memsink "github.com/omarathon/riot-api-crawler/internal/sink/memory"
	"github.com/omarathon/riot-api-crawler/internal/store"
)

var (
	alice = league.Summoner{Platform: "euw1", ID: "a", Name: "alice"}
	bob   = league.Summoner{Platform: "euw1", ID: "b", Name: "bob"}
	carol = league.Summoner{Platform: "euw1", ID: "c", Name: "carol"}
	dave  = league.Summoner{Platform: "euw1", ID: "d", Name: "dave"}
	erin  = league.Summoner{Platform: "euw1", ID: "e", Name: "erin"}
)

func solo(r rank.Rank) map[league.Queue]rank.Rank {
	return map[league.Queue]rank.Rank{league.QueueRankedSolo: r}
}

func match(id string, queue league.Queue, players ...league.Summoner) league.Match {
	m := league.Match{ID: id, Platform: "euw1", Queue: queue}
	for i, p := range players {
		team := 100
		if i%2 == 1 {
			team = 200
		}
		m.Participants = append(m.Participants, league.Participant{Summoner: p, TeamID: team})
	}
	return m
}

// testPlatform has a gold pocket (alice, bob) and a silver pocket (carol, dave).
func testPlatform() *memory.Platform {
	p := memory.New()
	p.AddSummoner(alice, solo(rank.New(rank.Gold, rank.DivisionII)))
	p.AddSummoner(bob, solo(rank.New(rank.Gold, rank.DivisionI)))
	p.AddSummoner(carol, solo(rank.New(rank.Silver, rank.DivisionII)))
	p.AddSummoner(dave, solo(rank.New(rank.Silver, rank.DivisionII)))
	p.AddSummoner(erin, nil)
	p.AddMatch(match("EUW1_1", league.QueueRankedSolo, alice, bob))
	p.AddMatch(match("EUW1_2", league.QueueARAM, alice, bob))
	p.AddMatch(match("EUW1_3", league.QueueRankedSolo, carol, dave))
	return p
}

func testConfig() config.Config {
	return config.Config{
		Platform: config.PlatformConfig{Region: "euw1", Routing: "europe"},
		Crawler: config.CrawlerConfig{
			MatchesPerSummoner: 5,
			Parallelism:        2,
			HaltOnEnd:          true,
			TieBreak:           "highest",
			Queues:             []string{string(league.QueueRankedSolo)},
			RankQueues:         []string{string(league.QueueRankedSolo)},
			Seeds:              map[string]string{"gold": "alice", "silver": "carol"},
		},
		Cache: config.CacheConfig{Backend: "memory", TTLSeconds: 60},
		Sink:  config.SinkConfig{Backends: []string{config.BackendMemory}},
		Progress: config.ProgressConfig{
			Enabled:       true,
			BufferSize:    64,
			Batch:         config.ProgressBatchConfig{MaxEvents: 8, MaxWaitMs: 10},
			SinkTimeoutMs: 1000,
		},
		Server: config.ServerConfig{Port: 0},
	}
}

func build(t *testing.T, cfg config.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{
		WithLogger(zap.NewNop()),
		WithRegisterer(prometheus.NewRegistry()),
	}, opts...)
	a, err := Build(context.Background(), cfg, opts...)
	require.NoError(t, err)
	return a
}

func TestBuildOneEnginePerSeed(t *testing.T) {
	t.Parallel()

	a := build(t, testConfig(), WithPlatform(testPlatform()))
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	engines := a.Engines()
	require.Len(t, engines, 2)
	assert.Equal(t, "silver", engines[0].Name())
	assert.Equal(t, "gold", engines[1].Name())
	assert.Nil(t, a.Handler())
}

func TestRunCrawlsEachTier(t *testing.T) {
	t.Parallel()

	out := memsink.New()
	a := build(t, testConfig(), WithPlatform(testPlatform()), WithRecordSink(out))

	outcomes, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	// halt_on_end turns natural exhaustion into a halt.
	assert.Equal(t, driver.Summary{Halted: 2}, driver.Summarize(outcomes))

	byName := map[string]driver.Outcome{}
	for _, o := range outcomes {
		byName[o.Name] = o
	}
	assert.Equal(t, alice.Key(), byName["gold"].Seed.Key())
	assert.Equal(t, 2, byName["gold"].Result.Visited)
	assert.Equal(t, carol.Key(), byName["silver"].Seed.Key())

	assert.ElementsMatch(t, []string{"gold/EUW1_1", "silver/EUW1_3"}, out.Keys())

	require.NoError(t, a.Close(context.Background()))
	status := store.RunHalted
	runs, err := a.Runs().ListRuns(context.Background(), &status, 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.NotNil(t, r.FinishedAt)
		assert.Positive(t, r.SummonersAccepted)
	}
}

func TestRunWithoutHaltOnEndCompletes(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Crawler.HaltOnEnd = false
	cfg.Crawler.Seeds = map[string]string{"gold": "alice", "iron": "nobody"}
	a := build(t, cfg, WithPlatform(testPlatform()))
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	outcomes, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, driver.Summary{Completed: 1, Failed: 1}, driver.Summarize(outcomes))
	assert.ErrorIs(t, outcomes[0].Err, platform.ErrNotFound)
}

func TestServerExposesEngines(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.Enabled = true
	a := build(t, cfg, WithPlatform(testPlatform()))
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	h := a.Handler()
	require.NotNil(t, h)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/crawlers/gold", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"idle"`)
}

func TestServerReportsRiotRateLimits(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.Enabled = true
	cfg.Platform.APIKey = "RGAPI-test"
	a := build(t, cfg)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/platform/rate-limit", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rate_limit"`)

	injected := build(t, cfg, WithPlatform(testPlatform()))
	t.Cleanup(func() { _ = injected.Close(context.Background()) })
	rec = httptest.NewRecorder()
	injected.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/platform/rate-limit", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuildRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Sink.Backends = []string{"carrier-pigeon"}
	_, err := Build(context.Background(), cfg,
		WithLogger(zap.NewNop()),
		WithRegisterer(prometheus.NewRegistry()),
		WithPlatform(testPlatform()),
	)
	require.ErrorContains(t, err, `unknown sink backend "carrier-pigeon"`)
}

func TestBuildRequiresAPIKeyForRiot(t *testing.T) {
	t.Parallel()

	_, err := Build(context.Background(), testConfig(),
		WithLogger(zap.NewNop()),
		WithRegisterer(prometheus.NewRegistry()),
	)
	require.ErrorContains(t, err, "riot client init failed")
}

func TestBuildWithLocalSink(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Sink.Backends = []string{config.BackendLocal, config.BackendSQLite}
	cfg.Sink.Local.BaseDir = t.TempDir()
	cfg.Sink.SQLite.Path = t.TempDir() + "/matches.db"
	cfg.Progress.Enabled = false
	a := build(t, cfg, WithPlatform(testPlatform()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	outcomes, err := a.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, driver.Summarize(outcomes).Halted)
	require.NoError(t, a.Close(ctx))
	assert.FileExists(t, cfg.Sink.Local.BaseDir+"/gold/EUW1_1.json")
}

func TestRankerEstimate(t *testing.T) {
	t.Parallel()

	r, err := NewRanker(testConfig(), WithPlatform(testPlatform()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	s, est, err := r.Estimate(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, bob.Key(), s.Key())
	assert.Equal(t, rank.New(rank.Gold, rank.DivisionI), est)
	assert.Equal(t, []league.Queue{league.QueueRankedSolo}, r.Queues())

	_, _, err = r.Estimate(context.Background(), "erin")
	require.ErrorIs(t, err, platform.ErrNoRankData)

	_, _, err = r.Estimate(context.Background(), "nobody")
	require.ErrorIs(t, err, platform.ErrNotFound)
}
