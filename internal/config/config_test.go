package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarathon/riot-api-crawler/internal/elo"
	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/rank"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "euw1", cfg.Platform.Region)
	assert.Equal(t, 10, cfg.Crawler.MatchesPerSummoner)
	assert.True(t, cfg.Crawler.HaltOnEnd)
	assert.Equal(t, []string{BackendRTDB}, cfg.Sink.Backends)
	assert.Equal(t, "crawler", cfg.Sink.RTDB.Node)
	assert.Equal(t, elo.TieBreakHighest, cfg.TieBreak())
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout())

	seeds, err := cfg.Seeds()
	require.NoError(t, err)
	require.Len(t, seeds, 8)
	assert.Equal(t, Seed{Tier: rank.Bronze, Name: "Dabby3"}, seeds[0])
	assert.Equal(t, Seed{Tier: rank.Challenger, Name: "Agurin"}, seeds[7])

	queues, err := cfg.Queues()
	require.NoError(t, err)
	assert.Equal(t, []league.Queue{league.QueueRankedSolo, league.QueueDraftRanked}, queues)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
platform:
  region: na1
  routing: americas
  default_tag: NA1
crawler:
  matches_per_summoner: 20
  max_summoners: 100
  parallelism: 2
  halt_on_end: false
  tie_break: lowest
  queues: [RANKED_SOLO_5x5, RANKED_FLEX_SR]
  rank_queues: [RANKED_SOLO_5x5, RANKED_FLEX_SR]
  seeds:
    gold: SomeoneElse
http:
  timeout_seconds: 3
  backoff_initial_ms: 100
  backoff_max_ms: 400
cache:
  backend: redis
  redis_addr: localhost:6379
sink:
  backends: [local, sqlite]
  local:
    base_dir: /tmp/matches
  sqlite:
    path: /tmp/matches.db
server:
  enabled: true
  port: 9090
auth:
  enabled: true
  api_key: secret
logging:
  development: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "na1", cfg.Platform.Region)
	assert.Equal(t, 20, cfg.Crawler.MatchesPerSummoner)
	assert.Equal(t, 100, cfg.Crawler.MaxSummoners)
	assert.False(t, cfg.Crawler.HaltOnEnd)
	assert.Equal(t, elo.TieBreakLowest, cfg.TieBreak())
	assert.Equal(t, "SomeoneElse", cfg.Crawler.Seeds["gold"])
	assert.Equal(t, []string{BackendLocal, BackendSQLite}, cfg.Sink.Backends)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.True(t, cfg.Server.Enabled)
	assert.False(t, cfg.Logging.Development)

	initial, maxDelay := cfg.Backoff()
	assert.Equal(t, 100*time.Millisecond, initial)
	assert.Equal(t, 400*time.Millisecond, maxDelay)

	rq, err := cfg.RankQueues()
	require.NoError(t, err)
	assert.Equal(t, []league.Queue{league.QueueRankedSolo, league.QueueRankedFlex}, rq)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CRAWLER_CRAWLER_MATCHES_PER_SUMMONER", "7")
	t.Setenv("RIOT_API_KEY", "RGAPI-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Crawler.MatchesPerSummoner)
	assert.Equal(t, "RGAPI-test", cfg.Platform.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	cases := map[string]struct {
		mutate func(c *Config)
		want   string
	}{
		"matches per summoner": {func(c *Config) { c.Crawler.MatchesPerSummoner = 0 }, "matches_per_summoner"},
		"parallelism":          {func(c *Config) { c.Crawler.Parallelism = 0 }, "parallelism"},
		"tie break":            {func(c *Config) { c.Crawler.TieBreak = "median" }, "tie_break"},
		"unknown queue":        {func(c *Config) { c.Crawler.Queues = []string{"DOMINION"} }, "crawler.queues"},
		"unranked rank queue":  {func(c *Config) { c.Crawler.RankQueues = []string{"ARAM"} }, "no league data"},
		"bad seed tier":        {func(c *Config) { c.Crawler.Seeds = map[string]string{"wood": "x"} }, "crawler.seeds"},
		"empty seed":           {func(c *Config) { c.Crawler.Seeds = map[string]string{"gold": " "} }, "crawler.seeds.gold"},
		"timeout":              {func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "timeout_seconds"},
		"redis without addr":   {func(c *Config) { c.Cache.Backend = "redis" }, "redis_addr"},
		"unknown cache":        {func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		"no sinks":             {func(c *Config) { c.Sink.Backends = nil }, "sink.backends"},
		"unknown sink":         {func(c *Config) { c.Sink.Backends = []string{"s3"} }, "s3"},
		"postgres sink dsn":    {func(c *Config) { c.Sink.Backends = []string{BackendPostgres} }, "sink.postgres.dsn"},
		"gcs bucket":           {func(c *Config) { c.Sink.Backends = []string{BackendGCS} }, "sink.gcs.bucket"},
		"pubsub topic":         {func(c *Config) { c.Sink.Backends = []string{BackendPubSub} }, "sink.pubsub"},
		"auth key":             {func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Crawler.Seeds = DefaultSeeds()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
