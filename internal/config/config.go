// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/omarathon/riot-api-crawler/internal/elo"
	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/rank"
)

// Sink backend names accepted in sink.backends.
const (
	BackendMemory   = "memory"
	BackendLocal    = "local"
	BackendRTDB     = "rtdb"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendGCS      = "gcs"
	BackendPubSub   = "pubsub"
)

var knownBackends = []string{
	BackendMemory, BackendLocal, BackendRTDB, BackendPostgres, BackendSQLite, BackendGCS, BackendPubSub,
}

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Platform  PlatformConfig  `mapstructure:"platform"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Sink      SinkConfig      `mapstructure:"sink"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// PlatformConfig points the Riot client at a shard.
type PlatformConfig struct {
	// Region is the platform shard, e.g. euw1.
	Region string `mapstructure:"region"`
	// Routing is the regional cluster used by match-v5 and account-v1.
	Routing    string `mapstructure:"routing"`
	APIKey     string `mapstructure:"api_key"`
	DefaultTag string `mapstructure:"default_tag"`
	// BaseURL and RegionalBaseURL override the derived hosts (tests, proxies).
	BaseURL         string `mapstructure:"base_url"`
	RegionalBaseURL string `mapstructure:"regional_base_url"`
}

// CrawlerConfig governs the engine fleet.
type CrawlerConfig struct {
	MatchesPerSummoner int  `mapstructure:"matches_per_summoner"`
	MaxSummoners       int  `mapstructure:"max_summoners"`
	Parallelism        int  `mapstructure:"parallelism"`
	HaltOnEnd          bool `mapstructure:"halt_on_end"`
	// TieBreak picks the winner among equally common ranks: highest or lowest.
	TieBreak string `mapstructure:"tie_break"`
	// Queues are the match queues whose matches are written out.
	Queues []string `mapstructure:"queues"`
	// RankQueues are the league queues consulted for summoner ranks.
	RankQueues []string `mapstructure:"rank_queues"`
	// Seeds maps a tier name to the summoner its engine starts from.
	Seeds map[string]string `mapstructure:"seeds"`
}

// HTTPConfig configures Riot client timeouts and retries.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// RateLimitConfig sizes the shared token buckets.
type RateLimitConfig struct {
	GlobalRPS    float64 `mapstructure:"global_rps"`
	GlobalBurst  int     `mapstructure:"global_burst"`
	PerHostRPS   float64 `mapstructure:"per_host_rps"`
	PerHostBurst int     `mapstructure:"per_host_burst"`
}

// CacheConfig selects the rank cache.
type CacheConfig struct {
	Backend    string `mapstructure:"backend"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	RedisAddr  string `mapstructure:"redis_addr"`
	RedisDB    int    `mapstructure:"redis_db"`
	// RedisPassword is usually supplied via CRAWLER_CACHE_REDIS_PASSWORD.
	RedisPassword string `mapstructure:"redis_password"`
}

// SinkConfig selects and configures record backends.
type SinkConfig struct {
	Backends []string           `mapstructure:"backends"`
	Local    LocalSinkConfig    `mapstructure:"local"`
	RTDB     RTDBSinkConfig     `mapstructure:"rtdb"`
	Postgres PostgresSinkConfig `mapstructure:"postgres"`
	SQLite   SQLiteSinkConfig   `mapstructure:"sqlite"`
	GCS      GCSSinkConfig      `mapstructure:"gcs"`
	PubSub   PubSubSinkConfig   `mapstructure:"pubsub"`
}

// LocalSinkConfig writes JSON files under BaseDir.
type LocalSinkConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// RTDBSinkConfig targets a Firebase Realtime Database.
type RTDBSinkConfig struct {
	URL            string `mapstructure:"url"`
	Node           string `mapstructure:"node"`
	Secret         string `mapstructure:"secret"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// PostgresSinkConfig stores records in a table.
type PostgresSinkConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// SQLiteSinkConfig stores records in a database file.
type SQLiteSinkConfig struct {
	Path string `mapstructure:"path"`
}

// GCSSinkConfig stores records as bucket objects.
type GCSSinkConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PubSubSinkConfig publishes records to a topic.
type PubSubSinkConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	LogEnabled    bool                `mapstructure:"log_enabled"`
	BufferSize    int                 `mapstructure:"buffer_size"`
	Batch         ProgressBatchConfig `mapstructure:"batch"`
	SinkTimeoutMs int                 `mapstructure:"sink_timeout_ms"`
}

// ProgressBatchConfig bounds hub batches.
type ProgressBatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// DatabaseConfig controls the run store. An empty DSN keeps runs in memory.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Seed is one engine's starting point.
type Seed struct {
	Tier rank.Tier
	Name string
}

// Load builds a Config from an optional .env file, disk, and the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("platform.api_key", "CRAWLER_PLATFORM_API_KEY", "RIOT_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("platform.region", "euw1")
	v.SetDefault("platform.routing", "europe")
	v.SetDefault("platform.default_tag", "EUW")
	v.SetDefault("crawler.matches_per_summoner", 10)
	v.SetDefault("crawler.max_summoners", 0)
	v.SetDefault("crawler.parallelism", 8)
	v.SetDefault("crawler.halt_on_end", true)
	v.SetDefault("crawler.tie_break", "highest")
	v.SetDefault("crawler.queues", []string{string(league.QueueRankedSolo), string(league.QueueDraftRanked)})
	v.SetDefault("crawler.rank_queues", []string{string(league.QueueRankedSolo)})
	v.SetDefault("crawler.seeds", DefaultSeeds())
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 500)
	v.SetDefault("http.backoff_max_ms", 10000)
	v.SetDefault("rate_limit.global_rps", 0.8)
	v.SetDefault("rate_limit.global_burst", 20)
	v.SetDefault("rate_limit.per_host_rps", 0)
	v.SetDefault("rate_limit.per_host_burst", 0)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("sink.backends", []string{BackendRTDB})
	v.SetDefault("sink.local.base_dir", "out")
	v.SetDefault("sink.rtdb.url", "https://riot-api-crawler-example-default-rtdb.europe-west1.firebasedatabase.app")
	v.SetDefault("sink.rtdb.node", "crawler")
	v.SetDefault("sink.rtdb.timeout_seconds", 10)
	v.SetDefault("sink.postgres.table", "crawled_matches")
	v.SetDefault("sink.sqlite.path", "matches.db")
	v.SetDefault("sink.gcs.prefix", "matches")
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_enabled", false)
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.batch.max_events", 500)
	v.SetDefault("progress.batch.max_wait_ms", 250)
	v.SetDefault("progress.sink_timeout_ms", 5000)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// DefaultSeeds returns the starting summoner for each crawled tier.
func DefaultSeeds() map[string]string {
	return map[string]string{
		"bronze":      "Dabby3",
		"silver":      "KillerCookie75",
		"gold":        "VÎ›PO",
		"platinum":    "Ghutter Life",
		"diamond":     "smol marie",
		"master":      "MastoPapi",
		"grandmaster": "Floomer",
		"challenger":  "Agurin",
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Platform.Region == "" || c.Platform.Routing == "" {
		return fmt.Errorf("platform.region and platform.routing are required")
	}
	if c.Crawler.MatchesPerSummoner <= 0 {
		return fmt.Errorf("crawler.matches_per_summoner must be > 0")
	}
	if c.Crawler.MaxSummoners < 0 {
		return fmt.Errorf("crawler.max_summoners must be >= 0")
	}
	if c.Crawler.Parallelism <= 0 {
		return fmt.Errorf("crawler.parallelism must be > 0")
	}
	if _, err := elo.ParseTieBreak(c.Crawler.TieBreak); err != nil {
		return fmt.Errorf("crawler.tie_break: %w", err)
	}
	if _, err := c.Queues(); err != nil {
		return err
	}
	if _, err := c.RankQueues(); err != nil {
		return err
	}
	if _, err := c.Seeds(); err != nil {
		return err
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.RateLimit.GlobalRPS < 0 || c.RateLimit.PerHostRPS < 0 {
		return fmt.Errorf("rate_limit rps values must be >= 0")
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr must be set when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend %q is not supported", c.Cache.Backend)
	}
	if err := c.Sink.validate(); err != nil {
		return err
	}
	if c.Progress.Enabled && c.Progress.BufferSize <= 0 {
		return fmt.Errorf("progress.buffer_size must be > 0 when progress is enabled")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

func (s SinkConfig) validate() error {
	if len(s.Backends) == 0 {
		return fmt.Errorf("sink.backends must name at least one backend")
	}
	for _, b := range s.Backends {
		switch b {
		case BackendMemory:
		case BackendLocal:
			if s.Local.BaseDir == "" {
				return fmt.Errorf("sink.local.base_dir is required")
			}
		case BackendRTDB:
			if s.RTDB.URL == "" {
				return fmt.Errorf("sink.rtdb.url is required")
			}
		case BackendPostgres:
			if s.Postgres.DSN == "" {
				return fmt.Errorf("sink.postgres.dsn is required")
			}
		case BackendSQLite:
			if s.SQLite.Path == "" {
				return fmt.Errorf("sink.sqlite.path is required")
			}
		case BackendGCS:
			if s.GCS.Bucket == "" {
				return fmt.Errorf("sink.gcs.bucket is required")
			}
		case BackendPubSub:
			if s.PubSub.ProjectID == "" || s.PubSub.Topic == "" {
				return fmt.Errorf("sink.pubsub.project_id and sink.pubsub.topic are required")
			}
		default:
			return fmt.Errorf("sink backend %q is not one of %s", b, strings.Join(knownBackends, ", "))
		}
	}
	return nil
}

// Queues parses crawler.queues.
func (c Config) Queues() ([]league.Queue, error) {
	qs, err := league.ParseQueues(c.Crawler.Queues)
	if err != nil {
		return nil, fmt.Errorf("crawler.queues: %w", err)
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("crawler.queues must not be empty")
	}
	return qs, nil
}

// RankQueues parses crawler.rank_queues; every entry must carry league data.
func (c Config) RankQueues() ([]league.Queue, error) {
	qs, err := league.ParseQueues(c.Crawler.RankQueues)
	if err != nil {
		return nil, fmt.Errorf("crawler.rank_queues: %w", err)
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("crawler.rank_queues must not be empty")
	}
	for _, q := range qs {
		if !q.Ranked() {
			return nil, fmt.Errorf("crawler.rank_queues: %s has no league data", q)
		}
	}
	return qs, nil
}

// Seeds parses crawler.seeds, ordered from the lowest tier up.
func (c Config) Seeds() ([]Seed, error) {
	if len(c.Crawler.Seeds) == 0 {
		return nil, fmt.Errorf("crawler.seeds must not be empty")
	}
	seeds := make([]Seed, 0, len(c.Crawler.Seeds))
	for name, summoner := range c.Crawler.Seeds {
		tier, err := rank.ParseTier(name)
		if err != nil {
			return nil, fmt.Errorf("crawler.seeds: %w", err)
		}
		if strings.TrimSpace(summoner) == "" {
			return nil, fmt.Errorf("crawler.seeds.%s is empty", name)
		}
		seeds = append(seeds, Seed{Tier: tier, Name: summoner})
	}
	slices.SortFunc(seeds, func(a, b Seed) int { return int(a.Tier) - int(b.Tier) })
	return seeds, nil
}

// TieBreak parses crawler.tie_break.
func (c Config) TieBreak() elo.TieBreak {
	tb, _ := elo.ParseTieBreak(c.Crawler.TieBreak)
	return tb
}

// HTTPTimeout is the per-request deadline.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// CacheTTL is how long cached ranks stay fresh.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// Backoff returns the initial and maximum retry delays.
func (c Config) Backoff() (time.Duration, time.Duration) {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond,
		time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
