package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/omarathon/riot-api-crawler/internal/config"
	"github.com/omarathon/riot-api-crawler/internal/elo"
	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/platform"
	"github.com/omarathon/riot-api-crawler/internal/platform/rediscache"
	"github.com/omarathon/riot-api-crawler/internal/platform/riot"
	"github.com/omarathon/riot-api-crawler/internal/policy/ratelimit"
	"github.com/omarathon/riot-api-crawler/internal/policy/retry"
	"github.com/omarathon/riot-api-crawler/internal/rank"
)

// platformDeps is the shared, rank-cached view of the platform every engine
// uses.
type platformDeps struct {
	client    platform.Client
	estimator *elo.MaxSummonerEstimator
	redis     *rediscache.Store
	// riot is nil when a platform was injected.
	riot *riot.Client
}

func (p *platformDeps) close() error {
	if p.redis == nil {
		return nil
	}
	return p.redis.Close()
}

func setupPlatform(cfg config.Config, o options, logger *zap.Logger) (*platformDeps, error) {
	rankQueues, err := cfg.RankQueues()
	if err != nil {
		return nil, err
	}

	deps := &platformDeps{}
	client := o.platform
	if client == nil {
		initial, maxDelay := cfg.Backoff()
		limiter := ratelimit.New(ratelimit.Config{
			GlobalRPS:   cfg.RateLimit.GlobalRPS,
			GlobalBurst: cfg.RateLimit.GlobalBurst,
			PerKeyRPS:   cfg.RateLimit.PerHostRPS,
			PerKeyBurst: cfg.RateLimit.PerHostBurst,
		})
		policy := retry.NewExponential(retry.Config{
			MaxAttempts: cfg.HTTP.MaxRetries + 1,
			BaseDelay:   initial,
			MaxDelay:    maxDelay,
		})
		riotClient, err := riot.New(riot.Config{
			APIKey:          cfg.Platform.APIKey,
			Platform:        cfg.Platform.Region,
			Region:          cfg.Platform.Routing,
			DefaultTag:      cfg.Platform.DefaultTag,
			PlatformBaseURL: cfg.Platform.BaseURL,
			RegionalBaseURL: cfg.Platform.RegionalBaseURL,
			Timeout:         cfg.HTTPTimeout(),
		}, limiter, policy, logger.Named("riot"))
		if err != nil {
			return nil, fmt.Errorf("riot client init failed: %w", err)
		}
		logger.Info("riot client initialized",
			zap.String("region", cfg.Platform.Region),
			zap.String("routing", cfg.Platform.Routing),
			zap.Float64("global_rps", cfg.RateLimit.GlobalRPS),
		)
		client = riotClient
		deps.riot = riotClient
	}

	var cacheStore platform.RankStore
	switch cfg.Cache.Backend {
	case "redis":
		deps.redis, err = rediscache.New(rediscache.Config{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis rank cache init failed: %w", err)
		}
		cacheStore = deps.redis
		logger.Info("using redis rank cache", zap.String("addr", cfg.Cache.RedisAddr))
	default:
		cacheStore = platform.NewMemoryRankStore(nil)
		logger.Info("using in-memory rank cache")
	}

	cached := platform.Cached(client, cacheStore, cfg.CacheTTL(), logger.Named("rank_cache"))
	deps.client = cached
	deps.estimator = elo.NewMaxSummonerEstimator(cached, rankQueues...)
	return deps, nil
}

// Ranker answers one-off rank questions without building the fleet.
type Ranker struct {
	deps *platformDeps
}

// NewRanker builds the rank-cached platform client and summoner estimator
// described by cfg.
func NewRanker(cfg config.Config, opts ...Option) (*Ranker, error) {
	o := collect(opts)
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	deps, err := setupPlatform(cfg, o, logger)
	if err != nil {
		return nil, err
	}
	return &Ranker{deps: deps}, nil
}

// Estimate resolves name and returns its estimated rank over the configured
// rank queues. A summoner without rank data yields platform.ErrNoRankData.
func (r *Ranker) Estimate(ctx context.Context, name string) (league.Summoner, rank.Rank, error) {
	s, err := r.deps.client.Summoner(ctx, name)
	if err != nil {
		return league.Summoner{}, rank.Rank{}, fmt.Errorf("resolve %q: %w", name, err)
	}
	est, err := r.deps.estimator.Estimate(ctx, s)
	if err != nil {
		return s, rank.Rank{}, err
	}
	return s, est, nil
}

// Queues returns the rank queues estimates are taken over.
func (r *Ranker) Queues() []league.Queue {
	return r.deps.estimator.Queues()
}

// Close releases the rank cache.
func (r *Ranker) Close() error {
	return r.deps.close()
}
