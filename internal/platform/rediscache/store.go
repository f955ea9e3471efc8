// Package rediscache stores summoner rank maps in Redis so repeated runs and
// separate processes share rank lookups.
package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	jsoniter "github.com/json-iterator/go"

	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/rank"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type commander interface {
	Get(key string) *redis.StringCmd
	Set(key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Config selects the Redis instance and key namespace.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store implements platform.RankStore on Redis.
type Store struct {
	redis  commander
	prefix string
}

// New connects to Redis.
func New(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newStore(client, cfg.Prefix), nil
}

func newStore(c commander, prefix string) *Store {
	if prefix == "" {
		prefix = "riot-api-crawler"
	}
	return &Store{redis: c, prefix: prefix}
}

func (s *Store) key(k string) string {
	return fmt.Sprintf("{%s}:%s", s.prefix, k)
}

// Get loads a cached rank map. Unknown keys report ok=false.
func (s *Store) Get(_ context.Context, key string) (map[league.Queue]rank.Rank, bool, error) {
	raw, err := s.redis.Get(s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var encoded map[string]string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, false, fmt.Errorf("decode cached ranks: %w", err)
	}
	ranks := make(map[league.Queue]rank.Rank, len(encoded))
	for q, r := range encoded {
		parsed, err := rank.Parse(r)
		if err != nil {
			return nil, false, fmt.Errorf("decode cached rank %s: %w", q, err)
		}
		ranks[league.Queue(q)] = parsed
	}
	return ranks, true, nil
}

// Set writes ranks with ttl. A non-positive ttl persists until evicted.
func (s *Store) Set(_ context.Context, key string, ranks map[league.Queue]rank.Rank, ttl time.Duration) error {
	encoded := make(map[string]string, len(ranks))
	for q, r := range ranks {
		encoded[string(q)] = r.String()
	}
	raw, err := json.Marshal(encoded)
	if err != nil {
		return fmt.Errorf("encode ranks: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.redis.Set(s.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.redis.Close()
}
