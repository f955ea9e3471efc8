package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/rank"
)

// RankStore persists rank maps keyed by summoner. An empty map is a valid
// cached value meaning "unranked".
type RankStore interface {
	Get(ctx context.Context, key string) (map[league.Queue]rank.Rank, bool, error)
	Set(ctx context.Context, key string, ranks map[league.Queue]rank.Rank, ttl time.Duration) error
}

// CachingClient memoises rank lookups so every engine estimating the same
// summoner shares one remote call.
type CachingClient struct {
	Client
	store  RankStore
	ttl    time.Duration
	logger *zap.Logger
}

// Cached decorates client with a rank cache.
func Cached(client Client, store RankStore, ttl time.Duration, logger *zap.Logger) *CachingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewMemoryRankStore(nil)
	}
	return &CachingClient{Client: client, store: store, ttl: ttl, logger: logger}
}

// Rank answers from the summoner's own rank info, then the cache, then the platform.
func (c *CachingClient) Rank(ctx context.Context, s league.Summoner, queue league.Queue) (rank.Rank, error) {
	if s.Ranks != nil {
		return RankFromMap(s.Ranks, queue)
	}
	if _, ok := c.Client.(RankLister); ok {
		ranks, err := c.Ranks(ctx, s)
		if err != nil {
			return rank.Rank{}, err
		}
		return RankFromMap(ranks, queue)
	}

	key := "rank:" + s.Key() + ":" + string(queue)
	if ranks, ok := c.lookup(ctx, key); ok {
		return RankFromMap(ranks, queue)
	}
	r, err := c.Client.Rank(ctx, s, queue)
	switch {
	case errors.Is(err, ErrNoRankData):
		c.remember(ctx, key, map[league.Queue]rank.Rank{})
		return rank.Rank{}, err
	case err != nil:
		return rank.Rank{}, err
	}
	c.remember(ctx, key, map[league.Queue]rank.Rank{queue: r})
	return r, nil
}

// Ranks returns every queue's rank for s. It requires the wrapped client to
// implement RankLister.
func (c *CachingClient) Ranks(ctx context.Context, s league.Summoner) (map[league.Queue]rank.Rank, error) {
	if s.Ranks != nil {
		return s.Ranks, nil
	}
	lister, ok := c.Client.(RankLister)
	if !ok {
		return nil, fmt.Errorf("client %T cannot list ranks", c.Client)
	}
	key := "ranks:" + s.Key()
	if ranks, ok := c.lookup(ctx, key); ok {
		return ranks, nil
	}
	ranks, err := lister.Ranks(ctx, s)
	if err != nil {
		return nil, err
	}
	if ranks == nil {
		ranks = map[league.Queue]rank.Rank{}
	}
	c.remember(ctx, key, ranks)
	return ranks, nil
}

func (c *CachingClient) lookup(ctx context.Context, key string) (map[league.Queue]rank.Rank, bool) {
	ranks, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("rank cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return ranks, ok
}

func (c *CachingClient) remember(ctx context.Context, key string, ranks map[league.Queue]rank.Rank) {
	if err := c.store.Set(ctx, key, ranks, c.ttl); err != nil {
		c.logger.Warn("rank cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// MemoryRankStore is an in-process RankStore with per-entry expiry.
type MemoryRankStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	ranks   map[league.Queue]rank.Rank
	expires time.Time
}

// NewMemoryRankStore builds a store. now defaults to time.Now.
func NewMemoryRankStore(now func() time.Time) *MemoryRankStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryRankStore{entries: make(map[string]memoryEntry), now: now}
}

// Get returns a live entry.
func (m *MemoryRankStore) Get(_ context.Context, key string) (map[league.Queue]rank.Rank, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expires.IsZero() && !m.now().Before(entry.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return entry.ranks, true, nil
}

// Set stores ranks. A non-positive ttl never expires.
func (m *MemoryRankStore) Set(_ context.Context, key string, ranks map[league.Queue]rank.Rank, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{ranks: ranks}
	if ttl > 0 {
		entry.expires = m.now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

// Len reports the number of stored entries, expired or not.
func (m *MemoryRankStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
