// Package ratelimit implements the token-bucket limiter every crawler engine
// shares so the fleet stays inside the platform's request budget.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/omarathon/riot-api-crawler/internal/metrics"
)

// Limiter combines one global bucket with lazily created per-key buckets.
// It is safe for concurrent use.
type Limiter struct {
	global *rate.Limiter

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	paused   map[string]time.Time
	keyRate  rate.Limit
	keyBurst int
}

// Config holds rate limiter configuration. A non-positive RPS disables that
// layer.
type Config struct {
	GlobalRPS   float64
	GlobalBurst int
	PerKeyRPS   float64
	PerKeyBurst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	return &Limiter{
		global:   rate.NewLimiter(limitFor(cfg.GlobalRPS), burstFor(cfg.GlobalBurst)),
		limiters: make(map[string]*rate.Limiter),
		paused:   make(map[string]time.Time),
		keyRate:  limitFor(cfg.PerKeyRPS),
		keyBurst: burstFor(cfg.PerKeyBurst),
	}
}

func limitFor(rps float64) rate.Limit {
	if rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}

func burstFor(burst int) int {
	if burst <= 0 {
		return 1
	}
	return burst
}

// Wait blocks until both the global bucket and key's bucket grant a token.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if key == "" {
		key = "unknown"
	}
	l.mu.Lock()
	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.keyRate, l.keyBurst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := l.waitPause(ctx, key); err != nil {
		return fmt.Errorf("rate limit pause: %w", err)
	}
	if err := l.global.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(key, waited)
	}
	return nil
}

// Pause holds back every request for key until d has elapsed. The platform
// client calls it when the server answers with Retry-After.
func (l *Limiter) Pause(key string, d time.Duration) {
	if d <= 0 {
		return
	}
	until := time.Now().Add(d)
	l.mu.Lock()
	defer l.mu.Unlock()
	if until.After(l.paused[key]) {
		l.paused[key] = until
	}
}

func (l *Limiter) waitPause(ctx context.Context, key string) error {
	l.mu.Lock()
	until := l.paused[key]
	l.mu.Unlock()
	delay := time.Until(until)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Keys returns the number of per-key buckets created so far.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
