// Package riot adapts the Riot Games REST API to platform.Client.
package riot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/metrics"
	"github.com/omarathon/riot-api-crawler/internal/platform"
	"github.com/omarathon/riot-api-crawler/internal/policy/retry"
	"github.com/omarathon/riot-api-crawler/internal/rank"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Limiter paces outgoing requests per host. ratelimit.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context, key string) error
	Pause(key string, d time.Duration)
}

// RetryPolicy decides whether and when to repeat a failed request.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Config carries everything the client needs; there is no global state.
type Config struct {
	APIKey string
	// Platform is the shard routing value, e.g. "euw1".
	Platform string
	// Region is the regional routing value, e.g. "europe".
	Region string
	// DefaultTag completes names given without a "#tag".
	DefaultTag string
	// PlatformBaseURL overrides https://<platform>.api.riotgames.com.
	PlatformBaseURL string
	// RegionalBaseURL overrides https://<region>.api.riotgames.com.
	RegionalBaseURL string
	// Timeout bounds each request attempt.
	Timeout time.Duration
}

// RateLimitInfo mirrors the most recent rate-limit headers.
type RateLimitInfo struct {
	AppLimit    string    `json:"app_limit"`
	AppCount    string    `json:"app_count"`
	MethodLimit string    `json:"method_limit"`
	MethodCount string    `json:"method_count"`
	RetryAfter  int       `json:"retry_after"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Client calls account-v1, match-v5 (matches and timelines) and league-v4.
type Client struct {
	cfg          Config
	http         *fasthttp.Client
	limiter      Limiter
	retry        RetryPolicy
	logger       *zap.Logger
	platformHost string
	regionalHost string

	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

// New validates cfg and builds a client. limiter and retry may be nil.
func New(cfg Config, limiter Limiter, policy RetryPolicy, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("platform.api_key is required")
	}
	cfg.Platform = strings.ToLower(strings.TrimSpace(cfg.Platform))
	cfg.Region = strings.ToLower(strings.TrimSpace(cfg.Region))
	if cfg.Platform == "" || cfg.Region == "" {
		return nil, fmt.Errorf("platform and region are required")
	}
	if cfg.PlatformBaseURL == "" {
		cfg.PlatformBaseURL = "https://" + cfg.Platform + ".api.riotgames.com"
	}
	if cfg.RegionalBaseURL == "" {
		cfg.RegionalBaseURL = "https://" + cfg.Region + ".api.riotgames.com"
	}
	cfg.PlatformBaseURL = strings.TrimRight(cfg.PlatformBaseURL, "/")
	cfg.RegionalBaseURL = strings.TrimRight(cfg.RegionalBaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	platformHost, err := hostOf(cfg.PlatformBaseURL)
	if err != nil {
		return nil, err
	}
	regionalHost, err := hostOf(cfg.RegionalBaseURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg: cfg,
		http: &fasthttp.Client{
			Name:                "riot-api-crawler",
			MaxConnsPerHost:     64,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
		limiter:      limiter,
		retry:        policy,
		logger:       logger,
		platformHost: platformHost,
		regionalHost: regionalHost,
	}, nil
}

func hostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid base url %q", raw)
	}
	return u.Host, nil
}

// RateLimitInfo returns the latest rate-limit headers seen.
func (c *Client) RateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

// Summoner resolves "name#tag". A bare name uses the configured default tag.
func (c *Client) Summoner(ctx context.Context, name string) (league.Summoner, error) {
	gameName, tag := splitRiotID(name, c.cfg.DefaultTag)
	if gameName == "" || tag == "" {
		return league.Summoner{}, &platform.FetchError{Op: "account", Subject: name, Err: fmt.Errorf("riot id needs a name and tag")}
	}
	endpoint := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.cfg.RegionalBaseURL, url.PathEscape(gameName), url.PathEscape(tag))
	acct, err := doRequest[accountDTO](ctx, c, "account-v1", c.regionalHost, endpoint, name)
	if err != nil {
		return league.Summoner{}, err
	}
	return league.Summoner{
		Platform: c.cfg.Platform,
		ID:       acct.PUUID,
		Name:     acct.GameName + "#" + acct.TagLine,
	}, nil
}

func splitRiotID(name, defaultTag string) (string, string) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, "#"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return name, defaultTag
}

// MatchHistory fetches the newest limit match ids and then each match. A match
// that fails to load is skipped; the call fails only if every match fails.
func (c *Client) MatchHistory(ctx context.Context, s league.Summoner, limit int) ([]league.Match, error) {
	if limit <= 0 {
		return nil, nil
	}
	endpoint := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?start=0&count=%d",
		c.cfg.RegionalBaseURL, url.PathEscape(s.ID), limit)
	ids, err := doRequest[[]string](ctx, c, "match-v5-ids", c.regionalHost, endpoint, s.Key())
	if err != nil {
		return nil, err
	}
	matches := make([]league.Match, 0, len(*ids))
	var lastErr error
	for _, id := range *ids {
		m, err := c.match(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			c.logger.Warn("skipping match", zap.String("match_id", id), zap.Error(err))
			lastErr = err
			continue
		}
		matches = append(matches, m)
	}
	if len(matches) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return matches, nil
}

func (c *Client) match(ctx context.Context, id string) (league.Match, error) {
	endpoint := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.cfg.RegionalBaseURL, url.PathEscape(id))
	dto, err := doRequest[matchDTO](ctx, c, "match-v5", c.regionalHost, endpoint, id)
	if err != nil {
		return league.Match{}, err
	}
	m := dto.toMatch(c.cfg.Platform)
	if err := c.timeline(ctx, &m); err != nil {
		if ctx.Err() != nil {
			return league.Match{}, err
		}
		c.logger.Warn("match without timeline", zap.String("match_id", id), zap.Error(err))
	}
	return m, nil
}

// timeline fills in the participants' gold timelines.
func (c *Client) timeline(ctx context.Context, m *league.Match) error {
	endpoint := fmt.Sprintf("%s/lol/match/v5/matches/%s/timeline", c.cfg.RegionalBaseURL, url.PathEscape(m.ID))
	dto, err := doRequest[timelineDTO](ctx, c, "match-v5-timeline", c.regionalHost, endpoint, m.ID)
	if err != nil {
		return err
	}
	attachGold(m, dto.goldMarks(league.GoldMarkInterval))
	return nil
}

// Ranks loads every league entry for s.
func (c *Client) Ranks(ctx context.Context, s league.Summoner) (map[league.Queue]rank.Rank, error) {
	endpoint := fmt.Sprintf("%s/lol/league/v4/entries/by-puuid/%s", c.cfg.PlatformBaseURL, url.PathEscape(s.ID))
	entries, err := doRequest[[]leagueEntryDTO](ctx, c, "league-v4", c.platformHost, endpoint, s.Key())
	if err != nil {
		return nil, err
	}
	return toRanks(*entries), nil
}

// Rank returns s's rank in queue.
func (c *Client) Rank(ctx context.Context, s league.Summoner, queue league.Queue) (rank.Rank, error) {
	ranks, err := c.Ranks(ctx, s)
	if err != nil {
		return rank.Rank{}, err
	}
	return platform.RankFromMap(ranks, queue)
}

type statusError struct {
	code       int
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func (e *statusError) Retryable() bool {
	return e.code == fasthttp.StatusTooManyRequests || e.code >= 500
}

type transportError struct{ err error }

func (e *transportError) Error() string   { return e.err.Error() }
func (e *transportError) Unwrap() error   { return e.err }
func (e *transportError) Retryable() bool { return true }

func doRequest[T any](ctx context.Context, c *Client, op, host, endpoint, subject string) (*T, error) {
	for attempt := 1; ; attempt++ {
		result, err := doOnce[T](ctx, c, op, host, endpoint)
		if err == nil {
			return result, nil
		}
		if c.retry == nil || !c.retry.ShouldRetry(err, attempt) {
			return nil, toFetchError(op, subject, err)
		}
		wait := c.retry.Backoff(attempt)
		var se *statusError
		if errors.As(err, &se) && se.retryAfter > wait {
			wait = se.retryAfter
		}
		metrics.ObservePlatformRetry(op)
		c.logger.Debug("retrying platform request",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if err := retry.Sleep(ctx, wait); err != nil {
			return nil, toFetchError(op, subject, err)
		}
	}
}

func doOnce[T any](ctx context.Context, c *Client, op, host, endpoint string) (*T, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, host); err != nil {
			return nil, err
		}
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint)
	req.URI().DisablePathNormalizing = true
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("X-Riot-Token", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	start := time.Now()
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		metrics.ObservePlatformRequest(op, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &transportError{err: err}
	}
	code := resp.StatusCode()
	metrics.ObservePlatformRequest(op, code, time.Since(start))
	c.updateRateLimit(resp)

	switch {
	case code == fasthttp.StatusOK:
	case code == fasthttp.StatusNotFound:
		return nil, fmt.Errorf("status %d: %w", code, platform.ErrNotFound)
	default:
		se := &statusError{code: code}
		if code == fasthttp.StatusTooManyRequests {
			se.retryAfter = parseRetryAfter(resp)
			if c.limiter != nil {
				c.limiter.Pause(host, se.retryAfter)
			}
		}
		return nil, se
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode %s: %w", op, err)
	}
	return &result, nil
}

func parseRetryAfter(resp *fasthttp.Response) time.Duration {
	raw := string(resp.Header.Peek("Retry-After"))
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs < 0 {
		return time.Second
	}
	return time.Duration(secs) * time.Second
}

func toFetchError(op, subject string, err error) error {
	fe := &platform.FetchError{Op: op, Subject: subject, Err: err}
	var se *statusError
	if errors.As(err, &se) {
		fe.StatusCode = se.code
	}
	if errors.Is(err, platform.ErrNotFound) {
		fe.StatusCode = fasthttp.StatusNotFound
	}
	return fe
}

func (c *Client) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if v := string(resp.Header.Peek("X-App-Rate-Limit")); v != "" {
		c.rateLimit.AppLimit = v
	}
	if v := string(resp.Header.Peek("X-App-Rate-Limit-Count")); v != "" {
		c.rateLimit.AppCount = v
	}
	if v := string(resp.Header.Peek("X-Method-Rate-Limit")); v != "" {
		c.rateLimit.MethodLimit = v
	}
	if v := string(resp.Header.Peek("X-Method-Rate-Limit-Count")); v != "" {
		c.rateLimit.MethodCount = v
	}
	if v := string(resp.Header.Peek("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.rateLimit.RetryAfter = secs
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}
