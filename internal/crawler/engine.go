package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/omarathon/riot-api-crawler/internal/clock/system"
	"github.com/omarathon/riot-api-crawler/internal/id/uuid"
	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/metrics"
	"github.com/omarathon/riot-api-crawler/internal/output"
	"github.com/omarathon/riot-api-crawler/internal/platform"
	"github.com/omarathon/riot-api-crawler/internal/sink"
)

// HistorySource fetches match histories. platform.Client satisfies it.
type HistorySource interface {
	MatchHistory(ctx context.Context, s league.Summoner, limit int) ([]league.Match, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run ids.
type IDGenerator interface {
	NewID() (string, error)
}

// State is an engine lifecycle state.
type State int32

// Engine states.
const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateHalted:
		return "halted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Result summarises a run. Snapshot returns it while the run is live.
type Result struct {
	Crawler         string     `json:"crawler"`
	RunID           string     `json:"run_id,omitempty"`
	Seed            string     `json:"seed,omitempty"`
	State           string     `json:"state"`
	Visited         int        `json:"visited"`
	Accepted        int        `json:"summoners_accepted"`
	Rejected        int        `json:"summoners_rejected"`
	MatchesEmitted  int        `json:"matches_emitted"`
	MatchesRejected int        `json:"matches_rejected"`
	FetchErrors     int        `json:"fetch_errors"`
	WriteErrors     int        `json:"write_errors"`
	Pending         int        `json:"pending"`
	HaltReason      string     `json:"halt_reason,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// Deps are the collaborators of an Engine. History and Handler are required.
type Deps struct {
	History  HistorySource
	Handler  output.Handler
	Listener Listener
	Clock    Clock
	IDs      IDGenerator
	Logger   *zap.Logger
}

// Engine runs one breadth-first crawl at a time. Run is single-threaded;
// State, Snapshot, and Halt may be called from other goroutines.
type Engine struct {
	name     string
	cfg      Config
	history  HistorySource
	handler  output.Handler
	listener Listener
	clock    Clock
	ids      IDGenerator
	logger   *zap.Logger

	state      atomic.Int32
	haltReason atomic.Pointer[string]

	mu          sync.Mutex
	result      Result
	frontier    frontier
	seen        map[string]struct{}
	visited     map[string]struct{}
	seenMatches map[string]struct{}
}

// New validates cfg and builds an idle engine labelled name.
func New(name string, cfg Config, deps Deps) (*Engine, error) {
	if name == "" {
		return nil, errors.New("crawler name is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("crawler %s: %w", name, err)
	}
	if deps.History == nil || deps.Handler == nil {
		return nil, fmt.Errorf("crawler %s: history source and output handler are required", name)
	}
	if deps.Listener == nil {
		deps.Listener = NopListener{}
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.IDs == nil {
		deps.IDs = uuid.NewUUIDGenerator()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	e := &Engine{
		name:     name,
		cfg:      cfg,
		history:  deps.History,
		handler:  deps.Handler,
		listener: deps.Listener,
		clock:    deps.Clock,
		ids:      deps.IDs,
		logger:   deps.Logger.With(zap.String("crawler", name)),
	}
	e.clear()
	return e, nil
}

// Name returns the engine label, usually the tier it crawls.
func (e *Engine) Name() string { return e.name }

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Snapshot returns the live counters of the current or last run.
func (e *Engine) Snapshot() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.result
	r.State = e.State().String()
	r.Pending = e.frontier.len()
	return r
}

// Halt asks a running engine to stop before its next summoner. It reports
// whether the engine was running.
func (e *Engine) Halt(reason string) bool {
	if e.State() != StateRunning {
		return false
	}
	if reason == "" {
		reason = "halt requested"
	}
	e.haltReason.Store(&reason)
	return true
}

// Reset returns a terminal engine to Idle and drops all run state.
func (e *Engine) Reset() error {
	// Held across the swap so a Run that wins the Idle state seeds after the clear.
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		st := e.State()
		switch st {
		case StateIdle:
			return nil
		case StateRunning:
			return ErrRunning
		}
		if e.state.CompareAndSwap(int32(st), int32(StateIdle)) {
			e.clear()
			return nil
		}
	}
}

func (e *Engine) clear() {
	e.frontier.reset()
	e.seen = make(map[string]struct{})
	e.visited = make(map[string]struct{})
	e.seenMatches = make(map[string]struct{})
	e.result = Result{Crawler: e.name}
}

// Run crawls from seed until the frontier is exhausted or something halts the
// engine. A halt returns a *HaltError alongside the final Result.
//
// Cancelling ctx stops the engine between summoners. The summoner in flight
// is finished under a context that ignores the cancellation.
func (e *Engine) Run(ctx context.Context, seed league.Summoner) (Result, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return e.Snapshot(), ErrNotIdle
	}
	runID, err := e.ids.NewID()
	if err != nil {
		e.state.Store(int32(StateIdle))
		return e.Snapshot(), fmt.Errorf("crawler %s: %w", e.name, err)
	}
	e.haltReason.Store(nil)

	e.mu.Lock()
	e.clear()
	e.frontier.push(seed)
	e.seen[seed.Key()] = struct{}{}
	e.result.RunID = runID
	e.result.Seed = seed.String()
	started := e.clock.Now()
	e.result.StartedAt = &started
	e.mu.Unlock()

	metrics.IncRunningCrawlers()
	defer metrics.DecRunningCrawlers()

	run := RunInfo{Crawler: e.name, RunID: runID, Seed: seed}
	logger := e.logger.With(zap.String("run_id", runID), zap.String("seed", seed.String()))
	logger.Info("crawl started")

	if e.listener.OnCrawlStart(ctx, run) == Halt {
		return e.finish(logger, StateHalted, "listener halted on crawl start")
	}

	work := context.WithoutCancel(ctx)
	for {
		if reason, ok := e.haltRequested(ctx); ok {
			return e.finish(logger, StateHalted, reason)
		}
		s, ok := e.next()
		if !ok {
			break
		}
		if e.expand(work, logger, run, s) == Halt {
			return e.finish(logger, StateHalted, "listener halted on "+s.String())
		}
	}

	if e.listener.OnEndCrawl(ctx, run) == Halt {
		return e.finish(logger, StateHalted, "listener halted at end of crawl")
	}
	return e.finish(logger, StateCompleted, "")
}

func (e *Engine) haltRequested(ctx context.Context) (string, bool) {
	if reason := e.haltReason.Load(); reason != nil {
		return *reason, true
	}
	if err := ctx.Err(); err != nil {
		return err.Error(), true
	}
	return "", false
}

// next dequeues the next unvisited summoner and marks it visited.
func (e *Engine) next() (league.Summoner, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		if e.cfg.MaxSummoners > 0 && len(e.visited) >= e.cfg.MaxSummoners {
			return league.Summoner{}, false
		}
		s, ok := e.frontier.pop()
		if !ok {
			return league.Summoner{}, false
		}
		if _, done := e.visited[s.Key()]; done {
			continue
		}
		e.visited[s.Key()] = struct{}{}
		e.result.Visited++
		return s, true
	}
}

func (e *Engine) expand(ctx context.Context, logger *zap.Logger, run RunInfo, s league.Summoner) Signal {
	if !e.cfg.SummonerFilter.Accepts(ctx, s) {
		e.update(func(r *Result) { r.Rejected++ })
		return e.listener.OnSummonerRejected(ctx, run, s)
	}
	e.update(func(r *Result) { r.Accepted++ })
	if e.listener.OnSummonerAccepted(ctx, run, s) == Halt {
		return Halt
	}

	matches, err := e.history.MatchHistory(ctx, s, e.cfg.MatchesPerSummoner)
	if err != nil {
		err = platform.AsFetchError("match-history", s.Key(), err)
		e.update(func(r *Result) { r.FetchErrors++ })
		logger.Warn("skipping summoner", zap.String("summoner", s.String()), zap.Error(err))
		return e.listener.OnError(ctx, run, err)
	}
	for _, m := range matches {
		if e.processMatch(ctx, logger, run, m) == Halt {
			return Halt
		}
	}
	return Continue
}

func (e *Engine) processMatch(ctx context.Context, logger *zap.Logger, run RunInfo, m league.Match) Signal {
	e.mu.Lock()
	_, dup := e.seenMatches[m.ID]
	e.seenMatches[m.ID] = struct{}{}
	e.mu.Unlock()
	if dup {
		return Continue
	}

	if !e.cfg.MatchFilter.Accepts(ctx, m) {
		e.update(func(r *Result) { r.MatchesRejected++ })
		return e.listener.OnMatchRejected(ctx, run, m)
	}
	if e.listener.OnMatchAccepted(ctx, run, m) == Halt {
		return Halt
	}

	env := output.Envelope{Match: m, Crawler: e.name, RunID: run.RunID, CapturedAt: e.clock.Now()}
	writeErr := e.handler.Handle(ctx, env)
	if writeErr == nil {
		e.update(func(r *Result) { r.MatchesEmitted++ })
	}
	e.enqueue(m.Summoners())

	if writeErr != nil {
		writeErr = sink.AsWriteError(output.Key(env), writeErr)
		e.update(func(r *Result) { r.WriteErrors++ })
		logger.Warn("match output failed", zap.String("match_id", m.ID), zap.Error(writeErr))
		return e.listener.OnError(ctx, run, writeErr)
	}
	return Continue
}

func (e *Engine) enqueue(summoners []league.Summoner) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range summoners {
		key := s.Key()
		if _, ok := e.seen[key]; ok {
			continue
		}
		e.seen[key] = struct{}{}
		e.frontier.push(s)
	}
}

func (e *Engine) update(fn func(r *Result)) {
	e.mu.Lock()
	fn(&e.result)
	e.mu.Unlock()
}

func (e *Engine) finish(logger *zap.Logger, state State, reason string) (Result, error) {
	e.mu.Lock()
	finished := e.clock.Now()
	e.result.FinishedAt = &finished
	e.result.HaltReason = reason
	e.mu.Unlock()
	e.state.Store(int32(state))

	res := e.Snapshot()
	metrics.ObserveCrawlerFinished(e.name, state.String())
	logger.Info("crawl finished",
		zap.String("state", res.State),
		zap.String("reason", reason),
		zap.Int("visited", res.Visited),
		zap.Int("matches_emitted", res.MatchesEmitted),
		zap.Int("pending", res.Pending),
	)
	if state == StateHalted {
		return res, &HaltError{Crawler: e.name, Seed: res.Seed, Reason: reason}
	}
	return res, nil
}
