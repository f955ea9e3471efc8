package driver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarathon/riot-api-crawler/internal/crawler"
	"github.com/omarathon/riot-api-crawler/internal/filter"
	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/output"
	"github.com/omarathon/riot-api-crawler/internal/platform"
	"github.com/omarathon/riot-api-crawler/internal/platform/memory"
	"github.com/omarathon/riot-api-crawler/internal/progress"
)

type runnerFunc func(ctx context.Context, seed league.Summoner) (crawler.Result, error)

func (f runnerFunc) Run(ctx context.Context, seed league.Summoner) (crawler.Result, error) {
	return f(ctx, seed)
}

func completes(runID string) Runner {
	return runnerFunc(func(_ context.Context, seed league.Summoner) (crawler.Result, error) {
		return crawler.Result{RunID: runID, Seed: seed.String(), State: "completed", Visited: 3}, nil
	})
}

func halts(runID string) Runner {
	return runnerFunc(func(_ context.Context, seed league.Summoner) (crawler.Result, error) {
		return crawler.Result{RunID: runID, State: "halted", HaltReason: "listener halted at end of crawl"},
			&crawler.HaltError{Crawler: "x", Seed: seed.String(), Reason: "end"}
	})
}

func panics() Runner {
	return runnerFunc(func(context.Context, league.Summoner) (crawler.Result, error) {
		panic("boom")
	})
}

var seed = league.Summoner{Platform: "euw1", ID: "a", Name: "alice"}

type collectingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (c *collectingEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestRunIsolatesFailures(t *testing.T) {
	t.Parallel()

	fetchErr := errors.New("engine exploded")
	jobs := []Job{
		{Name: "bronze", Engine: completes("r1"), Seed: seed},
		{Name: "silver", Engine: panics(), Seed: seed},
		{Name: "gold", Engine: halts("r3"), Seed: seed},
		{Name: "platinum", Engine: runnerFunc(func(context.Context, league.Summoner) (crawler.Result, error) {
			return crawler.Result{}, fetchErr
		}), Seed: seed},
		{Name: "diamond", Seed: seed},
	}

	var calls atomic.Int32
	outcomes := Run(context.Background(), jobs, Options{
		Parallelism: 2,
		OnOutcome:   func(Outcome) { calls.Add(1) },
	})

	require.Len(t, outcomes, 5)
	assert.Equal(t, int32(5), calls.Load())

	assert.Equal(t, "bronze", outcomes[0].Name)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, "completed", outcomes[0].Status())
	assert.Equal(t, 3, outcomes[0].Result.Visited)

	assert.ErrorIs(t, outcomes[1].Err, ErrPanic)
	assert.True(t, outcomes[1].Failed())

	assert.True(t, outcomes[2].Halted())
	assert.False(t, outcomes[2].Failed())
	assert.Equal(t, "halted", outcomes[2].Status())

	assert.ErrorIs(t, outcomes[3].Err, fetchErr)
	assert.Equal(t, "failed", outcomes[3].Status())

	assert.ErrorContains(t, outcomes[4].Err, "no engine")

	assert.Equal(t, Summary{Completed: 1, Halted: 1, Failed: 3}, Summarize(outcomes))
}

func TestRunRespectsParallelism(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32
	engine := runnerFunc(func(context.Context, league.Summoner) (crawler.Result, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return crawler.Result{}, nil
	})

	jobs := make([]Job, 6)
	for i := range jobs {
		jobs[i] = Job{Name: "job", Engine: engine, Seed: seed}
	}
	Run(context.Background(), jobs, Options{Parallelism: 2})
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestRunResolvesSeedNames(t *testing.T) {
	t.Parallel()

	plat := memory.New()
	plat.AddSummoner(seed, nil)

	var got league.Summoner
	engine := runnerFunc(func(_ context.Context, s league.Summoner) (crawler.Result, error) {
		got = s
		return crawler.Result{}, nil
	})

	outcomes := Run(context.Background(), []Job{
		{Name: "gold", Engine: engine, SeedName: "alice"},
		{Name: "silver", Engine: engine, SeedName: "nobody"},
		{Name: "iron", Engine: engine},
	}, Options{Resolver: plat})

	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, seed.Key(), got.Key())
	assert.Equal(t, seed.Key(), outcomes[0].Seed.Key())

	assert.ErrorIs(t, outcomes[1].Err, platform.ErrNotFound)
	assert.ErrorContains(t, outcomes[1].Err, `resolve seed "nobody"`)
	assert.Error(t, outcomes[2].Err)
}

// TestRunWithRealEngines runs two engines over one platform; one fails to fetch its seed's history.
func TestRunWithRealEngines(t *testing.T) {
	t.Parallel()

	alice := league.Summoner{Platform: "euw1", ID: "a"}
	bob := league.Summoner{Platform: "euw1", ID: "b"}
	broken := league.Summoner{Platform: "euw1", ID: "z"}
	plat := memory.New()
	plat.AddMatch(league.Match{
		ID:    "EUW1_1",
		Queue: league.QueueRankedSolo,
		Participants: []league.Participant{
			{Summoner: alice}, {Summoner: bob},
		},
	})
	plat.FailHistory(broken, errors.New("status 503"))

	newEngine := func(name string) *crawler.Engine {
		e, err := crawler.New(name, crawler.Config{
			MatchFilter:        filter.AcceptAll[league.Match](),
			SummonerFilter:     filter.AcceptAll[league.Summoner](),
			MatchesPerSummoner: 5,
		}, crawler.Deps{History: plat, Handler: output.Discard})
		require.NoError(t, err)
		return e
	}

	outcomes := Run(context.Background(), []Job{
		{Name: "gold", Engine: newEngine("gold"), Seed: alice},
		{Name: "iron", Engine: newEngine("iron"), Seed: broken},
	}, Options{Parallelism: 2})

	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, 2, outcomes[0].Result.Visited)
	assert.Equal(t, 1, outcomes[0].Result.MatchesEmitted)

	require.NoError(t, outcomes[1].Err)
	assert.Equal(t, 1, outcomes[1].Result.FetchErrors)
}

func TestReportProgress(t *testing.T) {
	t.Parallel()

	em := &collectingEmitter{}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	report := ReportProgress(em, fixedClock{t: now})
	runID := "01890a5d-ac96-774b-bcce-b302099a8057"

	report(Outcome{Name: "gold", Seed: seed, Result: crawler.Result{RunID: runID}})
	report(Outcome{
		Name:   "iron",
		Seed:   seed,
		Result: crawler.Result{RunID: runID, HaltReason: "end"},
		Err:    &crawler.HaltError{Reason: "end"},
	})
	report(Outcome{Name: "silver", Seed: seed, Result: crawler.Result{RunID: runID}, Err: errors.New("boom")})
	report(Outcome{Name: "bronze", Err: errors.New("resolve seed")})

	require.Len(t, em.events, 3)
	for _, evt := range em.events {
		require.NoError(t, evt.Validate())
		assert.Equal(t, progress.StageRunFinished, evt.Stage)
		assert.Equal(t, now, evt.TS)
	}
	assert.Equal(t, progress.OutcomeCompleted, em.events[0].Outcome)
	assert.Equal(t, progress.OutcomeHalted, em.events[1].Outcome)
	assert.Equal(t, "end", em.events[1].Note)
	assert.Equal(t, progress.OutcomeFailed, em.events[2].Outcome)
	assert.Equal(t, "boom", em.events[2].Note)

	assert.NotPanics(t, func() { ReportProgress(nil, nil)(Outcome{}) })
}
