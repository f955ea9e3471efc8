// Package driver runs a fleet of crawler engines, one seed each, and keeps a
// failing engine from taking the others down.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omarathon/riot-api-crawler/internal/crawler"
	"github.com/omarathon/riot-api-crawler/internal/league"
)

// ErrPanic wraps a panic recovered from an engine.
var ErrPanic = errors.New("crawler panicked")

// Runner is the engine surface the driver needs. *crawler.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, seed league.Summoner) (crawler.Result, error)
}

// Resolver turns a display name into a summoner. platform.Client satisfies it.
type Resolver interface {
	Summoner(ctx context.Context, name string) (league.Summoner, error)
}

// Job pairs an engine with its seed. When Seed is zero, SeedName is resolved
// through Options.Resolver inside the job.
type Job struct {
	Name     string
	Engine   Runner
	Seed     league.Summoner
	SeedName string
}

// Options tune Run.
type Options struct {
	// Parallelism caps concurrently running engines. Zero means all at once.
	Parallelism int
	Resolver    Resolver
	Logger      *zap.Logger
	// OnOutcome is called once per job as soon as it finishes.
	OnOutcome func(Outcome)
}

// Outcome is the final report of one job.
type Outcome struct {
	Name   string
	Seed   league.Summoner
	Result crawler.Result
	Err    error
}

// Halted reports whether the engine was stopped on purpose.
func (o Outcome) Halted() bool {
	return errors.Is(o.Err, crawler.ErrHalted)
}

// Failed reports whether the job ended with an error other than a halt.
func (o Outcome) Failed() bool {
	return o.Err != nil && !o.Halted()
}

// Status is completed, halted, or failed.
func (o Outcome) Status() string {
	switch {
	case o.Halted():
		return "halted"
	case o.Err != nil:
		return "failed"
	default:
		return "completed"
	}
}

// Run executes every job and returns their outcomes in job order. It never
// fails as a whole; each job's error is reported in its Outcome.
func Run(ctx context.Context, jobs []Job, opts Options) []Outcome {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("driver")

	outcomes := make([]Outcome, len(jobs))
	var g errgroup.Group
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	}
	for i, job := range jobs {
		g.Go(func() error {
			out := runJob(ctx, job, opts.Resolver)
			outcomes[i] = out
			logOutcome(logger, out)
			if opts.OnOutcome != nil {
				opts.OnOutcome(out)
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func runJob(ctx context.Context, job Job, resolver Resolver) (out Outcome) {
	out = Outcome{Name: job.Name, Seed: job.Seed}
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("%w: %s: %v\n%s", ErrPanic, job.Name, r, debug.Stack())
		}
	}()

	if job.Engine == nil {
		out.Err = fmt.Errorf("job %s has no engine", job.Name)
		return out
	}
	if out.Seed.ID == "" {
		seed, err := resolveSeed(ctx, resolver, job.SeedName)
		if err != nil {
			out.Err = err
			return out
		}
		out.Seed = seed
	}
	out.Result, out.Err = job.Engine.Run(ctx, out.Seed)
	return out
}

func resolveSeed(ctx context.Context, resolver Resolver, name string) (league.Summoner, error) {
	if strings.TrimSpace(name) == "" {
		return league.Summoner{}, errors.New("job has neither a seed nor a seed name")
	}
	if resolver == nil {
		return league.Summoner{}, fmt.Errorf("resolve seed %q: no resolver configured", name)
	}
	s, err := resolver.Summoner(ctx, name)
	if err != nil {
		return league.Summoner{}, fmt.Errorf("resolve seed %q: %w", name, err)
	}
	return s, nil
}

func logOutcome(logger *zap.Logger, out Outcome) {
	fields := []zap.Field{
		zap.String("crawler", out.Name),
		zap.String("seed", out.Seed.String()),
		zap.String("status", out.Status()),
		zap.Int("visited", out.Result.Visited),
		zap.Int("matches_emitted", out.Result.MatchesEmitted),
	}
	switch {
	case out.Failed():
		logger.Error("crawler failed", append(fields, zap.Error(out.Err))...)
	case out.Halted():
		logger.Info("crawler halted", append(fields, zap.String("reason", out.Result.HaltReason))...)
	default:
		logger.Info("crawler completed", fields...)
	}
}

// Summary counts outcomes by status.
type Summary struct {
	Completed int
	Halted    int
	Failed    int
}

// Summarize tallies outcomes.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch {
		case o.Failed():
			s.Failed++
		case o.Halted():
			s.Halted++
		default:
			s.Completed++
		}
	}
	return s
}
