// Package app is the composition root: it builds the engine fleet and its
// collaborators from configuration, runs it, and shuts everything down.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/omarathon/riot-api-crawler/internal/api"
	"github.com/omarathon/riot-api-crawler/internal/clock/system"
	"github.com/omarathon/riot-api-crawler/internal/config"
	"github.com/omarathon/riot-api-crawler/internal/crawler"
	"github.com/omarathon/riot-api-crawler/internal/driver"
	"github.com/omarathon/riot-api-crawler/internal/elo"
	"github.com/omarathon/riot-api-crawler/internal/filter"
	"github.com/omarathon/riot-api-crawler/internal/id/uuid"
	"github.com/omarathon/riot-api-crawler/internal/listener"
	"github.com/omarathon/riot-api-crawler/internal/logging"
	"github.com/omarathon/riot-api-crawler/internal/metrics"
	"github.com/omarathon/riot-api-crawler/internal/output"
	"github.com/omarathon/riot-api-crawler/internal/platform"
	"github.com/omarathon/riot-api-crawler/internal/progress"
	progresssinks "github.com/omarathon/riot-api-crawler/internal/progress/sinks"
	"github.com/omarathon/riot-api-crawler/internal/rank"
	"github.com/omarathon/riot-api-crawler/internal/sink"
	"github.com/omarathon/riot-api-crawler/internal/store"
	memorystore "github.com/omarathon/riot-api-crawler/internal/store/memory"
	pgstore "github.com/omarathon/riot-api-crawler/internal/store/postgres"
)

const shutdownTimeout = 10 * time.Second

// Option customises Build and NewRanker.
type Option func(*options)

type options struct {
	platform   platform.Client
	records    sink.Sink
	registerer prometheus.Registerer
	logger     *zap.Logger
}

// WithPlatform replaces the Riot client, e.g. with an in-memory graph.
func WithPlatform(c platform.Client) Option {
	return func(o *options) { o.platform = c }
}

// WithRecordSink replaces the configured sink backends.
func WithRecordSink(s sink.Sink) Option {
	return func(o *options) { o.records = s }
}

// WithRegisterer registers progress collectors against reg instead of the
// default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithLogger replaces the logger built from configuration.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.registerer == nil {
		o.registerer = prometheus.DefaultRegisterer
	}
	return o
}

// App contains the fleet and the resources it owns.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	platform  *platformDeps
	records   sink.Sink
	runs      store.RunRepository
	pgRuns    *pgstore.RunStore
	hub       *progress.Hub
	clock     *system.Clock
	engines   []*crawler.Engine
	jobs      []driver.Job
	apiServer *api.Server
}

// Build creates the application's dependencies. Nothing is fetched until Run.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := collect(opts)
	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging.Development)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		zap.ReplaceGlobals(logger)
	}
	metrics.Init()

	app := &App{cfg: cfg, logger: logger, clock: system.New()}
	logger.Info("building application dependencies",
		zap.String("region", cfg.Platform.Region),
		zap.Strings("sink_backends", cfg.Sink.Backends),
		zap.Int("parallelism", cfg.Crawler.Parallelism),
		zap.Bool("halt_on_end", cfg.Crawler.HaltOnEnd),
	)

	var err error
	defer func() {
		if err != nil {
			app.closeInfrastructure(context.Background())
		}
	}()

	app.platform, err = setupPlatform(cfg, o, logger)
	if err != nil {
		return nil, err
	}
	if app.records, err = setupSinks(ctx, cfg, o, logger); err != nil {
		return nil, err
	}
	if err = app.setupRunStore(ctx); err != nil {
		return nil, err
	}
	if err = app.setupProgress(o.registerer); err != nil {
		return nil, err
	}
	if err = app.setupEngines(); err != nil {
		return nil, err
	}

	if cfg.Server.Enabled {
		crawlers := make([]api.Crawler, 0, len(app.engines))
		for _, e := range app.engines {
			crawlers = append(crawlers, e)
		}
		deps := api.Deps{
			Crawlers: crawlers,
			Runs:     app.runs,
			Auth:     cfg.Auth,
			Logger:   logger,
		}
		if app.platform.riot != nil {
			deps.RateLimits = app.platform.riot
		}
		app.apiServer = api.NewServer(deps)
	}
	return app, nil
}

// Engines returns the fleet in configuration order.
func (a *App) Engines() []*crawler.Engine {
	return a.engines
}

// Runs returns the run repository progress is persisted to.
func (a *App) Runs() store.RunRepository {
	return a.runs
}

// Handler returns the API handler, or nil when the server is disabled.
func (a *App) Handler() http.Handler {
	if a.apiServer == nil {
		return nil
	}
	return a.apiServer.Handler()
}

// Run starts the API server if enabled, drives every engine to completion,
// and logs the outcome of each. SIGINT and SIGTERM cancel the crawl; engines
// finish their current summoner before stopping.
func (a *App) Run(ctx context.Context) ([]driver.Outcome, error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if a.apiServer != nil {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
			Handler:           a.apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server error", zap.Error(err))
				stop()
			}
		}()
	}

	a.logger.Info("crawl started", zap.Int("engines", len(a.jobs)))
	outcomes := driver.Run(ctx, a.jobs, driver.Options{
		Parallelism: a.cfg.Crawler.Parallelism,
		Resolver:    a.platform.client,
		Logger:      a.logger,
		OnOutcome:   driver.ReportProgress(a.emitter(), a.clock),
	})
	summary := driver.Summarize(outcomes)
	a.logger.Info("crawl finished",
		zap.Int("completed", summary.Completed),
		zap.Int("halted", summary.Halted),
		zap.Int("failed", summary.Failed),
	)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.Error(err))
		}
	}
	return outcomes, ctx.Err()
}

// Close flushes progress and releases every backend.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure(ctx)
	a.logger.Info("shutdown complete")
	logging.Sync(a.logger)
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
		a.hub = nil
	}
	if a.records != nil {
		if err := a.records.Close(ctx); err != nil {
			a.logger.Warn("record sink close failed", zap.Error(err))
		}
		a.records = nil
	}
	if a.pgRuns != nil {
		a.pgRuns.Close()
		a.pgRuns = nil
	}
	if a.platform != nil {
		if err := a.platform.close(); err != nil {
			a.logger.Warn("rank cache close failed", zap.Error(err))
		}
		a.platform = nil
	}
}

func (a *App) setupRunStore(ctx context.Context) error {
	if a.cfg.Database.DSN == "" {
		a.logger.Info("no database DSN configured, keeping runs in memory")
		a.runs = memorystore.NewRunStore()
		return nil
	}
	runs, err := pgstore.NewRunStore(ctx, a.cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("run store init failed: %w", err)
	}
	a.pgRuns = runs
	if err := runs.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("run store schema: %w", err)
	}
	a.runs = runs
	a.logger.Info("postgres run store initialized")
	return nil
}

func (a *App) setupProgress(reg prometheus.Registerer) error {
	if !a.cfg.Progress.Enabled {
		a.logger.Info("progress tracking disabled")
		return nil
	}
	sinkList := []progress.Sink{
		progresssinks.NewStoreSink(a.runs, a.logger.Named("progress_store")),
	}
	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("progress metrics init failed: %w", err)
	}
	sinkList = append(sinkList, promSink)
	if a.cfg.Progress.LogEnabled {
		sinkList = append(sinkList, progresssinks.NewLogSink(a.logger.Named("progress_log")))
		a.logger.Debug("added progress log sink")
	}
	hubCfg := progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.Batch.MaxEvents,
		MaxBatchWait:   time.Duration(a.cfg.Progress.Batch.MaxWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(a.cfg.Progress.SinkTimeoutMs) * time.Millisecond,
		Logger:         a.logger.Named("progress_hub"),
	}
	a.hub = progress.NewHub(hubCfg, sinkList...)
	a.logger.Info("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Duration("sink_timeout", hubCfg.SinkTimeout),
	)
	return nil
}

// emitter returns the hub as an Emitter, or nil when progress is disabled.
func (a *App) emitter() progress.Emitter {
	if a.hub == nil {
		return nil
	}
	return a.hub
}

func (a *App) setupEngines() error {
	seeds, err := a.cfg.Seeds()
	if err != nil {
		return err
	}
	queues, err := a.cfg.Queues()
	if err != nil {
		return err
	}
	summoners := a.platform.estimator
	matches := elo.NewCommonMatchEstimator(summoners, a.cfg.TieBreak())
	ids := uuid.NewUUIDGenerator()
	filterLogger := a.logger.Named("filter")

	// Records are only written for matches in the configured queues.
	handler := output.Filtering(
		filter.QueueMatchFilter(queues...),
		output.WithElo(matches, output.Write(output.JSONFormatter{}, a.records)),
	)

	for _, seed := range seeds {
		name := strings.ToLower(seed.Tier.String())
		tier := rank.Spanning(seed.Tier)

		var l crawler.Listener = listener.Multi(
			listener.Logging(a.logger),
			listener.Progress(a.emitter(), a.clock),
		)
		if a.cfg.Crawler.HaltOnEnd {
			l = listener.Halting(l)
		}

		engine, err := crawler.New(name, crawler.Config{
			SummonerFilter:     filter.EloSummonerFilter(tier, summoners, filterLogger),
			MatchFilter:        filter.EloMatchFilter(tier, matches, filterLogger),
			MatchesPerSummoner: a.cfg.Crawler.MatchesPerSummoner,
			MaxSummoners:       a.cfg.Crawler.MaxSummoners,
		}, crawler.Deps{
			History:  a.platform.client,
			Handler:  handler,
			Listener: l,
			Clock:    a.clock,
			IDs:      ids,
			Logger:   a.logger,
		})
		if err != nil {
			return fmt.Errorf("build engine: %w", err)
		}
		a.engines = append(a.engines, engine)
		a.jobs = append(a.jobs, driver.Job{Name: name, Engine: engine, SeedName: seed.Name})
		a.logger.Debug("engine configured", zap.String("crawler", name), zap.String("seed", seed.Name))
	}
	return nil
}
