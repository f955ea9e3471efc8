package sinks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/omarathon/riot-api-crawler/internal/progress"
)

// PrometheusSink turns progress events into per-crawler counters.
type PrometheusSink struct {
	summoners   *prometheus.CounterVec
	matches     *prometheus.CounterVec
	errors      *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runsActive  prometheus.Gauge
	runDuration *prometheus.HistogramVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		summoners: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_progress_summoners_total",
			Help: "Summoners dequeued, partitioned by crawler and filter verdict.",
		}, []string{"crawler", "verdict"}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_progress_matches_total",
			Help: "Matches considered, partitioned by crawler and filter verdict.",
		}, []string{"crawler", "verdict"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_progress_errors_total",
			Help: "Recovered fetch and sink errors per crawler.",
		}, []string{"crawler"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_progress_runs_total",
			Help: "Finished runs partitioned by crawler and outcome.",
		}, []string{"crawler", "outcome"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_progress_runs_active",
			Help: "Runs that have started but not finished.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_progress_run_duration_seconds",
			Help:    "Wall time per finished run.",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 21600},
		}, []string{"outcome"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.summoners,
		s.matches,
		s.errors,
		s.runs,
		s.runsActive,
		s.runDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageCrawlStart:
			if s.tracker.start(evt.RunID, evt.TS) {
				s.runsActive.Inc()
			}
		case progress.StageSummonerAccepted:
			s.summoners.WithLabelValues(evt.Crawler, "accepted").Inc()
		case progress.StageSummonerRejected:
			s.summoners.WithLabelValues(evt.Crawler, "rejected").Inc()
		case progress.StageMatchAccepted:
			s.matches.WithLabelValues(evt.Crawler, "accepted").Inc()
		case progress.StageMatchRejected:
			s.matches.WithLabelValues(evt.Crawler, "rejected").Inc()
		case progress.StageCrawlError:
			s.errors.WithLabelValues(evt.Crawler).Inc()
		case progress.StageRunFinished:
			s.runs.WithLabelValues(evt.Crawler, string(evt.Outcome)).Inc()
			if started, ok := s.tracker.finish(evt.RunID); ok {
				s.runsActive.Dec()
				if d := evt.TS.Sub(started); d > 0 {
					s.runDuration.WithLabelValues(string(evt.Outcome)).Observe(d.Seconds())
				}
			}
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	started map[[16]byte]time.Time
}

func newRunTracker() *runTracker {
	return &runTracker{started: make(map[[16]byte]time.Time)}
}

func (t *runTracker) start(id [16]byte, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.started[id]; ok {
		return false
	}
	t.started[id] = at
	return true
}

func (t *runTracker) finish(id [16]byte) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.started[id]
	if ok {
		delete(t.started, id)
	}
	return at, ok
}
