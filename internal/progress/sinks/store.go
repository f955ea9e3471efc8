package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omarathon/riot-api-crawler/internal/progress"
	"github.com/omarathon/riot-api-crawler/internal/store"
)

// StoreSink persists runs through a store.RunRepository. Counter events are
// collapsed per run so each batch costs at most one update per run.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

type pendingCounts struct {
	counts store.Counts
	at     time.Time
}

// Consume applies the batch in order. A run's pending counts are flushed
// before it is finished.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	pending := make(map[uuid.UUID]*pendingCounts)
	var order []uuid.UUID

	add := func(id uuid.UUID, at time.Time, fn func(c *store.Counts)) {
		p, ok := pending[id]
		if !ok {
			p = &pendingCounts{}
			pending[id] = p
			order = append(order, id)
		}
		fn(&p.counts)
		if at.After(p.at) {
			p.at = at
		}
	}

	for _, evt := range batch {
		id := evt.RunUUID()
		switch evt.Stage {
		case progress.StageCrawlStart:
			if err := s.repo.StartRun(ctx, id, evt.Crawler, evt.TS); err != nil {
				return fmt.Errorf("start run: %w", err)
			}
		case progress.StageSummonerAccepted:
			add(id, evt.TS, func(c *store.Counts) { c.SummonersAccepted++ })
		case progress.StageSummonerRejected:
			add(id, evt.TS, func(c *store.Counts) { c.SummonersRejected++ })
		case progress.StageMatchAccepted:
			add(id, evt.TS, func(c *store.Counts) { c.MatchesAccepted++ })
		case progress.StageMatchRejected:
			add(id, evt.TS, func(c *store.Counts) { c.MatchesRejected++ })
		case progress.StageCrawlError:
			add(id, evt.TS, func(c *store.Counts) { c.Errors++ })
		case progress.StageRunFinished:
			if err := s.flush(ctx, id, pending[id]); err != nil {
				return err
			}
			delete(pending, id)
			if err := s.finish(ctx, id, evt); err != nil {
				return err
			}
		}
	}
	for _, id := range order {
		if err := s.flush(ctx, id, pending[id]); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreSink) flush(ctx context.Context, id uuid.UUID, p *pendingCounts) error {
	if p == nil || p.counts.IsZero() {
		return nil
	}
	if err := s.repo.AddCounts(ctx, id, p.counts, p.at); err != nil {
		return fmt.Errorf("add run counts: %w", err)
	}
	return nil
}

func (s *StoreSink) finish(ctx context.Context, id uuid.UUID, evt progress.Event) error {
	var status store.RunStatus
	switch evt.Outcome {
	case progress.OutcomeCompleted:
		status = store.RunCompleted
	case progress.OutcomeHalted:
		status = store.RunHalted
	default:
		status = store.RunFailed
	}
	var reason *string
	if evt.Note != "" {
		reason = &evt.Note
	}
	if err := s.repo.FinishRun(ctx, id, evt.TS, status, reason); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
