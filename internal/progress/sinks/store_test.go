package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/omarathon/riot-api-crawler/internal/progress"
	"github.com/omarathon/riot-api-crawler/internal/store"
	"github.com/omarathon/riot-api-crawler/internal/store/memory"
)

// TestStoreSinkPersistsRun collapses counters and finishes the run with its reason.
func TestStoreSinkPersistsRun(t *testing.T) {
	t.Parallel()

	repo := memory.NewRunStore()
	sink := NewStoreSink(repo, nil)
	id := uuid.New()
	runID := progress.UUIDToBytes(id)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	batch := []progress.Event{
		{RunID: runID, TS: start, Stage: progress.StageCrawlStart, Crawler: "gold"},
		{RunID: runID, TS: start.Add(time.Second), Stage: progress.StageSummonerAccepted, Crawler: "gold", Subject: "euw1:A"},
		{RunID: runID, TS: start.Add(2 * time.Second), Stage: progress.StageMatchAccepted, Crawler: "gold", Subject: "EUW1_1"},
		{RunID: runID, TS: start.Add(3 * time.Second), Stage: progress.StageMatchAccepted, Crawler: "gold", Subject: "EUW1_2"},
		{RunID: runID, TS: start.Add(4 * time.Second), Stage: progress.StageMatchRejected, Crawler: "gold", Subject: "EUW1_3"},
		{RunID: runID, TS: start.Add(5 * time.Second), Stage: progress.StageCrawlError, Crawler: "gold", Note: "503"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	run, err := repo.GetRun(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, store.RunRunning, run.Status)
	require.Equal(t, store.Counts{SummonersAccepted: 1, MatchesAccepted: 2, MatchesRejected: 1, Errors: 1}, run.Counts)

	finished := []progress.Event{
		{RunID: runID, TS: start.Add(6 * time.Second), Stage: progress.StageSummonerRejected, Crawler: "gold", Subject: "euw1:B"},
		{
			RunID:   runID,
			TS:      start.Add(7 * time.Second),
			Stage:   progress.StageRunFinished,
			Crawler: "gold",
			Outcome: progress.OutcomeHalted,
			Note:    "end of crawl",
		},
	}
	require.NoError(t, sink.Consume(context.Background(), finished))

	run, err = repo.GetRun(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, store.RunHalted, run.Status)
	require.NotNil(t, run.Reason)
	require.Equal(t, "end of crawl", *run.Reason)
	require.NotNil(t, run.FinishedAt)
	require.Equal(t, int64(1), run.SummonersRejected)
}

// TestStoreSinkHandlesErrors surfaces repository failures back to the caller.
func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	repo := &failingRepo{RunStore: memory.NewRunStore(), err: errors.New("db down")}
	sink := NewStoreSink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())

	err := sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageCrawlStart, Crawler: "gold"},
	})
	require.ErrorIs(t, err, repo.err)
}

// TestStoreSinkUnknownRun reports counts for a run that was never started.
func TestStoreSinkUnknownRun(t *testing.T) {
	t.Parallel()

	sink := NewStoreSink(memory.NewRunStore(), nil)
	err := sink.Consume(context.Background(), []progress.Event{
		{RunID: progress.UUIDToBytes(uuid.New()), TS: time.Now(), Stage: progress.StageMatchAccepted, Crawler: "gold", Subject: "EUW1_1"},
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}

// TestStoreSinkNilRepo is a no-op.
func TestStoreSinkNilRepo(t *testing.T) {
	t.Parallel()

	sink := NewStoreSink(nil, nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{{Stage: progress.StageCrawlStart}}))
}

type failingRepo struct {
	*memory.RunStore
	err error
}

func (r *failingRepo) StartRun(context.Context, uuid.UUID, string, time.Time) error {
	return r.err
}
