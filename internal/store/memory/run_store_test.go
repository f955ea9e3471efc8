package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarathon/riot-api-crawler/internal/store"
)

func TestRunStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewRunStore()
	id := uuid.New()
	start := time.Unix(1700000000, 0).UTC()

	require.NoError(t, s.StartRun(ctx, id, "GOLD", start))
	require.NoError(t, s.StartRun(ctx, id, "IGNORED", start.Add(time.Hour)))
	require.NoError(t, s.AddCounts(ctx, id, store.Counts{SummonersAccepted: 2, MatchesAccepted: 5}, start.Add(time.Second)))
	require.NoError(t, s.AddCounts(ctx, id, store.Counts{MatchesAccepted: 1, Errors: 1}, start.Add(2*time.Second)))

	reason := "listener halted at end of crawl"
	require.NoError(t, s.FinishRun(ctx, id, start.Add(time.Minute), store.RunHalted, &reason))

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "GOLD", run.Crawler)
	assert.Equal(t, store.RunHalted, run.Status)
	assert.Equal(t, int64(6), run.MatchesAccepted)
	assert.Equal(t, int64(1), run.Errors)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, reason, *run.Reason)
}

func TestRunStoreMissingRun(t *testing.T) {
	t.Parallel()

	s := NewRunStore()
	_, err := s.GetRun(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.AddCounts(context.Background(), uuid.New(), store.Counts{Errors: 1}, time.Now()), store.ErrNotFound)
}

func TestRunStoreListRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewRunStore()
	base := time.Unix(1700000000, 0).UTC()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for i, id := range ids {
		require.NoError(t, s.StartRun(ctx, id, "SILVER", base.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, s.FinishRun(ctx, ids[0], base.Add(time.Hour), store.RunCompleted, nil))

	runs, err := s.ListRuns(ctx, nil, 2, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)

	running := store.RunRunning
	runs, err = s.ListRuns(ctx, &running, 10, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = s.ListRuns(ctx, nil, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
