package rediscache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/platform"
	"github.com/omarathon/riot-api-crawler/internal/rank"
)

var _ platform.RankStore = (*Store)(nil)

type fakeRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
	setErr error
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.values[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	fake := newFakeRedis()
	store := newStore(fake, "test")
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "ranks:euw1:a")
	require.NoError(t, err)
	require.False(t, ok)

	want := map[league.Queue]rank.Rank{
		league.QueueRankedSolo: rank.New(rank.Diamond, rank.DivisionIII),
	}
	require.NoError(t, store.Set(ctx, "ranks:euw1:a", want, time.Hour))
	assert.Equal(t, time.Hour, fake.ttls["{test}:ranks:euw1:a"])

	got, ok, err := store.Get(ctx, "ranks:euw1:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, store.Close())
	assert.True(t, fake.closed)
}

func TestStoreEmptyMapMeansUnranked(t *testing.T) {
	t.Parallel()

	store := newStore(newFakeRedis(), "")
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", map[league.Queue]rank.Rank{}, -time.Second))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got)
}

func TestStoreSurfacesErrors(t *testing.T) {
	t.Parallel()

	fake := newFakeRedis()
	fake.setErr = errors.New("READONLY")
	store := newStore(fake, "")
	err := store.Set(context.Background(), "k", nil, time.Minute)
	require.ErrorContains(t, err, "READONLY")

	fake.values["{riot-api-crawler}:bad"] = "not json"
	_, _, err = store.Get(context.Background(), "bad")
	require.Error(t, err)
}
