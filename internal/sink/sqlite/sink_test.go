package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarathon/riot-api-crawler/internal/sink"
	"github.com/omarathon/riot-api-crawler/internal/sink/sqlite"
)

func openSink(t *testing.T, path string) *sqlite.Sink {
	t.Helper()
	s, err := sqlite.New(context.Background(), sqlite.Config{Path: path}, nil)
	require.NoError(t, err)
	return s
}

func TestWriteAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openSink(t, filepath.Join(t.TempDir(), "matches.db"))
	t.Cleanup(func() { _ = s.Close(ctx) })

	rec := sink.Record{
		Key:         "gold/EUW1_1",
		ContentType: "application/json",
		Body:        []byte(`{"v":1}`),
		Attributes:  map[string]string{"crawler": "gold", "match_id": "EUW1_1"},
	}
	require.NoError(t, s.Write(ctx, rec))
	require.NoError(t, s.Write(ctx, sink.Record{Key: "gold/EUW1_1", Body: []byte(`{"v":2}`)}))
	require.NoError(t, s.Write(ctx, sink.Record{
		Key:        "iron/EUW1_9",
		Body:       []byte(`{}`),
		Attributes: map[string]string{"crawler": "iron"},
	}))

	got, err := s.Get(ctx, "gold/EUW1_1")
	require.NoError(t, err)
	assert.Len(t, got.ID, 21)
	assert.Equal(t, "gold", got.Crawler)
	assert.Equal(t, "EUW1_1", got.MatchID)
	assert.JSONEq(t, `{"v":1}`, string(got.Body))
	assert.False(t, got.WrittenAt.IsZero())

	total, err := s.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	gold, err := s.Count(ctx, "gold")
	require.NoError(t, err)
	assert.Equal(t, 1, gold)

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, sqlite.ErrNotFound)
}

func TestReopenKeepsRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "matches.db")

	first := openSink(t, path)
	require.NoError(t, first.Write(ctx, sink.Record{Key: "k", Body: []byte(`{}`)}))
	require.NoError(t, first.Close(ctx))

	second := openSink(t, path)
	t.Cleanup(func() { _ = second.Close(ctx) })
	n, err := second.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := sqlite.New(context.Background(), sqlite.Config{}, nil)
	require.Error(t, err)
}
