package sink_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarathon/riot-api-crawler/internal/sink"
	"github.com/omarathon/riot-api-crawler/internal/sink/memory"
)

func TestInstrumentWrapsFailures(t *testing.T) {
	t.Parallel()

	mem := memory.New()
	boom := errors.New("permission denied")
	mem.FailKey("GOLD/1", boom)
	s := sink.Instrument("memory", mem)

	require.NoError(t, s.Write(context.Background(), sink.Record{Key: "GOLD/2", Body: []byte("{}")}))

	err := s.Write(context.Background(), sink.Record{Key: "GOLD/1"})
	var we *sink.WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "GOLD/1", we.Key)
	assert.Equal(t, "memory", we.Backend)
	assert.ErrorIs(t, err, boom)
	require.NoError(t, s.Close(context.Background()))
}

func TestMultiAttemptsEverySink(t *testing.T) {
	t.Parallel()

	a, b := memory.New(), memory.New()
	a.FailKey("k", errors.New("a down"))
	s := sink.Multi(a, b)

	err := s.Write(context.Background(), sink.Record{Key: "k"})
	require.Error(t, err)
	assert.Equal(t, []string{"k"}, b.Keys(), "healthy sink still receives the record")
	assert.Equal(t, 1, a.Writes())

	single := sink.Multi(a)
	assert.Same(t, a, single)
}

func TestMemorySinkKeepsFirstWrite(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, sink.Record{Key: "k", Body: []byte("first")}))
	require.NoError(t, s.Write(ctx, sink.Record{Key: "k", Body: []byte("second")}))
	require.ErrorIs(t, s.Write(ctx, sink.Record{}), sink.ErrEmptyKey)

	recs := s.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "first", string(recs[0].Body))

	require.NoError(t, s.Close(ctx))
	require.ErrorIs(t, s.Write(ctx, sink.Record{Key: "z"}), memory.ErrClosed)
}

func TestAsWriteError(t *testing.T) {
	t.Parallel()

	require.NoError(t, sink.AsWriteError("k", nil))
	first := sink.AsWriteError("k", errors.New("x"))
	var we *sink.WriteError
	require.ErrorAs(t, first, &we)
	assert.Same(t, first, sink.AsWriteError("other", first))
}
