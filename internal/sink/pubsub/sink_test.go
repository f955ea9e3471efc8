package pubsub

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarathon/riot-api-crawler/internal/sink"
)

type message struct {
	data  []byte
	attrs map[string]string
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []message
	err      error
	stopped  bool
}

func (f *fakePublisher) Publish(_ context.Context, data []byte, attrs map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.messages = append(f.messages, message{data: data, attrs: attrs})
	return "msg-1", nil
}

func (f *fakePublisher) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func TestWritePublishesAttributes(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	s := NewWithPublisher(pub)
	rec := sink.Record{
		Key:         "gold/EUW1_1",
		ContentType: "application/json",
		Body:        []byte(`{"v":1}`),
		Attributes:  map[string]string{"crawler": "gold", "match_id": "EUW1_1"},
	}
	require.NoError(t, s.Write(context.Background(), rec))

	require.Len(t, pub.messages, 1)
	msg := pub.messages[0]
	assert.JSONEq(t, `{"v":1}`, string(msg.data))
	assert.Equal(t, map[string]string{
		"crawler":      "gold",
		"match_id":     "EUW1_1",
		"key":          "gold/EUW1_1",
		"content_type": "application/json",
	}, msg.attrs)
	assert.Len(t, rec.Attributes, 2, "record attributes must not be mutated")

	require.NoError(t, s.Close(context.Background()))
	assert.True(t, pub.stopped)
}

func TestWriteSurfacesPublishError(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{err: errors.New("topic not found")}
	err := NewWithPublisher(pub).Write(context.Background(), sink.Record{Key: "k", Body: []byte("{}")})
	require.ErrorIs(t, err, pub.err)
}

func TestWriteRequiresPublisherAndKey(t *testing.T) {
	t.Parallel()

	require.Error(t, NewWithPublisher(nil).Write(context.Background(), sink.Record{Key: "k"}))
	require.ErrorIs(t, NewWithPublisher(&fakePublisher{}).Write(context.Background(), sink.Record{}), sink.ErrEmptyKey)

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
