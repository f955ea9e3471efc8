package rtdb

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarathon/riot-api-crawler/internal/sink"
)

type fakeDB struct {
	mu      sync.Mutex
	data    map[string]string
	queries []string
}

func newFakeDB(t *testing.T) (*fakeDB, *httptest.Server) {
	t.Helper()
	db := &fakeDB{data: make(map[string]string)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		db.mu.Lock()
		defer db.mu.Unlock()
		db.queries = append(db.queries, r.URL.RawQuery)
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Query().Get("auth") == "bad" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"Permission denied"}`)
			return
		}
		if _, ok := db.data[r.URL.Path]; ok && r.Header.Get("If-Match") == nullETag {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		db.data[r.URL.Path] = string(body)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return db, srv
}

func TestNewValidatesURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{URL: "not a url"}, nil)
	require.Error(t, err)
	_, err = New(Config{}, nil)
	require.Error(t, err)
}

func TestEndpoint(t *testing.T) {
	t.Parallel()

	s, err := New(Config{URL: "https://example.firebasedatabase.app/", Node: "crawler", Secret: "s3cr3t"}, nil)
	require.NoError(t, err)
	assert.Equal(t,
		"https://example.firebasedatabase.app/crawler/gold/EUW1_123.json?auth=s3cr3t",
		s.Endpoint("gold/EUW1_123"))
	assert.Equal(t,
		"https://example.firebasedatabase.app/crawler/a_b_c_/d.json?auth=s3cr3t",
		s.Endpoint("a.b#c$//d"))
}

func TestWriteFirstWins(t *testing.T) {
	t.Parallel()

	db, srv := newFakeDB(t)
	s, err := New(Config{URL: srv.URL, Node: "crawler"}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, sink.Record{Key: "gold/EUW1_1", Body: []byte(`{"v":1}`)}))
	require.NoError(t, s.Write(ctx, sink.Record{Key: "gold/EUW1_1", Body: []byte(`{"v":2}`)}))

	db.mu.Lock()
	defer db.mu.Unlock()
	assert.JSONEq(t, `{"v":1}`, db.data["/crawler/gold/EUW1_1.json"])
	require.NoError(t, s.Close(ctx))
}

func TestWriteWrapsNonJSONBody(t *testing.T) {
	t.Parallel()

	db, srv := newFakeDB(t)
	s, err := New(Config{URL: srv.URL}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), sink.Record{Key: "note", Body: []byte("plain text")}))

	db.mu.Lock()
	defer db.mu.Unlock()
	assert.Equal(t, `"plain text"`, db.data["/note.json"])
}

func TestWriteReportsServerError(t *testing.T) {
	t.Parallel()

	_, srv := newFakeDB(t)
	s, err := New(Config{URL: srv.URL, Node: "crawler", Secret: "bad"}, nil)
	require.NoError(t, err)

	err = s.Write(context.Background(), sink.Record{Key: "gold/EUW1_1", Body: []byte(`{}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "Permission denied")
}

func TestWriteRequiresKey(t *testing.T) {
	t.Parallel()

	s, err := New(Config{URL: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)
	require.ErrorIs(t, s.Write(context.Background(), sink.Record{}), sink.ErrEmptyKey)
}
