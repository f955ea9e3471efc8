// Package memory is an ordered in-process sink for tests and dry runs.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/omarathon/riot-api-crawler/internal/sink"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("sink closed")

// Sink keeps records in write order. The first write of a key wins.
type Sink struct {
	mu      sync.Mutex
	records []sink.Record
	keys    map[string]struct{}
	writes  int
	failFor map[string]error
	closed  bool
}

// New returns an empty Sink.
func New() *Sink {
	return &Sink{keys: make(map[string]struct{}), failFor: make(map[string]error)}
}

// FailKey makes writes of key return err.
func (s *Sink) FailKey(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFor[key] = err
}

// Write stores rec unless its key already exists.
func (s *Sink) Write(_ context.Context, rec sink.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.closed {
		return ErrClosed
	}
	if err, ok := s.failFor[rec.Key]; ok {
		return err
	}
	if _, dup := s.keys[rec.Key]; dup {
		return nil
	}
	s.keys[rec.Key] = struct{}{}
	rec.Body = append([]byte(nil), rec.Body...)
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of the stored records in write order.
func (s *Sink) Records() []sink.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sink.Record(nil), s.records...)
}

// Keys returns stored keys in write order.
func (s *Sink) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Key)
	}
	return out
}

// Writes counts every Write call, including failed and duplicate ones.
func (s *Sink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Close marks the sink closed.
func (s *Sink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
