// Package sink defines the write-once record store that accepted matches end
// up in, plus helpers shared by the concrete backends.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/omarathon/riot-api-crawler/internal/metrics"
)

// Record is one serialized output unit.
type Record struct {
	// Key uniquely names the record, e.g. "GOLD/EUW1_123".
	Key         string
	ContentType string
	Body        []byte
	// Attributes carry routing metadata (crawler, match id) for backends that
	// support it.
	Attributes map[string]string
}

// Sink stores records. Writing an existing key is not an error; backends keep
// the first write.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close(ctx context.Context) error
}

// WriteError reports a failed write of one record.
type WriteError struct {
	Key     string
	Backend string
	Err     error
}

func (e *WriteError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("sink %s write %s: %v", e.Backend, e.Key, e.Err)
	}
	return fmt.Sprintf("sink write %s: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// AsWriteError wraps err for key unless it already is a WriteError.
func AsWriteError(key string, err error) error {
	if err == nil {
		return nil
	}
	var we *WriteError
	if errors.As(err, &we) {
		return err
	}
	return &WriteError{Key: key, Err: err}
}

// ErrEmptyKey is returned for records without a key.
var ErrEmptyKey = errors.New("record key is empty")

// Validate checks the fields every backend relies on.
func (r Record) Validate() error {
	if r.Key == "" {
		return ErrEmptyKey
	}
	return nil
}

type instrumented struct {
	backend string
	next    Sink
}

// Instrument records write outcomes for next under backend and wraps its
// failures as WriteError.
func Instrument(backend string, next Sink) Sink {
	return &instrumented{backend: backend, next: next}
}

func (s *instrumented) Write(ctx context.Context, rec Record) error {
	err := s.next.Write(ctx, rec)
	if err != nil {
		metrics.ObserveSinkWrite(s.backend, "error")
		var we *WriteError
		if errors.As(err, &we) {
			if we.Backend == "" {
				we.Backend = s.backend
			}
			return we
		}
		return &WriteError{Key: rec.Key, Backend: s.backend, Err: err}
	}
	metrics.ObserveSinkWrite(s.backend, "success")
	return nil
}

func (s *instrumented) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}

type multi []Sink

// Multi writes every record to each sink. All sinks are attempted; failures
// are joined.
func Multi(sinks ...Sink) Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return multi(sinks)
}

func (m multi) Write(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &WriteError{Key: rec.Key, Err: errors.Join(errs...)}
	}
	return nil
}

func (m multi) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
