// Package gcs stores each record as an object in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/omarathon/riot-api-crawler/internal/sink"
)

// Config captures the bucket and object prefix.
type Config struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// Bucket is the slice of the storage API the sink uses.
type Bucket interface {
	// Exists reports whether object is present.
	Exists(ctx context.Context, object string) (bool, error)
	// NewWriter opens a writer for object with the given metadata.
	NewWriter(ctx context.Context, object, contentType string, metadata map[string]string) io.WriteCloser
}

// Sink writes <prefix>/<key>.json objects.
type Sink struct {
	bucket Bucket
	name   string
	prefix string
	client *storage.Client
}

// New creates a GCS-backed sink using client.
func New(client *storage.Client, cfg Config) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	s, err := NewWithBucket(&clientBucket{handle: client.Bucket(cfg.Bucket)}, cfg)
	if err != nil {
		return nil, err
	}
	s.client = client
	return s, nil
}

// NewWithBucket builds a sink over an arbitrary Bucket (primarily for testing).
func NewWithBucket(b Bucket, cfg Config) (*Sink, error) {
	if b == nil {
		return nil, fmt.Errorf("bucket is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Sink{bucket: b, name: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// Object returns the object name for key.
func (s *Sink) Object(key string) string {
	return path.Join(s.prefix, key) + ".json"
}

// URI returns the gs:// location of key.
func (s *Sink) URI(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.name, s.Object(key))
}

// Write uploads rec unless the object already exists.
func (s *Sink) Write(ctx context.Context, rec sink.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	object := s.Object(rec.Key)
	exists, err := s.bucket.Exists(ctx, object)
	if err != nil {
		return fmt.Errorf("stat object: %w", err)
	}
	if exists {
		return nil
	}
	w := s.bucket.NewWriter(ctx, object, rec.ContentType, rec.Attributes)
	if _, err := w.Write(rec.Body); err != nil {
		if closeErr := w.Close(); closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// Close closes the storage client when the sink owns one.
func (s *Sink) Close(context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close storage client: %w", err)
	}
	return nil
}

type clientBucket struct {
	handle *storage.BucketHandle
}

func (b *clientBucket) Exists(ctx context.Context, object string) (bool, error) {
	_, err := b.handle.Object(object).Attrs(ctx)
	switch {
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	case err != nil:
		return false, err
	default:
		return true, nil
	}
}

func (b *clientBucket) NewWriter(ctx context.Context, object, contentType string, metadata map[string]string) io.WriteCloser {
	w := b.handle.Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if len(metadata) > 0 {
		w.Metadata = metadata
	}
	return w
}
