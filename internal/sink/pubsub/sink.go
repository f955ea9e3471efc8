// Package pubsub publishes records to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"fmt"
	"maps"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/omarathon/riot-api-crawler/internal/sink"
)

// Config names the topic.
type Config struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Publisher sends one message and waits for the server id.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
	Stop()
}

// Sink publishes each record as one message. The record key travels in the
// "key" attribute next to the record's own attributes.
type Sink struct {
	publisher Publisher
	client    *pubsub.Client
}

// New connects a client for cfg.ProjectID and publishes to cfg.Topic.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.ProjectID == "" || cfg.Topic == "" {
		return nil, fmt.Errorf("pubsub project_id and topic are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	s := NewWithPublisher(&topicPublisher{publisher: client.Publisher(cfg.Topic)})
	s.client = client
	return s, nil
}

// NewWithPublisher wraps an existing publisher (primarily for testing).
func NewWithPublisher(p Publisher) *Sink {
	return &Sink{publisher: p}
}

// Write publishes rec and waits for the acknowledgement.
func (s *Sink) Write(ctx context.Context, rec sink.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if s.publisher == nil {
		return fmt.Errorf("pubsub publisher is not configured")
	}
	attrs := make(map[string]string, len(rec.Attributes)+2)
	maps.Copy(attrs, rec.Attributes)
	attrs["key"] = rec.Key
	if rec.ContentType != "" {
		attrs["content_type"] = rec.ContentType
	}
	if _, err := s.publisher.Publish(ctx, rec.Body, attrs); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the client.
func (s *Sink) Close(context.Context) error {
	if s.publisher != nil {
		s.publisher.Stop()
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
	}
	return nil
}

type topicPublisher struct {
	publisher *pubsub.Publisher
}

func (p *topicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	result := p.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	return result.Get(ctx)
}

func (p *topicPublisher) Stop() {
	p.publisher.Stop()
}
