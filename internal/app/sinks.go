package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/omarathon/riot-api-crawler/internal/config"
	"github.com/omarathon/riot-api-crawler/internal/sink"
	gcssink "github.com/omarathon/riot-api-crawler/internal/sink/gcs"
	localsink "github.com/omarathon/riot-api-crawler/internal/sink/local"
	memorysink "github.com/omarathon/riot-api-crawler/internal/sink/memory"
	pgsink "github.com/omarathon/riot-api-crawler/internal/sink/postgres"
	pubsubsink "github.com/omarathon/riot-api-crawler/internal/sink/pubsub"
	"github.com/omarathon/riot-api-crawler/internal/sink/rtdb"
	"github.com/omarathon/riot-api-crawler/internal/sink/sqlite"
)

// setupSinks opens every configured backend and fans records out to all of
// them. Each backend is instrumented under its own name.
func setupSinks(ctx context.Context, cfg config.Config, o options, logger *zap.Logger) (sink.Sink, error) {
	if o.records != nil {
		return sink.Instrument("custom", o.records), nil
	}
	opened := make([]sink.Sink, 0, len(cfg.Sink.Backends))
	for _, backend := range cfg.Sink.Backends {
		s, err := openSink(ctx, backend, cfg.Sink, logger)
		if err != nil {
			for _, prev := range opened {
				_ = prev.Close(ctx)
			}
			return nil, fmt.Errorf("%s sink init failed: %w", backend, err)
		}
		opened = append(opened, sink.Instrument(backend, s))
	}
	if len(opened) == 0 {
		return nil, fmt.Errorf("no sink backends configured")
	}
	return sink.Multi(opened...), nil
}

func openSink(ctx context.Context, backend string, cfg config.SinkConfig, logger *zap.Logger) (sink.Sink, error) {
	switch backend {
	case config.BackendMemory:
		logger.Info("using in-memory record sink")
		return memorysink.New(), nil
	case config.BackendLocal:
		logger.Info("using local record sink", zap.String("path", cfg.Local.BaseDir))
		return localsink.New(localsink.Config{BaseDir: cfg.Local.BaseDir})
	case config.BackendRTDB:
		logger.Info("using realtime database record sink",
			zap.String("url", cfg.RTDB.URL),
			zap.String("node", cfg.RTDB.Node),
		)
		return rtdb.New(rtdb.Config{
			URL:     cfg.RTDB.URL,
			Node:    cfg.RTDB.Node,
			Secret:  cfg.RTDB.Secret,
			Timeout: time.Duration(cfg.RTDB.TimeoutSeconds) * time.Second,
		}, logger.Named("rtdb"))
	case config.BackendPostgres:
		s, err := pgsink.New(ctx, pgsink.Config{DSN: cfg.Postgres.DSN, Table: cfg.Postgres.Table})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		logger.Info("using postgres record sink", zap.String("table", cfg.Postgres.Table))
		return s, nil
	case config.BackendSQLite:
		logger.Info("using sqlite record sink", zap.String("path", cfg.SQLite.Path))
		return sqlite.New(ctx, sqlite.Config{Path: cfg.SQLite.Path}, logger.Named("sqlite"))
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		s, err := gcssink.New(client, gcssink.Config{Bucket: cfg.GCS.Bucket, Prefix: cfg.GCS.Prefix})
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		logger.Info("using GCS record sink", zap.String("bucket", cfg.GCS.Bucket))
		return s, nil
	case config.BackendPubSub:
		logger.Info("using Pub/Sub record sink",
			zap.String("project", cfg.PubSub.ProjectID),
			zap.String("topic", cfg.PubSub.Topic),
		)
		return pubsubsink.New(ctx, pubsubsink.Config{ProjectID: cfg.PubSub.ProjectID, Topic: cfg.PubSub.Topic})
	default:
		return nil, fmt.Errorf("unknown sink backend %q", backend)
	}
}
