// Package sqlite stores records in a local SQLite database migrated with goose.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/omarathon/riot-api-crawler/internal/sink"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("record not found")

// Config points at the database file.
type Config struct {
	Path string `mapstructure:"path"`
}

// StoredRecord is a row of the matches table.
type StoredRecord struct {
	ID          string
	Key         string
	Crawler     string
	MatchID     string
	ContentType string
	Body        []byte
	WrittenAt   time.Time
}

// Sink inserts one row per record key.
type Sink struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// New opens the database, applies pragmas, and runs migrations.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("sink.sqlite.path is required")
	}
	logger = logger.Named("sqlite")
	logger.Info("opening database", zap.String("path", cfg.Path))

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := optimize(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Sink{db: db, logger: logger, now: time.Now}, nil
}

func optimize(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"cache_size", "-64000"},
		{"busy_timeout", "5000"},
		{"temp_store", "MEMORY"},
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("set PRAGMA %s: %w", p.name, err)
		}
		logger.Debug("pragma set", zap.String("pragma", p.name), zap.String("value", p.value))
	}
	return nil
}

func migrate(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	fsys, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("migrations applied", zap.Int("count", len(results)))
	return nil
}

// Write inserts rec; an existing key is ignored.
func (s *Sink) Write(ctx context.Context, rec sink.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}
	const query = `
INSERT INTO matches (id, key, crawler, match_id, content_type, body, written_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO NOTHING`
	_, err = s.db.ExecContext(ctx, query,
		id,
		rec.Key,
		rec.Attributes["crawler"],
		rec.Attributes["match_id"],
		rec.ContentType,
		string(rec.Body),
		s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// Get loads the row stored under key.
func (s *Sink) Get(ctx context.Context, key string) (StoredRecord, error) {
	const query = `
SELECT id, key, crawler, match_id, content_type, body, written_at
FROM matches WHERE key = ?`
	var (
		rec  StoredRecord
		body string
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&rec.ID, &rec.Key, &rec.Crawler, &rec.MatchID, &rec.ContentType, &body, &rec.WrittenAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredRecord{}, ErrNotFound
	}
	if err != nil {
		return StoredRecord{}, fmt.Errorf("get match: %w", err)
	}
	rec.Body = []byte(body)
	return rec, nil
}

// Count returns the number of stored rows for crawler, or all rows when
// crawler is empty.
func (s *Sink) Count(ctx context.Context, crawler string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE ? = '' OR crawler = ?`, crawler, crawler,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Sink) Close(context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}
