// Package local writes records as JSON files on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/omarathon/riot-api-crawler/internal/sink"
)

// Config captures the parameters for the local filesystem sink.
type Config struct {
	// BaseDir is the root directory where records will be stored.
	BaseDir string `mapstructure:"base_dir"`
}

// Sink writes one file per record key under BaseDir.
type Sink struct {
	baseDir string
}

// New creates the base directory if needed and checks that it is writable.
func New(cfg Config) (*Sink, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}
	return &Sink{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

// Path returns the file a key is written to, rejecting keys that escape BaseDir.
func (s *Sink) Path(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", sink.ErrEmptyKey
	}
	full := filepath.Clean(filepath.Join(s.baseDir, key+".json"))
	if !strings.HasPrefix(full, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected in key %q", key)
	}
	return full, nil
}

// Write creates the record file. An existing file is left untouched.
func (s *Sink) Write(_ context.Context, rec sink.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	path, err := s.Path(rec.Key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) // #nosec G304 -- path checked above
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := f.Write(rec.Body); err != nil {
		closeErr := f.Close()
		return fmt.Errorf("write file: %w", errors.Join(err, closeErr))
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

// Close implements sink.Sink; files are closed after each write.
func (s *Sink) Close(context.Context) error {
	return nil
}
