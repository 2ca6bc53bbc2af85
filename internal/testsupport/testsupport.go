// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"log/slog"
	"path/filepath"
	"testing"

	"gradescan/internal/config"
	"gradescan/internal/logging"
	"gradescan/internal/queue"
)

// NewConfig returns a validated config rooted in a per-test temp directory.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Analyzer.APIKey = "test-key"
	cfg.Roster.BaseURL = "http://localhost:0"

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	return &cfg
}

// MustOpenStore opens a fresh queue database under the test's temp directory
// and closes it when the test ends.
func MustOpenStore(t *testing.T, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

// NewLogger returns a logger that discards all records.
func NewLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return logging.NewNop()
}
