package dbdriver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dbbackup-agent/internal/agentconfig"
	"dbbackup-agent/internal/logger"
)

func TestNewUnknownDBType(t *testing.T) {
	_, err := New(&agentconfig.DatabaseConfig{Type: "unknown"}, logger.NewNullLogger())
	if err == nil {
		t.Fatal("expected error for unknown db_type")
	}
}

func TestSQLitePingMissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &agentconfig.DatabaseConfig{
		Type: agentconfig.DBTypeSQLite,
		Path: filepath.Join(dir, "missing.db"),
	}
	drv, err := New(cfg, logger.NewNullLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := drv.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to fail for a missing database file")
	}
}

func TestSQLitePingExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.db")
	if err := os.WriteFile(path, []byte("sqlite stub"), 0644); err != nil {
		t.Fatalf("write stub db: %v", err)
	}

	cfg := &agentconfig.DatabaseConfig{Type: agentconfig.DBTypeSQLite, Path: path}
	drv, err := New(cfg, logger.NewNullLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := drv.Ping(context.Background()); err != nil {
		t.Fatalf("expected ping to succeed: %v", err)
	}
}
