package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dbbackup-agent/internal/agentconfig"
	"dbbackup-agent/internal/controlplane"
	"dbbackup-agent/internal/filelock"
	"dbbackup-agent/internal/logger"
)

func newTestEngine(t *testing.T, handler http.HandlerFunc, databases *agentconfig.DatabasesConfig) *Engine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	api, err := controlplane.New(controlplane.Config{BaseURL: srv.URL, AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("controlplane.New: %v", err)
	}

	return New(&agentconfig.AgentConfig{DataPath: t.TempDir()}, databases, logger.NewNullLogger(), api, filelock.New(), make([]byte, 32), srv.URL)
}

func TestRunBackupSkipsUnknownDatabase(t *testing.T) {
	called := false
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, &agentconfig.DatabasesConfig{})

	if err := engine.RunBackup(context.Background(), "unknown-id", controlplane.BackupManual, nil, false); err != nil {
		t.Fatalf("expected no error for unknown database, got %v", err)
	}
	if called {
		t.Fatal("expected no control plane call for an unknown database")
	}
}

func TestRunBackupSkipsWhenLockHeld(t *testing.T) {
	databases := &agentconfig.DatabasesConfig{Databases: []agentconfig.DatabaseConfig{
		{GeneratedID: "gen-1", Type: agentconfig.DBTypeSQLite, Path: "/tmp/does-not-matter.db"},
	}}
	called := false
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, databases)

	if !engine.locks.TryAcquire("gen-1") {
		t.Fatal("setup: failed to pre-acquire lock")
	}
	defer engine.locks.Release("gen-1")

	if err := engine.RunBackup(context.Background(), "gen-1", controlplane.BackupManual, nil, false); err != nil {
		t.Fatalf("expected no error when lock is already held, got %v", err)
	}
	if called {
		t.Fatal("expected no control plane call when lock is already held")
	}
}

func TestRunRestoreUnknownDatabaseReportsFailure(t *testing.T) {
	var reported controlplane.RestoreResultRequest
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/agent/agent-1/restore" {
			json.NewDecoder(r.Body).Decode(&reported)
		}
	}, &agentconfig.DatabasesConfig{})

	err := engine.RunRestore(context.Background(), "unknown-id", "http://example.invalid/artifact.sql", "")
	if err == nil {
		t.Fatal("expected error for unknown database")
	}
	if reported.Status != controlplane.StatusFailed {
		t.Errorf("expected failure reported to control plane, got %+v", reported)
	}
}

func TestFinishBackupAggregatesMeanSizeOverSuccesses(t *testing.T) {
	var reported controlplane.BackupUpdateRequest
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch && r.URL.Path == "/api/agent/agent-1/backup" {
			json.NewDecoder(r.Body).Decode(&reported)
		}
	}, &agentconfig.DatabasesConfig{})

	op := engine.log.StartOperation("test")
	err := engine.finishBackup(context.Background(), "backup-1", op, []controlplane.UploadResult{
		{StorageID: "s1", Success: true, TotalSize: 100},
		{StorageID: "s2", Success: true, TotalSize: 200},
		{StorageID: "s3", Success: false, Error: "boom"},
	})
	if err != nil {
		t.Fatalf("finishBackup: %v", err)
	}
	if reported.Status != controlplane.StatusSuccess {
		t.Errorf("expected success status, got %q", reported.Status)
	}
	if reported.Size != 150 {
		t.Errorf("expected mean size 150 over the two successful uploads, got %d", reported.Size)
	}
}
