package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
	if _, err := New(Config{BaseURL: "http://x"}); err == nil {
		t.Fatal("expected error for missing AgentID")
	}
}

func TestStatusRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/agent/agent-1/status" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Databases) != 1 {
			t.Errorf("expected 1 database in request, got %d", len(req.Databases))
		}

		resp := StatusResponse{
			Agent: AgentInfo{ID: "agent-1"},
			Databases: []DatabaseStatus{{
				GeneratedID: "gen-1",
				Dbms:        "mysql",
				Data:        DatabaseDirectives{Backup: BackupDirective{Action: true, Cron: "0 * * * *"}},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := client.Status(context.Background(), StatusRequest{
		Version:   "1.0.0",
		Databases: []DatabasePayload{{Name: "db1", Dbms: "mysql", GeneratedID: "gen-1"}},
	})
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(resp.Databases) != 1 || resp.Databases[0].Data.Backup.Cron != "0 * * * *" {
		t.Errorf("unexpected databases: %+v", resp.Databases)
	}
}

func TestBackupUpdateSendsPatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		if r.URL.Path != "/api/agent/agent-1/backup" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := client.BackupUpdate(context.Background(), BackupUpdateRequest{BackupID: "b1", Status: StatusSuccess}); err != nil {
		t.Fatalf("BackupUpdate: %v", err)
	}
}

func TestErrorStatusReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := client.RestoreResult(context.Background(), RestoreResultRequest{GeneratedID: "g1", Status: StatusFailed}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
