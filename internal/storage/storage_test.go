package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "dropbox"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestLocalProviderUploadRoundTrip(t *testing.T) {
	var received bytes.Buffer
	var offset int64
	var createHeaders, patchHeaders, finalizeHeaders http.Header

	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "")
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Re-register with the real server URL baked into the Location header.
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPatch:
			if r.Header.Get("Upload-Length") != "" {
				finalizeHeaders = r.Header.Clone()
				w.WriteHeader(http.StatusNoContent)
				return
			}
			patchHeaders = r.Header.Clone()
			n, _ := io.Copy(&received, r.Body)
			offset += n
			w.Header().Set("Upload-Offset", strconv.FormatInt(offset, 10))
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/create", func(w http.ResponseWriter, r *http.Request) {
		createHeaders = r.Header.Clone()
		w.Header().Set("Location", srv.URL+"/files/abc123")
		w.WriteHeader(http.StatusCreated)
	})

	provider := &localProvider{endpoint: srv.URL + "/create", client: srv.Client()}

	content := []byte("small backup payload")
	remotePath, size, err := provider.Upload(context.Background(), bytes.NewReader(content), "backups/2026-07-30/uuid-1.tar.gz", "gen-1", int64(len(content)))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if remotePath != srv.URL+"/files/abc123" {
		t.Errorf("remotePath = %q", remotePath)
	}
	if size != int64(len(content)) {
		t.Errorf("size = %d, want %d", size, len(content))
	}
	if !bytes.Equal(received.Bytes(), content) {
		t.Errorf("server received %q, want %q", received.Bytes(), content)
	}

	if createHeaders.Get("X-File-Path") != "" {
		t.Errorf("create request should not carry custom headers, got X-File-Path=%q", createHeaders.Get("X-File-Path"))
	}
	for _, h := range []http.Header{patchHeaders, finalizeHeaders} {
		if h.Get("X-File-Path") != "backups/2026-07-30/uuid-1.tar.gz" {
			t.Errorf("X-File-Path = %q", h.Get("X-File-Path"))
		}
		if h.Get("X-Generated-Id") != "gen-1" {
			t.Errorf("X-Generated-Id = %q", h.Get("X-Generated-Id"))
		}
	}
	if finalizeHeaders.Get("X-Status") != "complete" {
		t.Errorf("finalize missing X-Status header")
	}
}

func TestRetryBackoffCapsAtMaxDelay(t *testing.T) {
	b := newRetryBackoff()
	if d := b.delay(1); d != b.baseDelay {
		t.Errorf("first attempt delay = %v, want %v", d, b.baseDelay)
	}
	if d := b.delay(10); d != b.maxDelay {
		t.Errorf("large attempt delay = %v, want capped %v", d, b.maxDelay)
	}
}
