package metadata

import (
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "dump.tar.gz.enc")

	want := Sidecar{Encrypted: true, Algorithm: "aes-256-gcm"}
	if err := Write(artifact, want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(artifact)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if *got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestReadMissingSidecar(t *testing.T) {
	dir := t.TempDir()
	if _, err := Read(filepath.Join(dir, "missing.tar.gz")); err == nil {
		t.Fatal("expected error reading a nonexistent sidecar")
	}
}
