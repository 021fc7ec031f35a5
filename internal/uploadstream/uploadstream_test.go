package uploadstream

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"dbbackup-agent/internal/cipher"
)

func TestBuildPlain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.tar.gz")
	content := []byte("archive contents")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	r, meta, err := Build(path, false, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer r.Close()

	if meta.Encrypted {
		t.Error("expected Encrypted=false")
	}
	if meta.FileName != "dump.tar.gz" {
		t.Errorf("FileName = %q", meta.FileName)
	}

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("content mismatch")
	}
}

func TestBuildEncrypted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.tar.gz")
	content := []byte("archive contents to encrypt")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	key := make([]byte, cipher.KeySize)

	r, meta, err := Build(path, true, key)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer r.Close()

	if !meta.Encrypted {
		t.Error("expected Encrypted=true")
	}
	if meta.FileName != "dump.tar.gz.enc" {
		t.Errorf("FileName = %q", meta.FileName)
	}

	ciphertext, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	plain, err := cipher.Decrypt(bytes.NewReader(ciphertext), key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	got, err := io.ReadAll(plain)
	if err != nil {
		t.Fatalf("read decrypted: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("decrypted content mismatch")
	}
}
