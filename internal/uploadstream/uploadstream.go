// Package uploadstream builds the single reader that storage providers
// consume: the raw archive file, transparently wrapped in the streaming
// cipher when encryption is requested.
package uploadstream

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"dbbackup-agent/internal/cipher"
)

// Metadata describes the stream Build produced, so callers can pick the
// remote object's extension and decide whether to upload a sidecar
// describing how to reverse it.
type Metadata struct {
	Encrypted bool
	FileName  string // the local file's base name, plus ".enc" when Encrypted
}

// Build opens file and, if encrypt is true, wraps it in the chunked
// AES-256-GCM cipher from internal/cipher. The caller is responsible for
// closing the returned io.ReadCloser.
func Build(file string, encrypt bool, masterKey []byte) (io.ReadCloser, *Metadata, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, fmt.Errorf("uploadstream: open %s: %w", file, err)
	}

	base := filepath.Base(file)
	if !encrypt {
		return f, &Metadata{Encrypted: false, FileName: base}, nil
	}

	encReader, err := cipher.Encrypt(f, masterKey)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("uploadstream: start encryption: %w", err)
	}

	return &readCloser{Reader: encReader, closer: f}, &Metadata{
		Encrypted: true,
		FileName:  base + ".enc",
	}, nil
}

// readCloser pairs the cipher's pipe-backed io.Reader with the underlying
// file so callers get a single Close.
type readCloser struct {
	io.Reader
	closer *os.File
}

func (r *readCloser) Close() error {
	return r.closer.Close()
}
