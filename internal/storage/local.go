package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"dbbackup-agent/internal/agenterrors"
)

// patchChunkSize is the size of each tus PATCH request body.
const patchChunkSize = 1 * 1024 * 1024

const tusResumableVersion = "1.0.0"

// localProvider uploads to a local tus-protocol endpoint, using
// Upload-Defer-Length since the final (possibly encrypted) size isn't known
// up front when streaming begins.
type localProvider struct {
	endpoint string
	client   *http.Client
}

func newLocalProvider(cfg Config) *localProvider {
	return &localProvider{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *localProvider) Name() string { return "local" }

func (p *localProvider) Upload(ctx context.Context, r io.Reader, remotePath, generatedID string, size int64) (string, int64, error) {
	location, err := p.create(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("local: create upload: %w", err)
	}

	extraHeaders := map[string]string{
		"X-File-Name":    filepath.Base(remotePath),
		"X-File-Size":    strconv.FormatInt(size, 10),
		"X-File-Path":    remotePath,
		"X-Generated-Id": generatedID,
	}

	var offset int64
	buf := make([]byte, patchChunkSize)
	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			newOffset, err := p.patch(ctx, location, offset, buf[:n], extraHeaders)
			if err != nil {
				return "", 0, fmt.Errorf("local: patch at offset %d: %w", offset, err)
			}
			if newOffset != offset+int64(n) {
				return "", 0, fmt.Errorf("local: %w: server reports %d, expected %d", agenterrors.ErrUploadOffsetMismatch, newOffset, offset+int64(n))
			}
			offset = newOffset
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return "", 0, fmt.Errorf("local: read source stream: %w", readErr)
		}
	}

	if err := p.finalize(ctx, location, offset, extraHeaders); err != nil {
		return "", 0, fmt.Errorf("local: finalize: %w", err)
	}

	return location, offset, nil
}

func (p *localProvider) create(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Tus-Resumable", tusResumableVersion)
	req.Header.Set("Upload-Defer-Length", "1")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d creating upload", resp.StatusCode)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("server did not return a Location header")
	}
	return location, nil
}

func (p *localProvider) patch(ctx context.Context, location string, offset int64, chunk []byte, extraHeaders map[string]string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, location, bytes.NewReader(chunk))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Tus-Resumable", tusResumableVersion)
	req.Header.Set("Content-Type", "application/offset+octet-stream")
	req.Header.Set("Upload-Offset", strconv.FormatInt(offset, 10))
	req.ContentLength = int64(len(chunk))
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return 0, fmt.Errorf("unexpected status %d on PATCH", resp.StatusCode)
	}

	newOffset, err := strconv.ParseInt(resp.Header.Get("Upload-Offset"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid Upload-Offset in response: %w", err)
	}
	return newOffset, nil
}

func (p *localProvider) finalize(ctx context.Context, location string, totalLength int64, extraHeaders map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, location, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Tus-Resumable", tusResumableVersion)
	req.Header.Set("Upload-Offset", strconv.FormatInt(totalLength, 10))
	req.Header.Set("Upload-Length", strconv.FormatInt(totalLength, 10))
	req.Header.Set("Content-Type", "application/offset+octet-stream")
	req.Header.Set("X-Status", "complete")
	req.Header.Set("X-Method", "PATCH")
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d finalizing upload", resp.StatusCode)
	}
	return nil
}
