package pipeline

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"dbbackup-agent/internal/archive"
	"dbbackup-agent/internal/cipher"
	"dbbackup-agent/internal/controlplane"
	"dbbackup-agent/internal/dbdriver"
	"dbbackup-agent/internal/logger"
	"dbbackup-agent/internal/metadata"
)

// RunRestore drives the C9 flow: download the artifact fileURL points at,
// undo whatever encryption and archiving it carries, and hand the
// resulting dump to the matching database driver. metaFileURL, if set,
// points at the ".meta" sidecar describing how an encrypted artifact was
// encrypted; it is fetched before the artifact is decrypted.
func (e *Engine) RunRestore(ctx context.Context, generatedID, fileURL, metaFileURL string) error {
	if !e.locks.TryAcquire(generatedID) {
		return fmt.Errorf("pipeline: restore for %s: backup already in progress", generatedID)
	}
	defer e.locks.Release(generatedID)

	dbCfg, ok := e.databases.Find(generatedID)
	if !ok {
		return e.failRestore(ctx, generatedID, fmt.Errorf("pipeline: no database configured with generated_id %s", generatedID))
	}

	driver, err := dbdriver.New(dbCfg, e.log)
	if err != nil {
		return e.failRestore(ctx, generatedID, fmt.Errorf("pipeline: build driver: %w", err))
	}

	op := e.log.StartOperation(fmt.Sprintf("restore %s", generatedID))

	workDir, err := os.MkdirTemp(e.cfg.DataPath, "restore-*")
	if err != nil {
		return e.failRestoreOp(ctx, generatedID, op, fmt.Errorf("pipeline: create work dir: %w", err))
	}
	defer os.RemoveAll(workDir)

	downloaded, err := e.downloadArtifact(ctx, fileURL, workDir)
	if err != nil {
		return e.failRestoreOp(ctx, generatedID, op, fmt.Errorf("pipeline: download: %w", err))
	}
	op.Update("download complete", "file", downloaded)

	var sidecar *metadata.Sidecar
	if metaFileURL != "" {
		sidecar, err = e.downloadSidecar(ctx, metaFileURL)
		if err != nil {
			e.log.Warn("failed to fetch encryption sidecar, proceeding without it", "generated_id", generatedID, "error", err)
		}
	}

	dumpFile, err := e.prepareDumpFile(downloaded, workDir, sidecar)
	if err != nil {
		return e.failRestoreOp(ctx, generatedID, op, fmt.Errorf("pipeline: prepare artifact: %w", err))
	}
	op.Update("artifact ready", "file", dumpFile)

	if err := driver.Ping(ctx); err != nil {
		return e.failRestoreOp(ctx, generatedID, op, fmt.Errorf("pipeline: database unreachable: %w", err))
	}

	if err := driver.Restore(ctx, dumpFile); err != nil {
		return e.failRestoreOp(ctx, generatedID, op, fmt.Errorf("pipeline: restore: %w", err))
	}

	if err := e.api.RestoreResult(ctx, controlplane.RestoreResultRequest{
		GeneratedID: generatedID,
		Status:      controlplane.StatusSuccess,
	}); err != nil {
		e.log.Error("failed to report restore result", "generated_id", generatedID, "error", err)
	}
	op.Complete("restore finished")
	return nil
}

func (e *Engine) failRestore(ctx context.Context, generatedID string, cause error) error {
	if err := e.api.RestoreResult(ctx, controlplane.RestoreResultRequest{
		GeneratedID: generatedID,
		Status:      controlplane.StatusFailed,
	}); err != nil {
		e.log.Error("failed to report restore failure", "generated_id", generatedID, "error", err)
	}
	return cause
}

func (e *Engine) failRestoreOp(ctx context.Context, generatedID string, op logger.OperationLogger, cause error) error {
	op.Fail("restore failed", "error", cause)
	return e.failRestore(ctx, generatedID, cause)
}

// downloadArtifact fetches fileURL into dir, naming the local file from the
// Content-Disposition response header, falling back to the URL's last path
// segment, else a generic name.
func (e *Engine) downloadArtifact(ctx context.Context, fileURL, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download %s: unexpected status %d", fileURL, resp.StatusCode)
	}

	name := contentDispositionFileName(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = filepath.Base(strings.Split(fileURL, "?")[0])
	}
	if name == "" || name == "." || name == "/" {
		name = "downloaded_file"
	}
	dst := filepath.Join(dir, name)

	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", err
	}
	return dst, nil
}

// downloadSidecar fetches and decodes the .meta sidecar at metaFileURL.
func (e *Engine) downloadSidecar(ctx context.Context, metaFileURL string) (*metadata.Sidecar, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metaFileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download %s: unexpected status %d", metaFileURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return metadata.Decode(data)
}

// contentDispositionFileName extracts the filename parameter from a
// Content-Disposition header value, e.g. `attachment; filename="dump.tar.gz"`.
func contentDispositionFileName(header string) string {
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// prepareDumpFile undoes whatever encryption and archiving the downloaded
// artifact carries and returns the path to the plain database dump the
// driver can consume. Files ending in .sql or .dump are legacy raw dumps
// and pass through unchanged. sidecar, if non-nil, is the decoded .meta
// fetched alongside an encrypted artifact; its absence is not fatal, since
// the .enc suffix alone is enough to know decryption is needed.
func (e *Engine) prepareDumpFile(path, workDir string, sidecar *metadata.Sidecar) (string, error) {
	current := path

	if strings.HasSuffix(current, ".sql") || strings.HasSuffix(current, ".dump") {
		return current, nil
	}

	if strings.HasSuffix(current, ".enc") {
		if sidecar == nil {
			e.log.Warn("no encryption sidecar available, proceeding on .enc suffix alone", "file", current)
		}

		f, err := os.Open(current)
		if err != nil {
			return "", err
		}
		defer f.Close()

		plainReader, err := cipher.Decrypt(f, e.masterKey)
		if err != nil {
			return "", err
		}

		decryptedPath := strings.TrimSuffix(current, ".enc")
		out, err := os.Create(decryptedPath)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(out, plainReader); err != nil {
			out.Close()
			return "", err
		}
		out.Close()
		current = decryptedPath
	}

	if strings.HasSuffix(current, ".tar.gz") {
		extracted, err := archive.DecompressTarGz(current, workDir)
		if err != nil {
			return "", err
		}
		if len(extracted) == 1 {
			current = extracted[0]
		} else {
			current = workDir
		}
		return current, nil
	}

	if strings.HasSuffix(current, ".sql") || strings.HasSuffix(current, ".dump") {
		return current, nil
	}

	return "", fmt.Errorf("pipeline: unrecognized restore artifact format: %s", current)
}
