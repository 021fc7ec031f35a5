package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"dbbackup-agent/internal/archive"
	"dbbackup-agent/internal/controlplane"
	"dbbackup-agent/internal/dbdriver"
	"dbbackup-agent/internal/logger"
	"dbbackup-agent/internal/metadata"
	"dbbackup-agent/internal/storage"
	"dbbackup-agent/internal/uploadstream"
)

// RunBackup drives the C8 flow for one database: look up its driver,
// acquire its lock, announce to the control plane, ping, dump, archive,
// fan the archive out to every storage, and report the aggregate outcome. A
// missing database, or one already backing up, is logged and treated as a
// no-op rather than an error, per the pipeline's failure policy.
func (e *Engine) RunBackup(ctx context.Context, generatedID string, method controlplane.BackupMethod, storages []controlplane.DatabaseStorage, encrypt bool) error {
	dbCfg, ok := e.databases.Find(generatedID)
	if !ok {
		e.log.Warn("backup requested for unknown database, skipping", "generated_id", generatedID)
		return nil
	}

	if !e.locks.TryAcquire(generatedID) {
		e.log.Info("backup already in progress, skipping", "generated_id", generatedID)
		return nil
	}
	defer e.locks.Release(generatedID)

	driver, err := dbdriver.New(dbCfg, e.log)
	if err != nil {
		return fmt.Errorf("pipeline: build driver: %w", err)
	}

	op := e.log.StartOperation(fmt.Sprintf("backup %s", generatedID))

	workDir, err := os.MkdirTemp(e.cfg.DataPath, "backup-*")
	if err != nil {
		op.Fail("failed to create work dir", "error", err)
		return fmt.Errorf("pipeline: create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	created, err := e.api.BackupCreate(ctx, controlplane.BackupCreateRequest{
		Method:      method,
		GeneratedID: generatedID,
	})
	if err != nil {
		op.Fail("failed to announce backup start", "error", err)
		return fmt.Errorf("pipeline: backup create: %w", err)
	}
	backupID := created.Backup.ID

	if err := driver.Ping(ctx); err != nil {
		op.Update("database unreachable", "error", err)
		return e.finishBackup(ctx, backupID, op, nil)
	}

	dumpFile, err := driver.Backup(ctx, workDir)
	if err != nil {
		op.Update("dump failed", "error", err)
		return e.finishBackup(ctx, backupID, op, nil)
	}
	op.Update("dump complete", "file", dumpFile)

	archivePath := filepath.Join(workDir, filepath.Base(dumpFile)+".tar.gz")
	archivePath, err = archive.CompressToTarGz(dumpFile, archivePath)
	if err != nil {
		op.Update("archive failed", "error", err)
		return e.finishBackup(ctx, backupID, op, nil)
	}
	op.Update("archive complete", "file", archivePath)

	results := e.uploadToAllStorages(ctx, generatedID, archivePath, storages, encrypt)
	return e.finishBackup(ctx, backupID, op, results)
}

// finishBackup computes the aggregate outcome across every storage result
// (nil/empty means the run never reached the upload stage) and reports it.
func (e *Engine) finishBackup(ctx context.Context, backupID string, op logger.OperationLogger, results []controlplane.UploadResult) error {
	var anySucceeded bool
	var sizeSum int64
	var sizeCount int64
	for _, r := range results {
		if r.Success {
			anySucceeded = true
			sizeSum += r.TotalSize
			sizeCount++
		}
	}

	// Aggregate size is the mean of the sizes reported by storages that
	// succeeded. For a mix of encrypted and plaintext uploads this
	// produces an arbitrary number; kept as specified rather than fixed.
	var meanSize int64
	if sizeCount > 0 {
		meanSize = sizeSum / sizeCount
	}

	status := controlplane.StatusFailed
	if anySucceeded {
		status = controlplane.StatusSuccess
	}

	if err := e.api.BackupUpdate(ctx, controlplane.BackupUpdateRequest{
		BackupID: backupID,
		Status:   status,
		Size:     meanSize,
	}); err != nil {
		op.Fail("failed to report backup outcome", "error", err)
		return fmt.Errorf("pipeline: backup update: %w", err)
	}

	if anySucceeded || len(results) == 0 {
		op.Complete("backup finished", "status", status, "storages", len(results))
	} else {
		op.Fail("all storage uploads failed")
	}
	return nil
}

// uploadToAllStorages fans the archive out to every storage concurrently.
// Each goroutine is isolated by recoverPanic so one storage's provider bug
// cannot take the others down.
func (e *Engine) uploadToAllStorages(ctx context.Context, generatedID, archivePath string, storages []controlplane.DatabaseStorage, encrypt bool) []controlplane.UploadResult {
	results := make([]controlplane.UploadResult, len(storages))
	var wg sync.WaitGroup

	for i, target := range storages {
		wg.Add(1)
		go func(i int, target controlplane.DatabaseStorage) {
			defer wg.Done()
			defer e.recoverPanic(fmt.Sprintf("upload to storage %s", target.ID))
			results[i] = e.uploadToStorage(ctx, generatedID, archivePath, target, encrypt)
		}(i, target)
	}

	wg.Wait()
	return results
}

func (e *Engine) uploadToStorage(ctx context.Context, generatedID, archivePath string, target controlplane.DatabaseStorage, encrypt bool) controlplane.UploadResult {
	result := controlplane.UploadResult{StorageID: target.ID}

	init, err := e.api.UploadInit(ctx, controlplane.UploadInitRequest{
		GeneratedID:      generatedID,
		StorageChannelID: target.ID,
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}
	backupStorageID := init.BackupStorage.ID

	storageCfg, err := storage.FromDatabaseStorage(e.serverURL, target.Provider, target.Config)
	if err != nil {
		result.Error = err.Error()
		e.reportUploadStatus(ctx, generatedID, backupStorageID, result)
		return result
	}

	provider, err := storage.New(storageCfg)
	if err != nil {
		result.Error = err.Error()
		e.reportUploadStatus(ctx, generatedID, backupStorageID, result)
		return result
	}

	stream, streamMeta, err := uploadstream.Build(archivePath, encrypt, e.masterKey)
	if err != nil {
		result.Error = err.Error()
		e.reportUploadStatus(ctx, generatedID, backupStorageID, result)
		return result
	}
	defer stream.Close()

	// The encrypted stream is longer than the archive and its length is not
	// known before streaming, so it is passed to the provider as 0.
	info, err := os.Stat(archivePath)
	var knownSize int64
	if err == nil && !streamMeta.Encrypted {
		knownSize = info.Size()
	}

	remoteObjectExt := ".tar.gz"
	if streamMeta.Encrypted {
		remoteObjectExt += ".enc"
	}
	remotePath := fmt.Sprintf("backups/%s/%s%s", time.Now().UTC().Format("2006-01-02"), uuid.NewString(), remoteObjectExt)

	finalPath, totalSize, err := provider.Upload(ctx, stream, remotePath, generatedID, knownSize)
	if err != nil {
		result.Error = err.Error()
		e.reportUploadStatus(ctx, generatedID, backupStorageID, result)
		return result
	}

	if streamMeta.Encrypted {
		sidecar, err := metadata.Encode(metadata.Sidecar{Encrypted: true, Algorithm: "aes-256-gcm"})
		if err != nil {
			e.log.Error("failed to encode encryption sidecar", "error", err)
		} else if _, _, err := provider.Upload(ctx, bytes.NewReader(sidecar), remotePath+".meta", generatedID, int64(len(sidecar))); err != nil {
			e.log.Error("failed to upload encryption sidecar", "error", err)
		}
	}

	result.Success = true
	result.RemoteFilePath = finalPath
	result.TotalSize = totalSize
	e.reportUploadStatus(ctx, generatedID, backupStorageID, result)
	return result
}

func (e *Engine) reportUploadStatus(ctx context.Context, generatedID, backupStorageID string, result controlplane.UploadResult) {
	status := controlplane.StatusFailed
	if result.Success {
		status = controlplane.StatusSuccess
	}
	if err := e.api.UploadStatus(ctx, controlplane.UploadStatusRequest{
		GeneratedID:     generatedID,
		BackupStorageID: backupStorageID,
		Status:          status,
		Path:            result.RemoteFilePath,
		Size:            result.TotalSize,
	}); err != nil {
		e.log.Error("failed to report upload status", "storage_id", result.StorageID, "error", err)
	}
}
