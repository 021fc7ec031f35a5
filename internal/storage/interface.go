// Package storage implements the three upload backends an agent can be
// configured to push backups to: a local tus-protocol endpoint, S3 (or an
// S3-compatible service), and Google Drive.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"dbbackup-agent/internal/agenterrors"
)

// Provider uploads one already-built stream (plain or encrypted) to a
// remote location and reports where it landed.
type Provider interface {
	// Upload sends r to remotePath, a caller-computed path of the form
	// "backups/YYYY-MM-DD/<uuid>.tar.gz[.enc]". size is r's exact length in
	// bytes, or 0 when that length is not known before streaming (an
	// encrypted stream). generatedID identifies the
	// source database for headers/logging only; it plays no part in the
	// remote object's location. Returns the final remote path plus the
	// number of bytes actually transferred.
	Upload(ctx context.Context, r io.Reader, remotePath, generatedID string, size int64) (finalPath string, totalSize int64, err error)

	// Name identifies the provider for logs and BackupResult reporting.
	Name() string
}

// Config is the per-storage configuration carried in DatabaseStorage.
type Config struct {
	Provider string // "local", "s3", "google-drive"

	// Local/tus
	Endpoint string

	// S3
	Bucket          string
	Region          string
	S3Endpoint      string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool

	// Google Drive
	ClientID     string
	ClientSecret string
	RefreshToken string
	FolderID     string

	Timeout time.Duration
}

// New builds the Provider named by cfg.Provider.
func New(cfg Config) (Provider, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}

	switch cfg.Provider {
	case "local":
		return newLocalProvider(cfg), nil
	case "s3":
		return newS3Provider(cfg)
	case "google-drive", "googledrive":
		return newGoogleDriveProvider(cfg)
	default:
		return nil, fmt.Errorf("storage: %w: %q", agenterrors.ErrUnknownProvider, cfg.Provider)
	}
}
