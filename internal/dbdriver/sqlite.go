package dbdriver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"dbbackup-agent/internal/agentconfig"
	"dbbackup-agent/internal/logger"
)

// SQLite drives the sqlite3 CLI's .backup/.restore dot-commands, mirroring
// the original agent's exact invocation shape.
type SQLite struct {
	cfg *agentconfig.DatabaseConfig
	log logger.Logger
}

// Ping just checks that the database file exists; sqlite has no server to
// reach over the network.
func (s *SQLite) Ping(ctx context.Context) error {
	if _, err := os.Stat(s.cfg.Path); err != nil {
		return fmt.Errorf("sqlite: database file %s: %w", s.cfg.Path, err)
	}
	return nil
}

func (s *SQLite) Backup(ctx context.Context, dir string) (string, error) {
	if _, err := os.Stat(s.cfg.Path); err != nil {
		return "", fmt.Errorf("sqlite: database file %s: %w", s.cfg.Path, err)
	}

	outFile := filepath.Join(dir, filepath.Base(s.cfg.Path))
	dotCmd := fmt.Sprintf(".backup '%s'", outFile)

	cmd := exec.CommandContext(ctx, "sqlite3", s.cfg.Path, dotCmd)

	s.log.Debug("running sqlite3 .backup", "path", s.cfg.Path, "out", outFile)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("sqlite: backup failed: %w: %s", err, output)
	}

	return outFile, nil
}

func (s *SQLite) Restore(ctx context.Context, file string) error {
	if err := os.Remove(s.cfg.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sqlite: remove existing database: %w", err)
	}

	dotCmd := fmt.Sprintf(".restore '%s'", file)
	cmd := exec.CommandContext(ctx, "sqlite3", s.cfg.Path, dotCmd)

	s.log.Debug("running sqlite3 .restore", "path", s.cfg.Path, "file", file)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("sqlite: restore failed: %w: %s", err, output)
	}
	return nil
}
