package dbdriver

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"dbbackup-agent/internal/agentconfig"
	"dbbackup-agent/internal/logger"
)

// PostgreSQL drives pg_dump/pg_restore, with reachability checked through a
// real pgx connection rather than shelling out to psql.
type PostgreSQL struct {
	cfg *agentconfig.DatabaseConfig
	log logger.Logger
}

func (p *PostgreSQL) dsn() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		p.cfg.Username, p.cfg.Password, p.cfg.Host, p.cfg.Port, p.cfg.Database)
}

func (p *PostgreSQL) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, p.dsn())
	if err != nil {
		return fmt.Errorf("postgresql: connect %s:%d: %w", p.cfg.Host, p.cfg.Port, err)
	}
	defer conn.Close(ctx)

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("postgresql: ping %s:%d: %w", p.cfg.Host, p.cfg.Port, err)
	}
	return nil
}

func (p *PostgreSQL) Backup(ctx context.Context, dir string) (string, error) {
	outFile := filepath.Join(dir, p.cfg.Database+".dump")

	args := []string{
		"-h", p.cfg.Host,
		"-p", strconv.Itoa(p.cfg.Port),
		"-U", p.cfg.Username,
		"-F", "c",
		"-f", outFile,
		p.cfg.Database,
	}

	cmd := exec.CommandContext(ctx, "pg_dump", args...)
	cmd.Env = append(cmd.Env, "PGPASSWORD="+p.cfg.Password)

	p.log.Debug("running pg_dump", "database", p.cfg.Database, "out", outFile)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("postgresql: pg_dump failed: %w: %s", err, output)
	}

	return outFile, nil
}

func (p *PostgreSQL) Restore(ctx context.Context, file string) error {
	args := []string{
		"-h", p.cfg.Host,
		"-p", strconv.Itoa(p.cfg.Port),
		"-U", p.cfg.Username,
		"-d", p.cfg.Database,
		"--clean",
		"--if-exists",
		file,
	}

	cmd := exec.CommandContext(ctx, "pg_restore", args...)
	cmd.Env = append(cmd.Env, "PGPASSWORD="+p.cfg.Password)

	p.log.Debug("running pg_restore", "database", p.cfg.Database, "file", file)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("postgresql: pg_restore failed: %w: %s", err, output)
	}
	return nil
}
