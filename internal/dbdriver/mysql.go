package dbdriver

import (
	"context"
	"database/sql"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"dbbackup-agent/internal/agentconfig"
	"dbbackup-agent/internal/logger"
)

const pingTimeout = 10 * time.Second

// MySQL drives mysqldump/mysql for both the "mysql" and "mariadb" db_types
// (mariadb is wire-compatible and uses the same tooling).
type MySQL struct {
	cfg *agentconfig.DatabaseConfig
	log logger.Logger
}

func (m *MySQL) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?timeout=%s",
		m.cfg.Username, m.cfg.Password, m.cfg.Host, m.cfg.Port, m.cfg.Database, pingTimeout)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("mysql: open connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql: ping %s:%d: %w", m.cfg.Host, m.cfg.Port, err)
	}
	return nil
}

func (m *MySQL) Backup(ctx context.Context, dir string) (string, error) {
	outFile := filepath.Join(dir, m.cfg.Database+".sql")

	args := []string{
		"-h", m.cfg.Host,
		"-P", strconv.Itoa(m.cfg.Port),
		"-u", m.cfg.Username,
		"--single-transaction",
		"--routines",
		"--triggers",
		"--result-file=" + outFile,
		m.cfg.Database,
	}

	cmd := exec.CommandContext(ctx, "mysqldump", args...)
	cmd.Env = append(cmd.Env, "MYSQL_PWD="+m.cfg.Password)

	m.log.Debug("running mysqldump", "database", m.cfg.Database, "out", outFile)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("mysql: mysqldump failed: %w: %s", err, output)
	}

	return outFile, nil
}

func (m *MySQL) Restore(ctx context.Context, file string) error {
	args := []string{
		"-h", m.cfg.Host,
		"-P", strconv.Itoa(m.cfg.Port),
		"-u", m.cfg.Username,
		m.cfg.Database,
	}

	cmd := exec.CommandContext(ctx, "mysql", args...)
	cmd.Env = append(cmd.Env, "MYSQL_PWD="+m.cfg.Password)

	in, err := openStdin(cmd, file)
	if err != nil {
		return fmt.Errorf("mysql: open dump file: %w", err)
	}
	defer in.Close()

	m.log.Debug("running mysql restore", "database", m.cfg.Database, "file", file)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("mysql: restore failed: %w: %s", err, output)
	}
	return nil
}
