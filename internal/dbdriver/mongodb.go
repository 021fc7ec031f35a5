package dbdriver

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"path/filepath"
	"strconv"

	"dbbackup-agent/internal/agentconfig"
	"dbbackup-agent/internal/logger"
)

// MongoDB drives mongodump/mongorestore. Reachability has no pure-Go driver
// wired for it (see DESIGN.md); a raw TCP dial stands in for a real
// protocol-level ping.
type MongoDB struct {
	cfg *agentconfig.DatabaseConfig
	log logger.Logger
}

func (m *MongoDB) Ping(ctx context.Context) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	d := net.Dialer{Timeout: pingTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("mongodb: dial %s: %w", addr, err)
	}
	return conn.Close()
}

func (m *MongoDB) Backup(ctx context.Context, dir string) (string, error) {
	outFile := filepath.Join(dir, m.cfg.Database+".archive")

	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d/%s",
		m.cfg.Username, m.cfg.Password, m.cfg.Host, m.cfg.Port, m.cfg.Database)

	cmd := exec.CommandContext(ctx, "mongodump", "--uri="+uri, "--archive="+outFile)

	m.log.Debug("running mongodump", "database", m.cfg.Database, "out", outFile)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("mongodb: mongodump failed: %w: %s", err, output)
	}

	return outFile, nil
}

func (m *MongoDB) Restore(ctx context.Context, file string) error {
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d/%s",
		m.cfg.Username, m.cfg.Password, m.cfg.Host, m.cfg.Port, m.cfg.Database)

	cmd := exec.CommandContext(ctx, "mongorestore", "--uri="+uri, "--drop", "--archive="+file)

	m.log.Debug("running mongorestore", "database", m.cfg.Database, "file", file)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("mongodb: mongorestore failed: %w: %s", err, output)
	}
	return nil
}
