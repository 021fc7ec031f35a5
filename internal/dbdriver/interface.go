// Package dbdriver implements the narrow per-engine contract the backup and
// restore pipelines depend on: check reachability, dump to a directory,
// restore from a file. The actual dump/restore work is always delegated to
// the database's own native binary (mysqldump, pg_dump, mongodump,
// sqlite3); this package only builds and runs those commands.
package dbdriver

import (
	"context"
	"fmt"

	"dbbackup-agent/internal/agentconfig"
	"dbbackup-agent/internal/agenterrors"
	"dbbackup-agent/internal/logger"
)

// Driver is implemented once per supported db_type.
type Driver interface {
	// Ping reports whether the database is reachable within a short
	// timeout. A non-nil error means unreachable, not necessarily fatal.
	Ping(ctx context.Context) error

	// Backup dumps the database into dir, returning the path to the
	// resulting dump file.
	Backup(ctx context.Context, dir string) (string, error)

	// Restore loads file back into the database.
	Restore(ctx context.Context, file string) error
}

// New builds the Driver for cfg.Type.
func New(cfg *agentconfig.DatabaseConfig, log logger.Logger) (Driver, error) {
	switch cfg.Type {
	case agentconfig.DBTypeMySQL, agentconfig.DBTypeMariaDB:
		return &MySQL{cfg: cfg, log: log}, nil
	case agentconfig.DBTypePostgreSQL:
		return &PostgreSQL{cfg: cfg, log: log}, nil
	case agentconfig.DBTypeMongoDB:
		return &MongoDB{cfg: cfg, log: log}, nil
	case agentconfig.DBTypeSQLite:
		return &SQLite{cfg: cfg, log: log}, nil
	default:
		return nil, fmt.Errorf("dbdriver: %w: %q", agenterrors.ErrUnknownDBType, cfg.Type)
	}
}
