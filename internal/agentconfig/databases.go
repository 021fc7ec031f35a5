package agentconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// DBType enumerates the database engines this agent knows how to drive.
type DBType string

const (
	DBTypeMySQL      DBType = "mysql"
	DBTypeMariaDB    DBType = "mariadb"
	DBTypePostgreSQL DBType = "postgresql"
	DBTypeMongoDB    DBType = "mongodb"
	DBTypeSQLite     DBType = "sqlite"
)

// DatabaseConfig describes one local database the agent is responsible for.
type DatabaseConfig struct {
	GeneratedID string `json:"generated_id" toml:"generated_id"`
	Type        DBType `json:"db_type" toml:"db_type"`

	// Network DBMS fields (mysql, mariadb, postgresql, mongodb).
	Host     string `json:"host,omitempty" toml:"host,omitempty"`
	Port     int    `json:"port,omitempty" toml:"port,omitempty"`
	Username string `json:"username,omitempty" toml:"username,omitempty"`
	Password string `json:"password,omitempty" toml:"password,omitempty"`
	Database string `json:"database,omitempty" toml:"database,omitempty"`

	// SQLite-only field.
	Path string `json:"path,omitempty" toml:"path,omitempty"`
}

// DatabasesConfig is the parsed form of the DATABASES_CONFIG_FILE document:
// a list of databases this agent manages.
type DatabasesConfig struct {
	Databases []DatabaseConfig `json:"databases" toml:"databases"`
}

// LoadDatabasesConfig reads and validates path, dispatching on its
// extension (.toml or .json).
func LoadDatabasesConfig(path string) (*DatabasesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agentconfig: read %s: %w", path, err)
	}

	var cfg DatabasesConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("agentconfig: parse TOML %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("agentconfig: parse JSON %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("agentconfig: unsupported config extension for %s (want .toml or .json)", path)
	}

	for i := range cfg.Databases {
		if err := validate(&cfg.Databases[i]); err != nil {
			return nil, fmt.Errorf("agentconfig: database entry %d: %w", i, err)
		}
	}

	return &cfg, nil
}

// Find returns the DatabaseConfig matching generatedID, if present.
func (c *DatabasesConfig) Find(generatedID string) (*DatabaseConfig, bool) {
	for i := range c.Databases {
		if c.Databases[i].GeneratedID == generatedID {
			return &c.Databases[i], true
		}
	}
	return nil, false
}

func validate(db *DatabaseConfig) error {
	if _, err := uuid.Parse(db.GeneratedID); err != nil {
		return fmt.Errorf("generated_id %q is not a valid UUID: %w", db.GeneratedID, err)
	}

	required := func(fields map[string]string) error {
		for name, value := range fields {
			if value == "" {
				return fmt.Errorf("db_type %q requires field %q", db.Type, name)
			}
		}
		return nil
	}

	switch db.Type {
	case DBTypeMySQL, DBTypeMariaDB, DBTypePostgreSQL, DBTypeMongoDB:
		if db.Port == 0 {
			return fmt.Errorf("db_type %q requires field \"port\"", db.Type)
		}
		return required(map[string]string{
			"host":     db.Host,
			"username": db.Username,
			"password": db.Password,
			"database": db.Database,
		})
	case DBTypeSQLite:
		return required(map[string]string{"path": db.Path})
	default:
		return fmt.Errorf("unknown db_type %q", db.Type)
	}
}
