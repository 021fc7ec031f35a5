// Package agentconfig loads the agent's process-level configuration: the
// environment variables that bootstrap it, and the on-disk DatabasesConfig
// file describing which local databases it is responsible for.
package agentconfig

import (
	"fmt"
	"os"
	"strconv"

	"dbbackup-agent/internal/agenterrors"
)

// AgentConfig holds the environment-derived settings every subcommand reads
// at startup.
type AgentConfig struct {
	// EdgeKey is the raw, still base64url-encoded EDGE_KEY value.
	EdgeKey string

	// DataPath is the working directory the agent stages dumps and
	// archives in before upload.
	DataPath string

	// DatabasesConfigFile points at the local TOML or JSON file describing
	// the databases this agent manages.
	DatabasesConfigFile string

	// RedisAddr, RedisPassword and RedisDB locate the Redis instance backing
	// the task scheduler.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// LogLevel and LogFormat configure internal/logger.
	LogLevel  string
	LogFormat string
}

// Load reads AgentConfig from the process environment.
func Load() (*AgentConfig, error) {
	cfg := &AgentConfig{
		EdgeKey:              os.Getenv("EDGE_KEY"),
		DataPath:             getEnvString("DATA_PATH", "/var/lib/dbbackup-agent"),
		DatabasesConfigFile:  os.Getenv("DATABASES_CONFIG_FILE"),
		RedisAddr:            getEnvString("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		LogLevel:             getEnvString("LOG_LEVEL", "info"),
		LogFormat:            getEnvString("LOG_FORMAT", "text"),
	}

	if cfg.EdgeKey == "" {
		return nil, fmt.Errorf("agentconfig: %w", agenterrors.ErrEdgeKeyMissing)
	}
	if cfg.DatabasesConfigFile == "" {
		return nil, fmt.Errorf("agentconfig: DATABASES_CONFIG_FILE is not set")
	}

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
