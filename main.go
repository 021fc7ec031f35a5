package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"dbbackup-agent/cmd"
	"dbbackup-agent/internal/agentconfig"
	"dbbackup-agent/internal/edgekey"
	"dbbackup-agent/internal/logger"
)

// Build information (set by ldflags)
var (
	version = "dev"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := agentconfig.Load()
	if err != nil {
		os.Stderr.WriteString("dbbackup-agent: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	edge, err := edgekey.Decode(cfg.EdgeKey)
	if err != nil {
		log.Error("invalid edge key", "error", err)
		os.Exit(1)
	}

	databases, err := agentconfig.LoadDatabasesConfig(cfg.DatabasesConfigFile)
	if err != nil {
		log.Error("failed to load databases config", "error", err)
		os.Exit(1)
	}

	if err := cmd.Execute(ctx, cfg, edge, databases, log, version); err != nil {
		log.Error("agent failed", "error", err)
		os.Exit(1)
	}
}
