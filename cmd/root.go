// Package cmd implements the agent's command-line interface: a long-running
// daemon subcommand plus one-shot subcommands for manually triggering a
// backup, a restore, or a status push.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"dbbackup-agent/internal/agentconfig"
	"dbbackup-agent/internal/controlplane"
	"dbbackup-agent/internal/edgekey"
	"dbbackup-agent/internal/filelock"
	"dbbackup-agent/internal/logger"
	"dbbackup-agent/internal/pipeline"
)

var (
	cfg   *agentconfig.AgentConfig
	log   logger.Logger
	edge  *edgekey.EdgeKey
	key   *agentconfig.DatabasesConfig
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dbbackup-agent",
	Short: "Edge agent for database backup, upload and restore",
	Long: `dbbackup-agent runs alongside a database, dumping and uploading it to
whatever storage its control plane names, and restoring it on demand.

The run subcommand starts the long-running daemon, which polls the
control plane on a schedule and runs backups and restores as they come due.
The backup/restore/status subcommands trigger a single pass without
starting the scheduler.`,
	Version: "",
}

// Execute wires the daemon's bootstrap state into the command tree and
// runs it.
func Execute(ctx context.Context, agentCfg *agentconfig.AgentConfig, edgeKey *edgekey.EdgeKey, databases *agentconfig.DatabasesConfig, logger logger.Logger, version string) error {
	cfg = agentCfg
	log = logger
	edge = edgeKey
	key = databases

	rootCmd.Version = version

	return rootCmd.ExecuteContext(ctx)
}

// newEngine builds the control plane client and pipeline.Engine shared by
// every subcommand.
func newEngine() (*pipeline.Engine, *controlplane.Client, error) {
	masterKey, err := edge.MasterKey()
	if err != nil {
		return nil, nil, fmt.Errorf("cmd: decode master key: %w", err)
	}

	api, err := controlplane.New(controlplane.Config{
		BaseURL: edge.ServerURL,
		AgentID: edge.AgentID,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("cmd: build control plane client: %w", err)
	}

	locks := filelock.New()
	return pipeline.New(cfg, key, log, api, locks, masterKey, edge.ServerURL), api, nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(statusCmd)
}
