package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"dbbackup-agent/internal/controlplane"
	"dbbackup-agent/internal/pipeline"
	"dbbackup-agent/internal/reconciler"
	"dbbackup-agent/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the long-running agent daemon",
	Long: `run starts the Redis-backed scheduler and the status reconciler and
blocks until the process is interrupted. This is the agent's normal mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		engine, api, err := newEngine()
		if err != nil {
			return err
		}

		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		sched := scheduler.New(redisClient, log, periodicBackupDispatcher(engine))
		rec := reconciler.New(edge.AgentID, key, api, sched, engine, log, 0)

		log.Info("agent starting", "agent_id", edge.AgentID, "databases", len(key.Databases))

		go sched.Run(ctx)
		rec.Run(ctx)

		return nil
	},
}

// periodicBackupDispatcher is the only task kind the agent currently
// knows how to run; its first argument is always the generated_id of the
// database to back up, and its metadata carries the storages and
// encryption flag the reconciler captured from the last status ping.
func periodicBackupDispatcher(engine *pipeline.Engine) scheduler.Dispatcher {
	return func(ctx context.Context, task scheduler.Task) error {
		if task.Task != "tasks.database.periodic_backup" {
			return fmt.Errorf("cmd: unknown scheduled task %q", task.Task)
		}
		if len(task.Args) == 0 {
			return fmt.Errorf("cmd: periodic backup task missing generated_id argument")
		}

		var meta controlplane.BackupTaskMetadata
		if len(task.Metadata) > 0 {
			if err := json.Unmarshal(task.Metadata, &meta); err != nil {
				return fmt.Errorf("cmd: decode periodic backup task metadata: %w", err)
			}
		}

		return engine.RunBackup(ctx, task.Args[0], controlplane.BackupAutomatic, meta.Storages, meta.Encrypt)
	}
}
