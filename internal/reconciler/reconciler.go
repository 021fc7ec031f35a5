// Package reconciler periodically pushes the agent's database inventory to
// the control plane and reconciles whatever comes back in the status
// response: each database's backup directive feeds the Redis-backed
// scheduler, and a pending restore directive is dispatched straight into
// the backup/restore pipeline.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dbbackup-agent/internal/agentconfig"
	"dbbackup-agent/internal/controlplane"
	"dbbackup-agent/internal/logger"
	"dbbackup-agent/internal/pipeline"
	"dbbackup-agent/internal/scheduler"
)

// periodicBackupTask is the scheduler task kind the reconciler registers
// for every database with an automatic backup schedule.
const periodicBackupTask = "tasks.database.periodic_backup"

// agentVersion is reported to the control plane on every status ping.
const agentVersion = "1.0.0"

// Reconciler drives the periodic status ping.
type Reconciler struct {
	agentID   string
	databases *agentconfig.DatabasesConfig
	api       *controlplane.Client
	scheduler *scheduler.Scheduler
	engine    *pipeline.Engine
	log       logger.Logger
	interval  time.Duration
}

// New builds a Reconciler polling at interval (defaulting to one minute).
func New(agentID string, databases *agentconfig.DatabasesConfig, api *controlplane.Client, sched *scheduler.Scheduler, engine *pipeline.Engine, log logger.Logger, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 1 * time.Minute
	}
	return &Reconciler{
		agentID:   agentID,
		databases: databases,
		api:       api,
		scheduler: sched,
		engine:    engine,
		log:       log,
		interval:  interval,
	}
}

// Run polls on a fixed interval until ctx is canceled, running one
// reconciliation pass immediately before the first tick.
func (r *Reconciler) Run(ctx context.Context) {
	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("recovered from panic during reconciliation", "panic", rec)
		}
	}()

	resp, err := r.api.Status(ctx, controlplane.StatusRequest{
		Version:   agentVersion,
		Databases: r.inventory(),
	})
	if err != nil {
		r.log.Error("status ping failed", "error", err)
		return
	}

	for _, db := range resp.Databases {
		r.reconcileBackup(ctx, db)
		r.dispatchRestore(ctx, db)
	}
}

// reconcileBackup pushes one database's backup directive into the
// scheduler. An empty cron removes any existing schedule.
func (r *Reconciler) reconcileBackup(ctx context.Context, db controlplane.DatabaseStatus) {
	taskName := fmt.Sprintf("periodic.backup_%s", db.GeneratedID)

	var cronExpr string
	if db.Data.Backup.Action {
		cronExpr = db.Data.Backup.Cron
	}

	metadata, err := json.Marshal(controlplane.BackupTaskMetadata{
		Storages: db.Storages,
		Encrypt:  db.Encrypt,
	})
	if err != nil {
		r.log.Error("failed to marshal backup task metadata", "generated_id", db.GeneratedID, "error", err)
		return
	}

	if err := r.scheduler.CheckAndUpdateCron(ctx, taskName, scheduler.Task{
		Task:     periodicBackupTask,
		Args:     []string{db.GeneratedID},
		Cron:     cronExpr,
		Enabled:  cronExpr != "",
		Metadata: metadata,
	}); err != nil {
		r.log.Error("failed to reconcile scheduled backup", "generated_id", db.GeneratedID, "error", err)
	}
}

// dispatchRestore kicks off a restore in its own goroutine when the
// control plane has one pending for this database.
func (r *Reconciler) dispatchRestore(ctx context.Context, db controlplane.DatabaseStatus) {
	if !db.Data.Restore.Action {
		return
	}

	generatedID := db.GeneratedID
	fileURL := db.Data.Restore.File
	metaFileURL := db.Data.Restore.MetaFile

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("recovered from panic dispatching restore", "generated_id", generatedID, "panic", rec)
			}
		}()
		if err := r.engine.RunRestore(ctx, generatedID, fileURL, metaFileURL); err != nil {
			r.log.Error("restore failed", "generated_id", generatedID, "error", err)
		}
	}()
}

func (r *Reconciler) inventory() []controlplane.DatabasePayload {
	payloads := make([]controlplane.DatabasePayload, 0, len(r.databases.Databases))
	for _, db := range r.databases.Databases {
		payloads = append(payloads, controlplane.DatabasePayload{
			Name:        db.GeneratedID,
			Dbms:        string(db.Type),
			GeneratedID: db.GeneratedID,
		})
	}
	return payloads
}
