// Package scheduler implements the Redis-backed cron scheduler an agent
// uses to run its periodic backups: due tasks live in a sorted set scored
// by their next-run unix timestamp, and each task's definition lives in a
// companion hash so the schedule survives a restart of the agent process.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"dbbackup-agent/internal/logger"
)

// scheduleKey is the sorted set holding every task's next-run timestamp,
// keyed by the task's redbeat hash key.
const scheduleKey = "dbbackup:schedule"

// parser accepts the canonical 6-field cron expression (leading seconds
// field). A 5-field expression is normalized to this form before parsing.
var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// normalizeCron accepts either the standard 5-field expression (no seconds)
// or a 6-field expression with a leading seconds field, and returns the
// canonical 6-field form the parser expects.
func normalizeCron(expr string) string {
	if len(strings.Fields(expr)) == 5 {
		return "0 " + expr
	}
	return expr
}

// Task is one periodic job as the control plane describes it.
type Task struct {
	Task     string          `json:"task"`
	Args     []string        `json:"args"`
	Cron     string          `json:"cron"`
	Enabled  bool            `json:"enabled"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Dispatcher runs one due task. The agent's implementation lives in cmd
// (the periodic backup dispatcher), which hands the task to
// internal/pipeline.
type Dispatcher func(ctx context.Context, task Task) error

// Scheduler polls Redis once a second for due tasks and hands each one to
// Dispatch, isolating task failures from the poll loop.
type Scheduler struct {
	redis   *redis.Client
	log     logger.Logger
	dispatch Dispatcher
}

// New builds a Scheduler against an already-connected redis client.
func New(client *redis.Client, log logger.Logger, dispatch Dispatcher) *Scheduler {
	return &Scheduler{redis: client, log: log, dispatch: dispatch}
}

// redbeatKey is the hash key a task's definition is stored under.
func redbeatKey(taskName string) string {
	return fmt.Sprintf("redbeat:%s", taskName)
}

// CheckAndUpdateCron reconciles one task's desired state into Redis:
// create it if new, update it if its cron/args/metadata changed, remove
// it if cron is now empty. It is idempotent, so the reconciler can call
// it on every status poll without drifting the schedule.
func (s *Scheduler) CheckAndUpdateCron(ctx context.Context, taskName string, task Task) error {
	key := redbeatKey(taskName)

	exists, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("scheduler: check existence of %s: %w", taskName, err)
	}

	if task.Cron == "" {
		if exists == 1 {
			if err := s.removeTask(ctx, key); err != nil {
				return err
			}
			s.log.Info("task removed", "task_name", taskName)
		}
		return nil
	}

	if exists == 1 {
		raw, err := s.redis.HGet(ctx, key, "data").Result()
		if err != nil {
			return fmt.Errorf("scheduler: load existing task %s: %w", taskName, err)
		}
		var stored Task
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return fmt.Errorf("scheduler: decode existing task %s: %w", taskName, err)
		}

		if stored.Cron == task.Cron && stored.Enabled == task.Enabled && argsEqual(stored.Args, task.Args) && string(stored.Metadata) == string(task.Metadata) {
			return nil
		}
		if err := s.upsertTask(ctx, key, task); err != nil {
			return err
		}
		s.log.Info("task updated", "task_name", taskName, "cron", task.Cron)
		return nil
	}

	if err := s.upsertTask(ctx, key, task); err != nil {
		return err
	}
	s.log.Info("task created", "task_name", taskName, "cron", task.Cron)
	return nil
}

func argsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *Scheduler) upsertTask(ctx context.Context, key string, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("scheduler: marshal task: %w", err)
	}
	next, err := nextRunTimestamp(task.Cron)
	if err != nil {
		return fmt.Errorf("scheduler: parse cron %q: %w", task.Cron, err)
	}

	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.ZAdd(ctx, scheduleKey, redis.Z{Score: float64(next), Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("scheduler: store task: %w", err)
	}
	return nil
}

func (s *Scheduler) removeTask(ctx context.Context, key string) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, scheduleKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("scheduler: remove task: %w", err)
	}
	return nil
}

// nextRunTimestamp returns the unix timestamp of expr's next occurrence
// after now.
func nextRunTimestamp(expr string) (int64, error) {
	schedule, err := parser.Parse(normalizeCron(expr))
	if err != nil {
		return 0, err
	}
	return schedule.Next(time.Now()).Unix(), nil
}

// Run polls for due tasks once a second until ctx is canceled. Each due
// task runs in its own goroutine so a slow or failing task never delays
// the next poll.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

func (s *Scheduler) runDue(ctx context.Context) {
	now := float64(time.Now().Unix())

	due, err := s.redis.ZRangeByScore(ctx, scheduleKey, &redis.ZRangeBy{Min: "0", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil {
		s.log.Error("failed to query due tasks", "error", err)
		return
	}

	for _, key := range due {
		key := key
		raw, err := s.redis.HGet(ctx, key, "data").Result()
		if err != nil {
			s.log.Error("failed to load due task", "key", key, "error", err)
			continue
		}
		var task Task
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			s.log.Error("failed to decode due task", "key", key, "error", err)
			continue
		}

		if !task.Enabled {
			continue
		}

		// Reschedule before dispatching: the due key's score must advance
		// before the task body runs, or a still-due key matches again on
		// the next tick while the task is still in flight. Overlapping
		// runs of a slow task are allowed by design; runaway duplicate
		// dispatch of the same tick is not.
		next, err := nextRunTimestamp(task.Cron)
		if err != nil {
			s.log.Error("failed to compute next run", "task", task.Task, "error", err)
			continue
		}
		if err := s.redis.ZAdd(ctx, scheduleKey, redis.Z{Score: float64(next), Member: key}).Err(); err != nil {
			s.log.Error("failed to reschedule task", "task", task.Task, "error", err)
			continue
		}

		go s.execute(ctx, task)
	}
}

func (s *Scheduler) execute(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("recovered from panic running scheduled task", "task", task.Task, "panic", r)
		}
	}()

	s.log.Info("executing scheduled task", "task", task.Task, "args", task.Args)
	if err := s.dispatch(ctx, task); err != nil {
		s.log.Error("scheduled task failed", "task", task.Task, "error", err)
	}
}
