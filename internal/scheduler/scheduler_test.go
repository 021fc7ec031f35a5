package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"dbbackup-agent/internal/logger"
)

func newTestScheduler(t *testing.T, dispatch Dispatcher) (*Scheduler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, logger.NewNullLogger(), dispatch), mr
}

func TestCheckAndUpdateCronCreatesTask(t *testing.T) {
	s, mr := newTestScheduler(t, func(ctx context.Context, task Task) error { return nil })
	defer mr.Close()

	err := s.CheckAndUpdateCron(context.Background(), "periodic_backup:gen-1", Task{
		Task:    "tasks.database.periodic_backup",
		Cron:    "0 3 * * *",
		Args:    []string{"gen-1"},
		Enabled: true,
	})
	if err != nil {
		t.Fatalf("CheckAndUpdateCron: %v", err)
	}

	if !mr.Exists("redbeat:periodic_backup:gen-1") {
		t.Fatal("expected redbeat hash key to exist")
	}
}

func TestCheckAndUpdateCronIsIdempotent(t *testing.T) {
	s, mr := newTestScheduler(t, func(ctx context.Context, task Task) error { return nil })
	defer mr.Close()

	task := Task{Task: "tasks.database.periodic_backup", Cron: "0 3 * * *", Args: []string{"gen-1"}, Enabled: true}
	ctx := context.Background()

	if err := s.CheckAndUpdateCron(ctx, "periodic_backup:gen-1", task); err != nil {
		t.Fatalf("first call: %v", err)
	}
	scoreBefore, _ := mr.ZScore("dbbackup:schedule", "redbeat:periodic_backup:gen-1")

	if err := s.CheckAndUpdateCron(ctx, "periodic_backup:gen-1", task); err != nil {
		t.Fatalf("second call: %v", err)
	}
	scoreAfter, _ := mr.ZScore("dbbackup:schedule", "redbeat:periodic_backup:gen-1")

	if scoreBefore != scoreAfter {
		t.Errorf("expected unchanged schedule on idempotent call, got %v -> %v", scoreBefore, scoreAfter)
	}
}

func TestCheckAndUpdateCronRemovesWhenCronEmptied(t *testing.T) {
	s, mr := newTestScheduler(t, func(ctx context.Context, task Task) error { return nil })
	defer mr.Close()

	ctx := context.Background()
	if err := s.CheckAndUpdateCron(ctx, "periodic_backup:gen-1", Task{Task: "x", Cron: "0 3 * * *", Enabled: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CheckAndUpdateCron(ctx, "periodic_backup:gen-1", Task{Task: "x", Cron: "", Enabled: true}); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if mr.Exists("redbeat:periodic_backup:gen-1") {
		t.Fatal("expected redbeat hash key to be removed")
	}
}

func TestRunDispatchesDueTask(t *testing.T) {
	executed := make(chan string, 1)
	s, mr := newTestScheduler(t, func(ctx context.Context, task Task) error {
		executed <- task.Task
		return nil
	})
	defer mr.Close()

	ctx := context.Background()
	if err := s.CheckAndUpdateCron(ctx, "periodic_backup:gen-1", Task{
		Task: "tasks.database.periodic_backup", Cron: "* * * * *", Enabled: true,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Force the due time into the past so the next poll picks it up
	// immediately instead of waiting for the minute boundary.
	mr.ZAdd("dbbackup:schedule", 1, "redbeat:periodic_backup:gen-1")

	s.runDue(ctx)

	select {
	case task := <-executed:
		if task != "tasks.database.periodic_backup" {
			t.Errorf("unexpected task executed: %s", task)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected task to be dispatched")
	}
}

func TestRunDueReschedulesBeforeDispatcherReturns(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	s, mr := newTestScheduler(t, func(ctx context.Context, task Task) error {
		entered <- struct{}{}
		<-release
		return nil
	})
	defer mr.Close()

	ctx := context.Background()
	if err := s.CheckAndUpdateCron(ctx, "periodic_backup:gen-1", Task{
		Task: "tasks.database.periodic_backup", Cron: "* * * * *", Enabled: true,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	mr.ZAdd("dbbackup:schedule", 1, "redbeat:periodic_backup:gen-1")

	s.runDue(ctx)

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("expected task to start")
	}

	score, err := mr.ZScore("dbbackup:schedule", "redbeat:periodic_backup:gen-1")
	if err != nil {
		t.Fatalf("ZScore: %v", err)
	}
	if score <= 1 {
		t.Errorf("expected score to be advanced before the dispatcher returned, got %v", score)
	}

	close(release)
}

func TestNextRunTimestampAcceptsFiveAndSixFields(t *testing.T) {
	fiveField, err := nextRunTimestamp("0 3 * * *")
	if err != nil {
		t.Fatalf("5-field cron: %v", err)
	}
	sixField, err := nextRunTimestamp("0 0 3 * * *")
	if err != nil {
		t.Fatalf("6-field cron: %v", err)
	}
	if fiveField != sixField {
		t.Errorf("expected normalized 5-field and equivalent 6-field expressions to agree, got %d vs %d", fiveField, sixField)
	}
}
