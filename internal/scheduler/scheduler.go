// Package scheduler re-runs active background tasks on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/TobiSchelling/tokohwatch/internal/database"
	"github.com/TobiSchelling/tokohwatch/internal/pipeline"
)

// DefaultSchedule re-polls active tasks every quarter hour.
const DefaultSchedule = "@every 15m"

const runTimeout = 30 * time.Minute

// TaskStore lists tasks by status.
type TaskStore interface {
	ListTasks(statuses ...database.TaskStatus) ([]database.Task, error)
}

// TaskRunner executes one pass of a task.
type TaskRunner interface {
	RunTask(ctx context.Context, id int64, limit int) (*pipeline.TaskRun, error)
}

// Scheduler runs every active task sequentially on each tick. A tick that
// is still running when the next one fires is skipped.
type Scheduler struct {
	spec   string
	store  TaskStore
	runner TaskRunner
}

// New creates a scheduler. An empty spec uses DefaultSchedule.
func New(spec string, store TaskStore, runner TaskRunner) *Scheduler {
	if spec == "" {
		spec = DefaultSchedule
	}
	return &Scheduler{spec: spec, store: store, runner: runner}
}

// Run blocks until ctx is cancelled, then waits for a running tick to end.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := c.AddFunc(s.spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("invalid task schedule %q: %w", s.spec, err)
	}

	c.Start()
	log.Printf("Task scheduler started (%s)", s.spec)
	<-ctx.Done()
	<-c.Stop().Done()
	log.Println("Task scheduler stopped")
	return nil
}

// Tick runs every active task once, processing all search results, and
// returns how many runs succeeded.
func (s *Scheduler) Tick(ctx context.Context) int {
	tasks, err := s.store.ListTasks(database.TaskActive)
	if err != nil {
		log.Printf("Listing active tasks: %v", err)
		return 0
	}

	ok := 0
	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		runCtx, cancel := context.WithTimeout(ctx, runTimeout)
		run, err := s.runner.RunTask(runCtx, t.ID, 0)
		cancel()
		if err != nil {
			log.Printf("Task %d (%q) failed: %v", t.ID, t.Query, err)
			continue
		}
		ok++
		log.Printf("Task %d (%q): %d articles, %d records", t.ID, t.Query, run.Analyzed, run.Results)
	}
	return ok
}
