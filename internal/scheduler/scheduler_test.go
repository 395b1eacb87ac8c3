package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TobiSchelling/tokohwatch/internal/database"
	"github.com/TobiSchelling/tokohwatch/internal/pipeline"
)

type fakeStore struct {
	tasks    []database.Task
	err      error
	statuses []database.TaskStatus
}

func (f *fakeStore) ListTasks(statuses ...database.TaskStatus) ([]database.Task, error) {
	f.statuses = statuses
	return f.tasks, f.err
}

type fakeRunner struct {
	ran    []int64
	limits []int
	fail   map[int64]bool
}

func (f *fakeRunner) RunTask(_ context.Context, id int64, limit int) (*pipeline.TaskRun, error) {
	f.ran = append(f.ran, id)
	f.limits = append(f.limits, limit)
	if f.fail[id] {
		return nil, errors.New("search failed")
	}
	return &pipeline.TaskRun{TaskID: id}, nil
}

func TestTickRunsActiveTasks(t *testing.T) {
	store := &fakeStore{tasks: []database.Task{{ID: 1, Query: "demo"}, {ID: 2, Query: "banjir"}, {ID: 3, Query: "pilkada"}}}
	runner := &fakeRunner{fail: map[int64]bool{2: true}}

	n := New("", store, runner).Tick(context.Background())
	if n != 2 {
		t.Errorf("expected 2 successful runs, got %d", n)
	}
	if len(runner.ran) != 3 {
		t.Errorf("a failing task must not stop the others: ran %v", runner.ran)
	}
	if len(store.statuses) != 1 || store.statuses[0] != database.TaskActive {
		t.Errorf("should list only active tasks, got %v", store.statuses)
	}
	for _, l := range runner.limits {
		if l != 0 {
			t.Errorf("scheduled runs process every article, got limit %d", l)
		}
	}
}

func TestTickListError(t *testing.T) {
	runner := &fakeRunner{}
	n := New("", &fakeStore{err: errors.New("db locked")}, runner).Tick(context.Background())
	if n != 0 || len(runner.ran) != 0 {
		t.Errorf("got %d runs", n)
	}
}

func TestTickStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &fakeRunner{}
	New("", &fakeStore{tasks: []database.Task{{ID: 1}}}, runner).Tick(ctx)
	if len(runner.ran) != 0 {
		t.Errorf("cancelled tick should not run tasks")
	}
}

func TestRunRejectsInvalidSchedule(t *testing.T) {
	s := New("every now and then", &fakeStore{}, &fakeRunner{})
	if err := s.Run(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New("@every 1h", &fakeStore{}, &fakeRunner{}).Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
