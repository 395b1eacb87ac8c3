package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const defaultTaskDaysBack = 3

var taskColumns = []string{
	"id", "query", "from_date", "to_date", "include_today", "person_ids",
	"status", "last_run_at", "last_run_id", "results_count", "created_at",
}

// transitions lists the statuses reachable from each status. Completed
// and failed are terminal; nothing moves a task into failed.
var transitions = map[TaskStatus][]TaskStatus{
	TaskActive: {TaskPaused, TaskCompleted},
	TaskPaused: {TaskActive, TaskCompleted},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to TaskStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CreateTask stores a new active task and returns its ID. An empty
// FromDate defaults to three days ago.
func (db *DB) CreateTask(t Task) (int64, error) {
	t.Query = strings.TrimSpace(t.Query)
	if t.Query == "" {
		return 0, fmt.Errorf("task query is required")
	}
	if t.FromDate == "" {
		t.FromDate = db.now().AddDate(0, 0, -defaultTaskDaysBack).Format("2006-01-02")
	}
	ids := t.PersonIDs
	if ids == nil {
		ids = []int64{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return 0, err
	}
	now := db.timestamp()

	query, args, err := psql.Insert("tasks").
		Columns("query", "from_date", "to_date", "include_today", "person_ids", "status", "created_at", "updated_at").
		Values(t.Query, t.FromDate, t.ToDate, t.IncludeToday, string(idsJSON), string(TaskActive), now, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building task insert: %w", err)
	}

	var id int64
	if err := db.conn.QueryRow(query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("creating task: %w", err)
	}
	return id, nil
}

// GetTask returns a task by ID or ErrNotFound.
func (db *DB) GetTask(id int64) (*Task, error) {
	query, args, err := psql.Select(taskColumns...).From("tasks").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building task query: %w", err)
	}
	t, err := scanTask(db.conn.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ListTasks returns tasks newest first, optionally restricted to statuses.
func (db *DB) ListTasks(statuses ...TaskStatus) ([]Task, error) {
	b := psql.Select(taskColumns...).From("tasks").OrderBy("id DESC")
	if len(statuses) > 0 {
		vals := make([]string, len(statuses))
		for i, s := range statuses {
			vals[i] = string(s)
		}
		b = b.Where(sq.Eq{"status": vals})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building tasks query: %w", err)
	}
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// SetTaskStatus moves a task to a new status. Transitions not allowed by
// the task state machine return ErrInvalidTransition.
func (db *DB) SetTaskStatus(id int64, to TaskStatus) (*Task, error) {
	t, err := db.GetTask(id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(t.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, t.Status, to)
	}

	query, args, err := psql.Update("tasks").
		Set("status", string(to)).
		Set("updated_at", db.timestamp()).
		Where(sq.Eq{"id": id, "status": string(t.Status)}).
		ToSql()
	if err != nil {
		return nil, err
	}
	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: task %d changed concurrently", ErrInvalidTransition, id)
	}
	t.Status = to
	return t, nil
}

// RecordTaskRun stamps a finished run on the task.
func (db *DB) RecordTaskRun(id int64, runID string, resultsCount int) error {
	query, args, err := psql.Update("tasks").
		Set("last_run_at", db.timestamp()).
		Set("last_run_id", runID).
		Set("results_count", resultsCount).
		Set("updated_at", db.timestamp()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(query, args...)
	return err
}

func scanTask(s scanner) (*Task, error) {
	var (
		t       Task
		status  string
		include int
		idsJSON string
	)
	if err := s.Scan(&t.ID, &t.Query, &t.FromDate, &t.ToDate, &include, &idsJSON,
		&status, &t.LastRunAt, &t.LastRunID, &t.ResultsCount, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.IncludeToday = include != 0
	t.Status = TaskStatus(status)
	if err := json.Unmarshal([]byte(idsJSON), &t.PersonIDs); err != nil || t.PersonIDs == nil {
		t.PersonIDs = []int64{}
	}
	return &t, nil
}
