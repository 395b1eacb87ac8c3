package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/TobiSchelling/tokohwatch/internal/collect"
	"github.com/TobiSchelling/tokohwatch/internal/database"
)

// ErrTaskNotActive is returned by RunTask for paused or finished tasks.
var ErrTaskNotActive = errors.New("task is not active")

// TaskRun summarizes one pass of a background task.
type TaskRun struct {
	RunID    string `json:"run_id"`
	TaskID   int64  `json:"task_id"`
	Found    int    `json:"found"`
	Analyzed int    `json:"analyzed"`
	Deferred int    `json:"deferred"`
	Results  int    `json:"results"`
	Skipped  int    `json:"skipped"`
	Errors   int    `json:"errors"`
	Failed   bool   `json:"failed"`
}

// RunTask searches with the task's query and analyzes up to limit articles
// for the task's people; limit <= 0 processes every article. Records are
// keyed by the task so repeated runs update rather than duplicate. A failed
// search marks the run failed but leaves the task active.
func (p *Pipeline) RunTask(ctx context.Context, id int64, limit int) (*TaskRun, error) {
	task, err := p.db.GetTask(id)
	if err != nil {
		return nil, err
	}
	if task.Status != database.TaskActive {
		return nil, fmt.Errorf("%w: task %d is %s", ErrTaskNotActive, id, task.Status)
	}

	run := &TaskRun{RunID: uuid.NewString(), TaskID: id}
	people, err := p.taskPeople(task)
	if err != nil {
		return nil, err
	}
	if len(people) == 0 {
		return nil, ErrNoPeople
	}

	q := collect.Query{Keyword: task.Query, From: task.FromDate, IncludeToday: task.IncludeToday}
	if task.ToDate != nil {
		q.To = *task.ToDate
	}
	articles, err := p.Search(ctx, q)
	if err != nil {
		run.Failed = true
		log.Printf("Task %d run %s: search failed: %v", id, run.RunID, err)
		p.finishRun(run)
		return run, fmt.Errorf("task %d search: %w", id, err)
	}

	run.Found = len(articles)
	batch := articles
	if limit > 0 && len(batch) > limit {
		batch = batch[:limit]
		run.Deferred = len(articles) - limit
	}

	taskID := id
	for _, art := range batch {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		a := Article{URL: art.URL, Title: art.Title, Source: art.Source, Keyword: task.Query}
		content, err := p.load(ctx, a)
		if err != nil {
			run.Errors++
			continue
		}
		run.Analyzed++
		r := p.analyzePeople(ctx, content.Content, a, people, &taskID)
		run.Skipped += r.Skipped
		run.Errors += r.Errors
	}

	p.finishRun(run)
	log.Printf("Task %d run %s: %d found, %d analyzed, %d deferred, %d records",
		id, run.RunID, run.Found, run.Analyzed, run.Deferred, run.Results)
	return run, nil
}

func (p *Pipeline) finishRun(run *TaskRun) {
	count, err := p.db.CountTaskRecords(run.TaskID)
	if err != nil {
		log.Printf("Counting records for task %d: %v", run.TaskID, err)
	}
	run.Results = count
	if err := p.db.RecordTaskRun(run.TaskID, run.RunID, count); err != nil {
		log.Printf("Recording run for task %d: %v", run.TaskID, err)
	}
}

func (p *Pipeline) taskPeople(task *database.Task) ([]database.Person, error) {
	if len(task.PersonIDs) > 0 {
		return p.db.GetPeopleByIDs(task.PersonIDs)
	}
	return p.db.ListPeople()
}
