package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/tokohwatch/internal/database"
	"github.com/TobiSchelling/tokohwatch/internal/pipeline"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage background search tasks",
}

var (
	taskFrom    string
	taskTo      string
	taskToday   bool
	taskPeople  []int64
	taskNoFirst bool
)

var taskCreateCmd = &cobra.Command{
	Use:   "create [query]",
	Short: "Create a task and run its first pass",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, pipe, closeAll, err := openPipeline()
		if err != nil {
			return err
		}
		defer closeAll()

		t := database.Task{
			Query:        strings.Join(args, " "),
			FromDate:     taskFrom,
			IncludeToday: taskToday,
			PersonIDs:    taskPeople,
		}
		if taskTo != "" {
			t.ToDate = &taskTo
		}
		id, err := db.CreateTask(t)
		if err != nil {
			return err
		}
		fmt.Printf("Created task [%d]: %s\n", id, t.Query)

		if taskNoFirst {
			return nil
		}
		run, err := pipe.RunTask(context.Background(), id, pipe.ImmediateArticles())
		if run != nil {
			printRun(run)
		}
		return err
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tasks, err := db.ListTasks()
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks defined. Add one with: tokohwatch task create <query>")
			return nil
		}

		for _, t := range tasks {
			lastRun := "never"
			if t.LastRunAt != nil {
				lastRun = *t.LastRunAt
			}
			fmt.Printf("  [%d] %-9s %s (results: %d, last run: %s)\n", t.ID, t.Status, t.Query, t.ResultsCount, lastRun)
		}
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a task and its most recent results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		t, err := db.GetTask(id)
		if err != nil {
			return fmt.Errorf("task %d: %w", id, err)
		}

		fmt.Printf("Task [%d]: %s\n", t.ID, t.Query)
		fmt.Printf("  Status: %s\n", t.Status)
		to := "-"
		if t.ToDate != nil {
			to = *t.ToDate
		}
		fmt.Printf("  Range: %s to %s (include today: %v)\n", t.FromDate, to, t.IncludeToday)
		if len(t.PersonIDs) > 0 {
			fmt.Printf("  People: %v\n", t.PersonIDs)
		} else {
			fmt.Println("  People: all")
		}
		fmt.Printf("  Results: %d\n", t.ResultsCount)

		records, err := db.ListRecords(database.RecordFilter{TaskID: &id, Limit: 20})
		if err != nil {
			return err
		}
		if len(records) > 0 {
			fmt.Println("\nRecent results:")
		}
		for _, r := range records {
			fmt.Printf("  %-7s %3d  %s  %s\n", r.Category, r.Score, r.PersonName, r.AddedAt)
		}
		return nil
	},
}

func statusCommand(use, short string, to database.TaskStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := db.SetTaskStatus(id, to)
			if err != nil {
				return fmt.Errorf("task %d: %w", id, err)
			}
			fmt.Printf("Task [%d] %s: %s\n", t.ID, t.Query, t.Status)
			return nil
		},
	}
}

var taskRunCmd = &cobra.Command{
	Use:   "run [id]",
	Short: "Run one pass of an active task now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, pipe, closeAll, err := openPipeline()
		if err != nil {
			return err
		}
		defer closeAll()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		all, _ := cmd.Flags().GetBool("all")
		limit := pipe.ImmediateArticles()
		if all {
			limit = 0
		}
		run, err := pipe.RunTask(context.Background(), id, limit)
		if run != nil {
			printRun(run)
		}
		return err
	},
}

func init() {
	taskCreateCmd.Flags().StringVar(&taskFrom, "from", "", "Start date (default: three days ago)")
	taskCreateCmd.Flags().StringVar(&taskTo, "to", "", "End date")
	taskCreateCmd.Flags().BoolVar(&taskToday, "today", false, "Search up to and including today")
	taskCreateCmd.Flags().Int64SliceVar(&taskPeople, "person", nil, "Person IDs to track (default: all)")
	taskCreateCmd.Flags().BoolVar(&taskNoFirst, "no-run", false, "Leave the first pass to the scheduler")
	taskRunCmd.Flags().Bool("all", false, "Process every article instead of the immediate batch")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(statusCommand("pause", "Pause an active task", database.TaskPaused))
	taskCmd.AddCommand(statusCommand("resume", "Resume a paused task", database.TaskActive))
	taskCmd.AddCommand(statusCommand("stop", "Mark a task completed", database.TaskCompleted))
	taskCmd.AddCommand(taskRunCmd)
}

func printRun(run *pipeline.TaskRun) {
	fmt.Printf("\nRun %s:\n", run.RunID)
	fmt.Printf("  Articles found: %d\n", run.Found)
	fmt.Printf("  Analyzed now: %d\n", run.Analyzed)
	if run.Deferred > 0 {
		fmt.Printf("  Left for the scheduler: %d\n", run.Deferred)
	}
	fmt.Printf("  Records for task: %d\n", run.Results)
	if run.Skipped > 0 || run.Errors > 0 {
		fmt.Printf("  Skipped: %d, errors: %d\n", run.Skipped, run.Errors)
	}
	if run.Failed {
		fmt.Println("  Search failed; the task stays active and will be retried.")
	}
}
