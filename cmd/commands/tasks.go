package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/quill/internal/store"
)

// NewTasksCommand returns the tasks subcommand.
func NewTasksCommand() *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "List an owner's tasks from the local store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "owner",
				Usage:    "Owner whose tasks to list",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Filter by status (pending or completed)",
			},
		},
		Action: runTasks,
	}
}

func runTasks(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)

	var filter store.TaskFilter
	switch status := cmd.String("status"); status {
	case "":
	case string(store.TaskPending):
		filter.Status = store.TaskPending
	case string(store.TaskCompleted):
		filter.Status = store.TaskCompleted
	default:
		return fmt.Errorf("unknown status %q", status)
	}

	db, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	tasks, err := db.Tasks().List(ctx, cmd.String("owner"), filter)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return nil
	}

	for _, t := range tasks {
		marker := " "
		if t.Status == store.TaskCompleted {
			marker = "x"
		}
		fmt.Printf("[%s] %s  %s\n", marker, t.ID, t.Title)
	}
	return nil
}
