package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

// Task is a single to-do item owned by exactly one user.
type Task struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskFilter narrows List results. Zero value means all tasks.
type TaskFilter struct {
	Status TaskStatus
}

// TaskStore persists tasks. Every query is scoped by owner id; a row
// owned by someone else is indistinguishable from a missing row.
type TaskStore struct {
	db *sql.DB
}

func newTaskID() string {
	u := uuid.New().String()
	return "task_" + strings.ReplaceAll(u[:13], "-", "")
}

// Create inserts a new pending task for the owner.
func (s *TaskStore) Create(ctx context.Context, ownerID, title, description string) (*Task, error) {
	now := time.Now().UTC()
	t := &Task{
		ID:          newTaskID(),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Status:      TaskPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, owner_id, title, description, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Title, t.Description, t.Status,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// Get returns the task if it exists and belongs to ownerID.
func (s *TaskStore) Get(ctx context.Context, id, ownerID string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, description, status, created_at, updated_at
		 FROM tasks WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanTask(row)
}

// List returns the owner's tasks, oldest first, optionally filtered by status.
func (s *TaskStore) List(ctx context.Context, ownerID string, filter TaskFilter) ([]*Task, error) {
	query := `SELECT id, owner_id, title, description, status, created_at, updated_at
	          FROM tasks WHERE owner_id = ?`
	args := []any{ownerID}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Update sets title and/or description on an owned task. Nil fields are
// left untouched. The whole update is one statement, so two concurrent
// updates touching different fields cannot overwrite each other.
func (s *TaskStore) Update(ctx context.Context, id, ownerID string, title, description *string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE tasks
		 SET title = COALESCE(?, title),
		     description = COALESCE(?, description),
		     updated_at = ?
		 WHERE id = ? AND owner_id = ?
		 RETURNING id, owner_id, title, description, status, created_at, updated_at`,
		title, description, formatTime(time.Now().UTC()), id, ownerID)
	t, err := scanTask(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return t, err
}

// Complete marks an owned task completed. Completing an already-completed
// task succeeds and returns the current state. The update returns the row
// it wrote, so a concurrent delete cannot slip between write and read.
func (s *TaskStore) Complete(ctx context.Context, id, ownerID string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?
		 RETURNING id, owner_id, title, description, status, created_at, updated_at`,
		TaskCompleted, formatTime(time.Now().UTC()), id, ownerID)
	t, err := scanTask(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	return t, err
}

// Delete removes an owned task. Deleting a missing or already-deleted
// task returns ErrNotFound so retries are distinguishable from the
// first successful delete.
func (s *TaskStore) Delete(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var created, updated string
	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Status, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &t, nil
}

// timeLayout is fixed-width so stored timestamps sort lexicographically
// in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t, nil
}
