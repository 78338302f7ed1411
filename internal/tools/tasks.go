package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/quill/internal/auth"
	"github.com/dohr-michael/quill/internal/store"
)

const (
	maxTitleLen       = 255
	maxDescriptionLen = 5000
)

// taskView is the JSON shape returned to the model for a task.
type taskView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func viewOf(t *store.Task) taskView {
	return taskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
}

// ownerFrom resolves the owner from the request context. A missing identity
// is an infrastructure bug, not a model mistake, so it surfaces as an error.
func ownerFrom(ctx context.Context, toolName string) (string, error) {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok || id.OwnerID == "" {
		return "", fmt.Errorf("%s: no identity in context", toolName)
	}
	return id.OwnerID, nil
}

func validateTitle(title string) (string, string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", "title must not be empty"
	}
	// Limits count characters, not bytes; multibyte titles are fine.
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", fmt.Sprintf("title must be at most %d characters", maxTitleLen)
	}
	return title, ""
}

func validateDescription(desc string) (string, string) {
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		return "", fmt.Sprintf("description must be at most %d characters", maxDescriptionLen)
	}
	return desc, ""
}

// =============================================================================
// add_task
// =============================================================================

// AddTaskTool creates a new pending task for the caller.
type AddTaskTool struct {
	tasks *store.TaskStore
}

// NewAddTaskTool creates a new add_task tool.
func NewAddTaskTool(tasks *store.TaskStore) *AddTaskTool {
	return &AddTaskTool{tasks: tasks}
}

// AddTaskSpec returns the tool spec for add_task.
func AddTaskSpec() *ToolSpec {
	return &ToolSpec{
		Name:        "add_task",
		Description: "Create a new task on the user's task list. The task starts in the pending state.",
		Parameters: map[string]ParamSpec{
			"title": {
				Type:        "string",
				Description: "Short title for the task (1-255 characters)",
				Required:    true,
			},
			"description": {
				Type:        "string",
				Description: "Optional longer description of the task",
			},
		},
	}
}

type addTaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Info returns the tool info for Eino registration.
func (t *AddTaskTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return toolSpecToToolInfo(AddTaskSpec()), nil
}

// InvokableRun creates the task and returns it.
func (t *AddTaskTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	owner, err := ownerFrom(ctx, "add_task")
	if err != nil {
		return "", err
	}

	var input addTaskInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return errorResult("invalid arguments: " + err.Error()), nil
	}

	title, msg := validateTitle(input.Title)
	if msg != "" {
		return errorResult(msg), nil
	}
	desc, msg := validateDescription(input.Description)
	if msg != "" {
		return errorResult(msg), nil
	}

	task, err := t.tasks.Create(ctx, owner, title, desc)
	if err != nil {
		return "", fmt.Errorf("add_task: %w", err)
	}

	out, _ := json.Marshal(viewOf(task))
	return string(out), nil
}

var _ tool.InvokableTool = (*AddTaskTool)(nil)

// =============================================================================
// list_tasks
// =============================================================================

// ListTasksTool lists the caller's tasks, optionally filtered by status.
type ListTasksTool struct {
	tasks *store.TaskStore
}

// NewListTasksTool creates a new list_tasks tool.
func NewListTasksTool(tasks *store.TaskStore) *ListTasksTool {
	return &ListTasksTool{tasks: tasks}
}

// ListTasksSpec returns the tool spec for list_tasks.
func ListTasksSpec() *ToolSpec {
	return &ToolSpec{
		Name:        "list_tasks",
		Description: "List the user's tasks in creation order. Optionally filter by status.",
		Parameters: map[string]ParamSpec{
			"status": {
				Type:        "string",
				Description: "Only return tasks with this status",
				Enum:        []string{"pending", "completed", "all"},
			},
		},
	}
}

type listTasksInput struct {
	Status string `json:"status"`
}

// Info returns the tool info for Eino registration.
func (t *ListTasksTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return toolSpecToToolInfo(ListTasksSpec()), nil
}

// InvokableRun lists tasks and returns them.
func (t *ListTasksTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	owner, err := ownerFrom(ctx, "list_tasks")
	if err != nil {
		return "", err
	}

	var input listTasksInput
	if argumentsInJSON != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
			return errorResult("invalid arguments: " + err.Error()), nil
		}
	}

	var filter store.TaskFilter
	switch input.Status {
	case "", "all":
	case string(store.TaskPending):
		filter.Status = store.TaskPending
	case string(store.TaskCompleted):
		filter.Status = store.TaskCompleted
	default:
		return errorResult(fmt.Sprintf("unknown status %q", input.Status)), nil
	}

	tasks, err := t.tasks.List(ctx, owner, filter)
	if err != nil {
		return "", fmt.Errorf("list_tasks: %w", err)
	}

	views := make([]taskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, viewOf(task))
	}
	out, _ := json.Marshal(map[string]any{"tasks": views, "count": len(views)})
	return string(out), nil
}

var _ tool.InvokableTool = (*ListTasksTool)(nil)

// =============================================================================
// update_task
// =============================================================================

// UpdateTaskTool changes a task's title or description.
type UpdateTaskTool struct {
	tasks *store.TaskStore
}

// NewUpdateTaskTool creates a new update_task tool.
func NewUpdateTaskTool(tasks *store.TaskStore) *UpdateTaskTool {
	return &UpdateTaskTool{tasks: tasks}
}

// UpdateTaskSpec returns the tool spec for update_task.
func UpdateTaskSpec() *ToolSpec {
	return &ToolSpec{
		Name:        "update_task",
		Description: "Update the title and/or description of an existing task. Fields that are omitted keep their current value.",
		Parameters: map[string]ParamSpec{
			"task_id": {
				Type:        "string",
				Description: "The task ID to update",
				Required:    true,
			},
			"title": {
				Type:        "string",
				Description: "New title for the task (1-255 characters)",
			},
			"description": {
				Type:        "string",
				Description: "New description for the task",
			},
		},
	}
}

type updateTaskInput struct {
	TaskID      string  `json:"task_id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// Info returns the tool info for Eino registration.
func (t *UpdateTaskTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return toolSpecToToolInfo(UpdateTaskSpec()), nil
}

// InvokableRun updates the task and returns the new state.
func (t *UpdateTaskTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	owner, err := ownerFrom(ctx, "update_task")
	if err != nil {
		return "", err
	}

	var input updateTaskInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return errorResult("invalid arguments: " + err.Error()), nil
	}
	if input.TaskID == "" {
		return errorResult("task_id is required"), nil
	}
	if input.Title == nil && input.Description == nil {
		return errorResult("nothing to update: provide title and/or description"), nil
	}

	if input.Title != nil {
		title, msg := validateTitle(*input.Title)
		if msg != "" {
			return errorResult(msg), nil
		}
		input.Title = &title
	}
	if input.Description != nil {
		desc, msg := validateDescription(*input.Description)
		if msg != "" {
			return errorResult(msg), nil
		}
		input.Description = &desc
	}

	task, err := t.tasks.Update(ctx, input.TaskID, owner, input.Title, input.Description)
	if errors.Is(err, store.ErrNotFound) {
		return errorResult(fmt.Sprintf("task %q not found", input.TaskID)), nil
	}
	if err != nil {
		return "", fmt.Errorf("update_task: %w", err)
	}

	out, _ := json.Marshal(viewOf(task))
	return string(out), nil
}

var _ tool.InvokableTool = (*UpdateTaskTool)(nil)

// =============================================================================
// complete_task
// =============================================================================

// CompleteTaskTool marks a task as completed. Completing an already
// completed task succeeds and changes nothing.
type CompleteTaskTool struct {
	tasks *store.TaskStore
}

// NewCompleteTaskTool creates a new complete_task tool.
func NewCompleteTaskTool(tasks *store.TaskStore) *CompleteTaskTool {
	return &CompleteTaskTool{tasks: tasks}
}

// CompleteTaskSpec returns the tool spec for complete_task.
func CompleteTaskSpec() *ToolSpec {
	return &ToolSpec{
		Name:        "complete_task",
		Description: "Mark a task as completed. Completing a task that is already completed is a no-op and succeeds.",
		Parameters: map[string]ParamSpec{
			"task_id": {
				Type:        "string",
				Description: "The task ID to complete",
				Required:    true,
			},
		},
	}
}

type completeTaskInput struct {
	TaskID string `json:"task_id"`
}

// Info returns the tool info for Eino registration.
func (t *CompleteTaskTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return toolSpecToToolInfo(CompleteTaskSpec()), nil
}

// InvokableRun completes the task and returns the new state.
func (t *CompleteTaskTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	owner, err := ownerFrom(ctx, "complete_task")
	if err != nil {
		return "", err
	}

	var input completeTaskInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return errorResult("invalid arguments: " + err.Error()), nil
	}
	if input.TaskID == "" {
		return errorResult("task_id is required"), nil
	}

	task, err := t.tasks.Complete(ctx, input.TaskID, owner)
	if errors.Is(err, store.ErrNotFound) {
		return errorResult(fmt.Sprintf("task %q not found", input.TaskID)), nil
	}
	if err != nil {
		return "", fmt.Errorf("complete_task: %w", err)
	}

	out, _ := json.Marshal(viewOf(task))
	return string(out), nil
}

var _ tool.InvokableTool = (*CompleteTaskTool)(nil)

// =============================================================================
// delete_task
// =============================================================================

// DeleteTaskTool permanently removes a task. Deleting a task that does not
// exist reports an error; delete is not idempotent.
type DeleteTaskTool struct {
	tasks *store.TaskStore
}

// NewDeleteTaskTool creates a new delete_task tool.
func NewDeleteTaskTool(tasks *store.TaskStore) *DeleteTaskTool {
	return &DeleteTaskTool{tasks: tasks}
}

// DeleteTaskSpec returns the tool spec for delete_task.
func DeleteTaskSpec() *ToolSpec {
	return &ToolSpec{
		Name:        "delete_task",
		Description: "Permanently delete a task from the user's list. Deleting an unknown or already deleted task is an error.",
		Parameters: map[string]ParamSpec{
			"task_id": {
				Type:        "string",
				Description: "The task ID to delete",
				Required:    true,
			},
		},
	}
}

type deleteTaskInput struct {
	TaskID string `json:"task_id"`
}

// Info returns the tool info for Eino registration.
func (t *DeleteTaskTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return toolSpecToToolInfo(DeleteTaskSpec()), nil
}

// InvokableRun deletes the task.
func (t *DeleteTaskTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	owner, err := ownerFrom(ctx, "delete_task")
	if err != nil {
		return "", err
	}

	var input deleteTaskInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return errorResult("invalid arguments: " + err.Error()), nil
	}
	if input.TaskID == "" {
		return errorResult("task_id is required"), nil
	}

	err = t.tasks.Delete(ctx, input.TaskID, owner)
	if errors.Is(err, store.ErrNotFound) {
		return errorResult(fmt.Sprintf("task %q not found", input.TaskID)), nil
	}
	if err != nil {
		return "", fmt.Errorf("delete_task: %w", err)
	}

	out, _ := json.Marshal(map[string]any{"task_id": input.TaskID, "deleted": true})
	return string(out), nil
}

var _ tool.InvokableTool = (*DeleteTaskTool)(nil)
