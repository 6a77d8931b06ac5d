package tasks

import (
	"fmt"
	"time"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/platform/httpx"
)

// Status is the workflow state of a task.
type Status string

// Task statuses.
const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Priority orders tasks within a project.
type Priority string

// Task priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Task is a unit of work inside a project.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AccessTaskID implements access.TaskRecord.
func (t Task) AccessTaskID() string { return t.ID }

// AccessProjectID implements access.TaskRecord.
func (t Task) AccessProjectID() string { return t.ProjectID }

// AccessAssigneeID implements access.TaskRecord.
func (t Task) AccessAssigneeID() string { return t.AssigneeID }

// Ref returns the slice of the task held in principal snapshots.
func (t Task) Ref() access.TaskRef {
	return access.TaskRef{ID: t.ID, ProjectID: t.ProjectID, AssigneeID: t.AssigneeID}
}

// CreateTaskRequest is the payload for creating a task.
type CreateTaskRequest struct {
	ProjectID   string     `json:"project_id" validate:"required,uuid"`
	Title       string     `json:"title" validate:"required,max=300"`
	Description string     `json:"description" validate:"max=8000"`
	Priority    Priority   `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// UpdateTaskRequest carries a partial task update.
type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1,max=300"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=8000"`
	Status      *Status    `json:"status,omitempty" validate:"omitempty,oneof=todo in_progress review done"`
	Priority    *Priority  `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

var (
	// ErrNotFound indicates an unknown or invisible task.
	ErrNotFound = fmt.Errorf("tasks: %w", httpx.ErrNotFound)
	// ErrForbidden indicates the actor may not change the task.
	ErrForbidden = fmt.Errorf("tasks: %w", httpx.ErrForbidden)
	// ErrValidation wraps request validation failures.
	ErrValidation = fmt.Errorf("tasks: %w", httpx.ErrValidation)
)
