package membership

import (
	"fmt"
	"time"

	"github.com/odyssey-pm/odyssey-pm/internal/platform/httpx"
)

// MemberRole is the role a principal holds within a single project.
type MemberRole string

// Project membership roles.
const (
	MemberRoleManager MemberRole = "manager"
	MemberRoleMember  MemberRole = "member"
)

// AssignmentStatus tracks the lifecycle of a task assignment.
type AssignmentStatus string

// Assignment lifecycle states.
const (
	StatusAssigned AssignmentStatus = "assigned"
	StatusAccepted AssignmentStatus = "accepted"
	StatusDeclined AssignmentStatus = "declined"
)

// CanTransition reports whether a status change is allowed. Assignments move
// once from assigned to accepted or declined and never again.
func (s AssignmentStatus) CanTransition(to AssignmentStatus) bool {
	return s == StatusAssigned && (to == StatusAccepted || to == StatusDeclined)
}

// ProjectMembership associates a principal with a project.
type ProjectMembership struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	ProjectID  string     `json:"project_id"`
	Role       MemberRole `json:"role"`
	AssignedBy string     `json:"assigned_by"`
	AssignedAt time.Time  `json:"assigned_at"`
}

// TaskAssignment associates a principal with a task.
type TaskAssignment struct {
	ID           string           `json:"id"`
	TaskID       string           `json:"task_id"`
	ProjectID    string           `json:"project_id"`
	AssignedTo   string           `json:"assigned_to"`
	AssignedBy   string           `json:"assigned_by"`
	AssignedAt   time.Time        `json:"assigned_at"`
	Status       AssignmentStatus `json:"status"`
	// TaskAssignee is the task's current assignee, which differs from
	// AssignedTo once the task has moved on.
	TaskAssignee string           `json:"task_assignee,omitempty"`
}

// AddMemberRequest is the payload for granting project membership.
type AddMemberRequest struct {
	UserID    string     `json:"user_id" validate:"required,uuid"`
	ProjectID string     `json:"project_id" validate:"required,uuid"`
	Role      MemberRole `json:"role" validate:"required,oneof=manager member"`
}

// AssignTaskRequest is the payload for assigning a task.
type AssignTaskRequest struct {
	TaskID string `json:"task_id" validate:"required,uuid"`
	UserID string `json:"user_id" validate:"required,uuid"`
}

// StatusRequest is the payload for accepting or declining an assignment.
type StatusRequest struct {
	Status AssignmentStatus `json:"status" validate:"required,oneof=accepted declined"`
}

var (
	// ErrNotFound indicates a missing membership, assignment or task.
	ErrNotFound = fmt.Errorf("membership: %w", httpx.ErrNotFound)
	// ErrAlreadyMember indicates the user already belongs to the project.
	ErrAlreadyMember = fmt.Errorf("membership: user already a project member: %w", httpx.ErrDuplicate)
	// ErrAlreadyAssigned indicates the user already holds the task.
	ErrAlreadyAssigned = fmt.Errorf("membership: task already assigned to user: %w", httpx.ErrDuplicate)
	// ErrInvalidTransition indicates a status change outside assigned -> accepted|declined.
	ErrInvalidTransition = fmt.Errorf("membership: invalid assignment status transition: %w", httpx.ErrConflict)
	// ErrNotAssignee indicates someone other than the assignee tried to respond.
	ErrNotAssignee = fmt.Errorf("membership: only the assignee may respond: %w", httpx.ErrForbidden)
	// ErrForbidden indicates the actor may not change this resource.
	ErrForbidden = fmt.Errorf("membership: %w", httpx.ErrForbidden)
	// ErrValidation wraps request validation failures.
	ErrValidation = fmt.Errorf("membership: %w", httpx.ErrValidation)
)
