package projects

import (
	"fmt"
	"time"

	"github.com/odyssey-pm/odyssey-pm/internal/platform/httpx"
)

// Status is the lifecycle state of a project.
type Status string

// Project statuses.
const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusOnHold    Status = "on_hold"
	StatusCompleted Status = "completed"
)

// Project is a client engagement that tasks belong to.
type Project struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"client_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AccessProjectID implements access.ProjectRecord.
func (p Project) AccessProjectID() string { return p.ID }

// CreateProjectRequest is the payload for creating a project.
type CreateProjectRequest struct {
	ClientID    string     `json:"client_id" validate:"required,uuid"`
	Name        string     `json:"name" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=4000"`
	Status      Status     `json:"status" validate:"omitempty,oneof=planning active on_hold completed"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// UpdateProjectRequest carries a partial project update.
type UpdateProjectRequest struct {
	Name        *string    `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=4000"`
	Status      *Status    `json:"status,omitempty" validate:"omitempty,oneof=planning active on_hold completed"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// ListFilter narrows a project listing.
type ListFilter struct {
	Status Status
	Search string
}

var (
	// ErrNotFound indicates an unknown or invisible project.
	ErrNotFound = fmt.Errorf("projects: %w", httpx.ErrNotFound)
	// ErrForbidden indicates the actor may not change the project.
	ErrForbidden = fmt.Errorf("projects: %w", httpx.ErrForbidden)
	// ErrValidation wraps request validation failures.
	ErrValidation = fmt.Errorf("projects: %w", httpx.ErrValidation)
)

// ErrDateRange indicates an end date before the start date.
var ErrDateRange = fmt.Errorf("projects: end_date before start_date: %w", httpx.ErrValidation)

func checkDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return ErrDateRange
	}
	return nil
}
