package users

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/platform/httpx"
)

// User represents a team member account. Role and Permissions hold the raw
// stored values; use AccessRole and Grants to interpret them.
type User struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Role        string          `json:"role"`
	Permissions json.RawMessage `json:"permissions,omitempty"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// AccessRole returns the canonical role, RoleNone when unrecognised.
func (u User) AccessRole() access.Role {
	return access.CanonicalRole(u.Role)
}

// Grants decodes the stored permissions object.
func (u User) Grants() (access.Grants, error) {
	return DecodeGrants(u.Permissions)
}

// TeamMember is the listing view of a user.
type TeamMember struct {
	ID       string        `json:"id"`
	Email    string        `json:"email"`
	Name     string        `json:"name"`
	Role     access.Role   `json:"role"`
	RoleName string        `json:"role_name"`
	Grants   access.Grants `json:"grants"`
	IsActive bool          `json:"is_active"`
}

// UpdateRoleRequest carries a new role, canonical or legacy.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,max=64"`
}

var (
	// ErrNotFound indicates an unknown user.
	ErrNotFound = fmt.Errorf("users: %w", httpx.ErrNotFound)
	// ErrUnknownRole indicates a role name outside the registry.
	ErrUnknownRole = fmt.Errorf("users: unknown role: %w", httpx.ErrValidation)
	// ErrInvalidGrants indicates a malformed permissions object.
	ErrInvalidGrants = fmt.Errorf("users: invalid grants: %w", httpx.ErrValidation)
	// ErrForbidden indicates the actor may not manage users.
	ErrForbidden = fmt.Errorf("users: %w", httpx.ErrForbidden)
)
