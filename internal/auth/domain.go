package auth

import (
	"fmt"
	"time"

	"github.com/odyssey-pm/odyssey-pm/internal/platform/httpx"
)

// ErrInvalidCredentials covers unknown emails, inactive accounts and bad passwords alike.
var ErrInvalidCredentials = fmt.Errorf("auth: invalid credentials: %w", httpx.ErrUnauthorized)

// User represents an authenticated user account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LoginRequest is the JSON body accepted by POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginResponse identifies the signed-in user and the CSRF token for later writes.
type LoginResponse struct {
	UserID    string `json:"user_id"`
	CSRFToken string `json:"csrf_token"`
}
