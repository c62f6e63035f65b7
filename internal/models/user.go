package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's authorization role.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// User represents a user in the system
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	PasswordHash  *string   `json:"-"` // nil for SSO-only accounts
	ProviderID    *string   `json:"provider_id,omitempty"`
	Name          *string   `json:"name,omitempty"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user may administer models and settings.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// UserActivity tracks when a user last called the API
type UserActivity struct {
	UserID             uuid.UUID `json:"user_id"`
	LastAPIInteraction time.Time `json:"last_api_interaction"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
