package user

import (
	"context"
	"strings"
	"time"
)

// Role represents the account type picked by the user
type Role string

const (
	RoleUnset   Role = ""
	RoleClient  Role = "client"
	RoleCaptain Role = "captain"
)

// User represents a Telegram user known to the bot
type User struct {
	ID         int64     `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name,omitempty"`
	Role       Role      `json:"user_type,omitempty"`
	Rating     float64   `json:"rating"`
	TotalRides int       `json:"total_rides"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Repository defines the interface for user data access
type Repository interface {
	// Upsert inserts the user or overwrites profile fields and role
	Upsert(ctx context.Context, u *User) error

	// GetByID retrieves a user by Telegram id
	GetByID(ctx context.Context, id int64) (*User, error)

	// SetRole updates the user type and reports whether a row changed
	SetRole(ctx context.Context, id int64, role Role) (bool, error)

	// ListRecent returns the most recently created users
	ListRecent(ctx context.Context, limit int) ([]*User, error)
}

// IsValid validates the role
func (r Role) IsValid() bool {
	switch r {
	case RoleUnset, RoleClient, RoleCaptain:
		return true
	}
	return false
}

// DisplayName returns the best human readable name for the user
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return "user"
}
