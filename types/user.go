package types

import "time"

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User statuses. Inactive users are soft-deleted.
const (
	UserStatusActive   = "Active"
	UserStatusInactive = "Inactive"
)

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the login address of the user. It is unique among active users.
	Email string `json:"email" db:"email"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Area is the department the user belongs to.
	Area string `json:"area" db:"area"`

	// Role indicates the user's authorization level within the system
	// ("admin" or "user"). Admin accounts cannot be edited through the API.
	Role string `json:"role" db:"role"`

	// Status is "Active" or "Inactive".
	Status string `json:"status" db:"status"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
