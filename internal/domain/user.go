package domain

import "time"

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"

	UserEnabled  = "ENABLED"
	UserDisabled = "DISABLED"
)

// User represents an operator account of the monitoring backend.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	Phone        string
	Role         string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidRole reports whether role is one of the known user roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

// ValidUserStatus reports whether status is one of the known account states.
func ValidUserStatus(status string) bool {
	return status == UserEnabled || status == UserDisabled
}
