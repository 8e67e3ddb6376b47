package identity

import "time"

// Role is the coarse privilege level carried on a subject. Admin is a
// standing override: it short-circuits every grant lookup.
type Role string

// Known roles.
const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleUser       Role = "user"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleUser:
		return true
	}
	return false
}

// Status marks whether an account may authenticate.
type Status string

// Known statuses.
const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Subject represents a user account as seen by the authorization core.
type Subject struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	LastLoginAt  time.Time `json:"last_login_at"`
}

// IsActive reports whether the subject may be treated as authenticated.
func (s *Subject) IsActive() bool {
	return s != nil && s.Status == StatusActive
}

// IsAdmin reports whether the subject carries the admin override.
func (s *Subject) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}
