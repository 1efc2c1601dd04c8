package domain

import "time"

type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

func (r Role) Known() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Session is the client's belief about the authenticated user. It is owned
// by the session manager while in memory and mirrored in the credential
// store for cross-restart durability. Role may be empty when the profile
// has not been fetched yet; an empty role does not invalidate the session.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role,omitempty"`
}

// Valid reports whether the session's token is still usable. Validity is
// decided locally from the expiry claim, never via a network round-trip.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.ExpiresAt.After(now)
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}
