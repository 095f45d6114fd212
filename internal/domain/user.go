package domain

// Role is the caller's role as asserted by the identity service.
// Business rules never branch on it; ownership checks do the authorizing.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleCoach Role = "coach"
	RoleUser  Role = "user"
)

// Valid reports whether r is one of the roles the identity service issues.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCoach, RoleUser:
		return true
	}
	return false
}
