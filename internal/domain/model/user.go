package model

import "time"

// User is a portal account. PasswordHash is a bcrypt hash and never leaves the
// storage and auth layers.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Principal is the authenticated caller of a request.
type Principal struct {
	Username string
	Role     Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
