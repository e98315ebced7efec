package model

// Role is the access level of a portal user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// IssueSeverity classifies a per-row rotation problem.
type IssueSeverity string

const (
	SeverityWarning IssueSeverity = "warning" // Row skipped, likely already migrated.
	SeverityError   IssueSeverity = "error"   // Row skipped after decrypting successfully.
)
