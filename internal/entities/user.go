package entities

// Role decides which dashboard views a session may reach
type Role string

const (
	RoleUser       Role = "user"
	RoleGovernment Role = "government"
)

// Valid reports whether r is one of the two supported roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleGovernment
}

// User is the identity held by a session. It is produced locally at login and
// never verified by a server.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}
