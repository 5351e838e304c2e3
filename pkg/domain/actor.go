package domain

// Role identifies the kind of principal performing an operation.
type Role string

const (
	RoleSecurity Role = "security"
	RoleHost     Role = "host"
	RoleAdmin    Role = "admin"
	RoleVisitor  Role = "visitor"
	RoleSystem   Role = "system"
)

// Actor is the principal attributed to a state change. It is denormalized into
// audit entries so history survives renames and deletions.
type Actor struct {
	ID   string
	Name string
	Role Role
}

// SystemActor is attributed to state changes the engine applies on its own,
// such as lazy expiry reconciliation.
var SystemActor = Actor{ID: "system", Name: "System", Role: RoleSystem}
