package domain

// Role enumerates the caller roles carried in access tokens.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
)

// Actor identifies who is performing an operation.
type Actor struct {
	UserID   string
	TenantID string
	Role     Role
}

// IsAdmin reports whether the actor has administrative rights.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
