package domain

import "github.com/google/uuid"

type Role string

const (
	RoleCliente       Role = "Cliente"
	RoleGestor        Role = "Gestor"
	RoleAdministrador Role = "Administrador"
)

func (r Role) IsValid() bool {
	return r == RoleCliente || r == RoleGestor || r == RoleAdministrador
}

// CanReview reports whether the role may approve, reject or block
// high-value operations.
func (r Role) CanReview() bool {
	return r == RoleGestor || r == RoleAdministrador
}

// Actor identifies who is performing an action. Every state-changing call
// takes an explicit Actor instead of reading ambient session state.
type Actor struct {
	ID    uuid.UUID
	Email string
	Role  Role
}

func (a Actor) String() string {
	if a.Email != "" {
		return a.Email
	}
	return a.ID.String()
}
