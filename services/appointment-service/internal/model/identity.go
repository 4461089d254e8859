package model

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the already-authenticated caller of a booking operation.
type Identity struct {
	OwnerID string
	Role    Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
