package models

import "strings"

type Role string

const (
	RoleOwner  Role = "owner"
	RoleWalker Role = "walker"
	RoleAdmin  Role = "admin"
)

// ParseRole maps a role claim to the closed Role set.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleOwner:
		return RoleOwner, true
	case RoleWalker:
		return RoleWalker, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// Identity is resolved once at the boundary and passed into the core.
type Identity struct {
	UserID string
	Role   Role
}

func (id Identity) Is(r Role) bool { return id.UserID != "" && id.Role == r }
