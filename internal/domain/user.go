package domain

import "strings"

type Role string

const (
	RoleRequester Role = "requester"
	RoleFulfiller Role = "fulfiller"
	RoleAdmin     Role = "admin"
)

func ParseRole(raw string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleRequester, RoleFulfiller, RoleAdmin:
		return r, true
	}
	return "", false
}

// User is the externally supplied identity of the current actor.
type User struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}
