package models

import "strings"

type Role string

const (
	RoleSDE            Role = "SDE"
	RoleDataScientist  Role = "DataScientist"
	RoleProductManager Role = "ProductManager"
)

var Roles = []Role{RoleSDE, RoleDataScientist, RoleProductManager}

// ParseRole accepts the canonical value or the spaced display spelling.
func ParseRole(s string) (Role, bool) {
	switch strings.TrimSpace(s) {
	case "SDE":
		return RoleSDE, true
	case "DataScientist", "Data Scientist":
		return RoleDataScientist, true
	case "ProductManager", "Product Manager":
		return RoleProductManager, true
	default:
		return "", false
	}
}

func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// DisplayName is the human form used in prompts and spoken text.
func (r Role) DisplayName() string {
	switch r {
	case RoleDataScientist:
		return "Data Scientist"
	case RoleProductManager:
		return "Product Manager"
	default:
		return string(r)
	}
}
