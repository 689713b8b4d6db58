package model

import (
	"fmt"
	"strings"
)

// Role identifies one executive persona taking part in a discussion.
type Role string

const (
	RoleCEO Role = "CEO"
	RoleCFO Role = "CFO"
	RoleCTO Role = "CTO"
	RoleCMO Role = "CMO"
)

// Roles lists every known role in canonical order.
var Roles = []Role{RoleCEO, RoleCFO, RoleCTO, RoleCMO}

func (r Role) IsValid() bool {
	switch r {
	case RoleCEO, RoleCFO, RoleCTO, RoleCMO:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole accepts any casing and surrounding whitespace ("cfo", " Cfo ").
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// ParseRoles parses an ordered role list. Repeats are allowed.
func ParseRoles(values []string) ([]Role, error) {
	roles := make([]Role, 0, len(values))
	for i, v := range values {
		r, err := ParseRole(v)
		if err != nil {
			return nil, fmt.Errorf("roles[%d]: %w", i, err)
		}
		roles = append(roles, r)
	}
	return roles, nil
}
