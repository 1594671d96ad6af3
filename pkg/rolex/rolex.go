// Package rolex defines the platform-wide role hierarchy.
//
// Roles form a total order (EMPLOYEE < ADMINISTRATOR < OWNER) and a
// permission check passes when the actual role's level meets the minimum
// level among the required roles. Keeping this as an ordered enumeration
// rather than a lookup table of magic numbers lets the compiler and tests
// keep the set exhaustive.
package rolex

import (
	"errors"
	"strings"
)

// Role is an ordered enumeration of platform roles.
type Role string

const (
	Employee      Role = "EMPLOYEE"
	Administrator Role = "ADMINISTRATOR"
	Owner         Role = "OWNER"
)

// ErrUnknownRole reports a role string outside the enumeration.
var ErrUnknownRole = errors.New("rolex: unknown role")

// All lists every role in ascending order of privilege.
func All() []Role {
	return []Role{Employee, Administrator, Owner}
}

// Level returns the position of the role in the hierarchy. Unknown roles
// map to zero so they never satisfy any requirement.
func (r Role) Level() int {
	switch r {
	case Employee:
		return 1
	case Administrator:
		return 2
	case Owner:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is part of the enumeration.
func (r Role) Valid() bool { return r.Level() > 0 }

// String returns the canonical upper-case form.
func (r Role) String() string { return string(r) }

// Parse normalises a role string into a Role.
func Parse(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// HasPermission reports whether the actual role satisfies the requirement.
// The requirement is the minimum level among the known required roles, so
// a higher role always satisfies a lower one. Unknown required roles are
// unsatisfiable and are skipped; a requirement naming only unknown roles
// fails closed. An empty requirement passes trivially.
func HasPermission(actual Role, required ...Role) bool {
	if len(required) == 0 {
		return true
	}

	min := 0
	for _, r := range required {
		lvl := r.Level()
		if lvl == 0 {
			continue
		}
		if min == 0 || lvl < min {
			min = lvl
		}
	}
	if min == 0 {
		return false
	}

	return actual.Level() >= min
}
