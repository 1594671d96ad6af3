package domain

import (
	"time"

	"github.com/opsdeskhq/opsdesk/pkg/rolex"
)

// Principal is an authenticated identity. The record is owned by the user
// store; this core only ever reads it.
type Principal struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string // bcrypt encoded
	Role         rolex.Role
	BranchID     *string // optional branch affiliation
	Active       bool
	LastAccess   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
