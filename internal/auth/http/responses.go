package http

import (
	"time"

	"github.com/opsdeskhq/opsdesk/internal/auth/domain"
)

// MsgInvalidCredentials is the single user-facing message for every
// login failure; unknown email, deactivated account and wrong password
// are indistinguishable.
const MsgInvalidCredentials = "invalid credentials"

// MsgInvalidToken is the single user-facing message for every refresh
// failure, including replays that lost the rotation race.
const MsgInvalidToken = "invalid or expired token"

// PrincipalResponse is the public projection of a principal. The
// password hash never leaves the service.
type PrincipalResponse struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	FullName   string     `json:"fullName"`
	Role       string     `json:"role"`
	BranchID   *string    `json:"branchId,omitempty"`
	Active     bool       `json:"active"`
	LastAccess *time.Time `json:"lastAccess,omitempty"`
}

func toPrincipalResponse(p domain.Principal) PrincipalResponse {
	return PrincipalResponse{
		ID:         p.ID,
		Email:      p.Email,
		FullName:   p.FullName,
		Role:       string(p.Role),
		BranchID:   p.BranchID,
		Active:     p.Active,
		LastAccess: p.LastAccess,
	}
}

// LoginResponse mirrors the platform envelope: the access token rides in
// the body for non-browser clients alongside the cookies.
type LoginResponse struct {
	Principal   PrincipalResponse `json:"principal"`
	AccessToken string            `json:"accessToken"`
	ExpiresIn   int               `json:"expiresIn"` // seconds
}

// AuditEventResponse is one row of the audit trail listing.
type AuditEventResponse struct {
	ID         string    `json:"id"`
	ActorID    *string   `json:"actorId,omitempty"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Origin     string    `json:"origin"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HealthResponse is returned by the livez and readyz probes.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`

	Database string `json:"database,omitempty"`
}
