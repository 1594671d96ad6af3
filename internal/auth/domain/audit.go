package domain

import "time"

// AuditAction enumerates the security events this core records.
type AuditAction string

const (
	AuditLogin        AuditAction = "LOGIN"
	AuditLoginFailed  AuditAction = "LOGIN_FAILED"
	AuditLogout       AuditAction = "LOGOUT"
	AuditTokenRefresh AuditAction = "TOKEN_REFRESH"
	AuditTokenReuse   AuditAction = "TOKEN_REUSE"
	AuditDenied       AuditAction = "PERMISSION_DENIED"
)

// AuditEvent is an append-only record of an authentication state
// transition. ActorID is nil for anonymous failures (e.g. a login attempt
// against an unknown email).
type AuditEvent struct {
	ID         string
	ActorID    *string
	Action     AuditAction
	EntityType string
	EntityID   string
	Origin     string // client address, "unknown" when unavailable
	CreatedAt  time.Time
}
