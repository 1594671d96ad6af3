package store

import (
	"context"
	"errors"
	"time"

	"github.com/opsdeskhq/opsdesk/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict reports a conditional mutation that matched no live row,
	// e.g. a rotation losing the race against a concurrent winner.
	ErrConflict = errors.New("store: conflicting update")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and its connection handling must support concurrent
// use: one pooled handle per operation, never a single shared connection.
type Store interface {
	Principals() Principals
	Sessions() Sessions
	AuditEvents() AuditEvents

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back when fn
	// returns an error and committing otherwise. Multi-step operations
	// that must be atomic (login session creation, rotation) go through
	// here.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Principals interface {
	// FindActiveByEmail returns the active principal for a login attempt.
	// Unknown email and deactivated account are both ErrNotFound; the
	// service collapses them into one generic credentials failure.
	FindActiveByEmail(ctx context.Context, email string) (domain.Principal, error)

	// GetActivePrincipalByID returns an active principal by id.
	GetActivePrincipalByID(ctx context.Context, id string) (domain.Principal, error)

	// CreatePrincipal inserts a new principal (id is provided via ULID).
	CreatePrincipal(ctx context.Context, p domain.Principal) error

	// DeactivatePrincipal flips is_active off. Idempotent; live access
	// tokens stop resolving on the next /me or refresh.
	DeactivatePrincipal(ctx context.Context, id string) error

	// TouchLastAccess bumps last_access after a successful login.
	TouchLastAccess(ctx context.Context, id string, at time.Time) error
}

type Sessions interface {
	// CreateSession stores a new live refresh session record.
	CreateSession(ctx context.Context, s domain.RefreshSession) error

	// GetSessionByHash returns the session holding the fingerprint,
	// regardless of liveness; callers decide how stale rows are treated.
	GetSessionByHash(ctx context.Context, hash string) (domain.RefreshSession, error)

	// GetSessionByID returns a session by its lineage id.
	GetSessionByID(ctx context.Context, id string) (domain.RefreshSession, error)

	// RotateSession atomically replaces the fingerprint of the live
	// session matching presentedHash and extends its expiry. The match
	// and replace happen in one conditional UPDATE, so of two concurrent
	// calls presenting the same fingerprint exactly one succeeds; the
	// other gets ErrConflict.
	RotateSession(ctx context.Context, presentedHash, nextHash string, expiresAt, now time.Time) error

	// RevokeSessionByHash marks the matching session revoked. Revoking an
	// already-revoked or absent session is a no-op success.
	RevokeSessionByHash(ctx context.Context, hash string) error

	// RevokeSessionByID revokes a whole lineage, used on reuse detection.
	RevokeSessionByID(ctx context.Context, id string) error

	// RevokeAllPrincipalSessions bulk-revokes every live session of a
	// principal.
	RevokeAllPrincipalSessions(ctx context.Context, principalID string) error

	// DeleteExpiredSessions is housekeeping; it runs out of the request
	// path.
	DeleteExpiredSessions(ctx context.Context, now time.Time) error
}

type AuditEvents interface {
	// CreateAuditEvent appends one security event. Rows are never mutated
	// or deleted by this core.
	CreateAuditEvent(ctx context.Context, e domain.AuditEvent) error

	// ListRecentAuditEvents returns the newest events first.
	ListRecentAuditEvents(ctx context.Context, limit int) ([]domain.AuditEvent, error)
}
