package domain

import "time"

// RefreshSession is the persisted record backing one login act. The row id
// doubles as the session lineage id: rotation replaces the fingerprint in
// place, so the lineage survives while the prior fingerprint becomes
// permanently invalid.
type RefreshSession struct {
	ID          string
	PrincipalID string
	TokenHash   string // SHA-256 fingerprint, never the raw credential
	ExpiresAt   time.Time
	Revoked     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Live reports whether the session can still be rotated.
func (s RefreshSession) Live(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}
