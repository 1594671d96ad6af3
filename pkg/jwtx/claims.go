package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/opsdeskhq/opsdesk/pkg/idx"
)

// Default token TTLs. Access tokens are short-lived on purpose; refresh
// tokens trade a persisted fingerprint lookup for a longer window.
const (
	DefaultAccessTokenTTL  = 1 * time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// AccessClaims are embedded in the short-lived access token. The role is a
// snapshot taken at issuance and is not re-checked against the live
// principal until the next refresh.
type AccessClaims struct {
	jwt.RegisteredClaims

	// Email of the authenticated principal.
	Email string `json:"email,omitempty"`

	// Role held by the principal when the token was minted.
	Role string `json:"role,omitempty"`
}

// RefreshClaims are embedded in the long-lived refresh token. SID is the
// session lineage identifier; it survives rotation and lets the service
// detect replay of an already-rotated credential.
type RefreshClaims struct {
	jwt.RegisteredClaims

	SID string `json:"sid,omitempty"`
}

// newAccessClaims builds minimally-correct access claims.
func newAccessClaims(subject, email, role, issuer string, ttl time.Duration, now time.Time) AccessClaims {
	return AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        idx.New().String(),
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Role:  role,
	}
}

// newRefreshClaims builds minimally-correct refresh claims.
func newRefreshClaims(subject, sid, issuer string, ttl time.Duration, now time.Time) RefreshClaims {
	return RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			// A unique jti keeps two mints in the same second from
			// producing byte-identical tokens.
			ID:        idx.New().String(),
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SID: sid,
	}
}
