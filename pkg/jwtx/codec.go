// Package jwtx signs and verifies the platform's access and refresh
// credentials. Both token families are HS256 JWTs but each is signed with
// its own key, so a leaked access-signing key cannot forge refresh
// credentials and vice versa.
package jwtx

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/opsdeskhq/opsdesk/pkg/idx"
)

var (
	// ErrInvalidToken is the single error surfaced for any verification
	// failure. Malformed, forged and expired tokens are deliberately
	// indistinguishable so the response cannot be used as an oracle.
	ErrInvalidToken = errors.New("jwtx: invalid token")

	ErrMissingKey = errors.New("jwtx: signing key is required")
	ErrSharedKey  = errors.New("jwtx: access and refresh keys must differ")
)

// Codec is a stateless signer/verifier. Key material is loaded once at
// process start and never mutated, so a single Codec is safe for
// concurrent use without locking.
type Codec struct {
	accessKey  []byte
	refreshKey []byte
	issuer     string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// NewCodec builds a Codec from two distinct signing keys. TTLs fall back
// to the package defaults when zero.
func NewCodec(accessKey, refreshKey []byte, issuer string, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	if len(accessKey) == 0 || len(refreshKey) == 0 {
		return nil, ErrMissingKey
	}
	if subtle.ConstantTimeCompare(accessKey, refreshKey) == 1 {
		return nil, ErrSharedKey
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}

	return &Codec{
		accessKey:  accessKey,
		refreshKey: refreshKey,
		issuer:     issuer,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
	}, nil
}

// IssueAt produces an independently signed access/refresh pair for the
// principal at the given instant. sid is the session lineage id carried by
// the refresh token across rotations.
func (c *Codec) IssueAt(principalID, email, role, sid string, now time.Time) (accessToken, refreshToken string, err error) {
	access := jwt.NewWithClaims(jwt.SigningMethodHS256,
		newAccessClaims(principalID, email, role, c.issuer, c.AccessTTL, now))
	accessToken, err = access.SignedString(c.accessKey)
	if err != nil {
		return "", "", err
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256,
		newRefreshClaims(principalID, sid, c.issuer, c.RefreshTTL, now))
	refreshToken, err = refresh.SignedString(c.refreshKey)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// Issue is IssueAt with the current time.
func (c *Codec) Issue(principalID, email, role, sid string) (string, string, error) {
	return c.IssueAt(principalID, email, role, sid, time.Now().UTC())
}

// VerifyAccess checks signature, structure and expiry of an access token.
// Any failure collapses to ErrInvalidToken.
func (c *Codec) VerifyAccess(token string) (AccessClaims, error) {
	var claims AccessClaims
	if err := c.verify(token, c.accessKey, &claims); err != nil {
		return AccessClaims{}, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh is the symmetric contract for refresh tokens, using the
// distinct refresh key. Every refresh token carries the ULID of its
// session lineage; a missing or malformed lineage id fails verification
// like any other defect.
func (c *Codec) VerifyRefresh(token string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := c.verify(token, c.refreshKey, &claims); err != nil {
		return RefreshClaims{}, ErrInvalidToken
	}
	if _, err := idx.Parse(claims.SID); err != nil {
		return RefreshClaims{}, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) verify(token string, key []byte, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
