// Package httpx provides the composable request guards shared by every
// protected route on the platform: authentication, role authorization,
// rate limiting and JSON response helpers.
package httpx

import (
	"net/http"
	"strings"

	"github.com/opsdeskhq/opsdesk/pkg/jwtx"
	"github.com/opsdeskhq/opsdesk/pkg/rolex"
	"github.com/opsdeskhq/opsdesk/pkg/slogx"
)

// AccessTokenCookie is the cookie carrying the access credential.
const AccessTokenCookie = "access_token"

// MsgAuthRequired is the single user-facing message for every
// authentication failure. Missing, malformed, expired and forged
// credentials are indistinguishable from the response alone.
const MsgAuthRequired = "authentication required"

// AccessVerifier validates an access token and returns its claims.
type AccessVerifier interface {
	VerifyAccess(token string) (jwtx.AccessClaims, error)
}

// AuthnMiddleware extracts the bearer credential, preferring the secure
// cookie over the Authorization header, verifies it and binds the
// resulting identity to the request context. On any failure it
// short-circuits with 401 without invoking the wrapped handler.
func AuthnMiddleware(v AccessVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := extractBearer(r)
			if raw == "" {
				WriteError(w, http.StatusUnauthorized, MsgAuthRequired)
				return
			}

			claims, err := v.VerifyAccess(raw)
			if err != nil {
				log.Warn("access token rejected", "err", err)
				WriteError(w, http.StatusUnauthorized, MsgAuthRequired)
				return
			}

			role, err := rolex.Parse(claims.Role)
			if err != nil {
				log.Warn("access token carries unknown role", "role", claims.Role)
				WriteError(w, http.StatusUnauthorized, MsgAuthRequired)
				return
			}

			ctx = contextWithIdentity(ctx, Identity{
				PrincipalID: claims.Subject,
				Email:       claims.Email,
				Role:        role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearer returns the access credential from the request, cookie
// first, Authorization header second.
func extractBearer(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}

	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
	}
	return ""
}
