package httpx

import (
	"net/http"

	"github.com/opsdeskhq/opsdesk/pkg/rolex"
)

// MsgForbidden is the user-facing message for role failures.
const MsgForbidden = "insufficient permissions"

// DeniedFunc is invoked when an authenticated caller fails a role check,
// before the 403 is written. Used to feed the audit sink; may be nil.
type DeniedFunc func(r *http.Request, id Identity)

// RequireRole passes when the bound identity's role level meets the
// minimum level among the required roles; an empty requirement passes
// trivially. It must be composed after AuthnMiddleware: a request with no
// bound identity is rejected 401, never evaluated.
func RequireRole(onDenied DeniedFunc, required ...rolex.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, MsgAuthRequired)
				return
			}

			if !rolex.HasPermission(id.Role, required...) {
				if onDenied != nil {
					onDenied(r, id)
				}
				WriteError(w, http.StatusForbidden, MsgForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
