package http

import (
	"encoding/json"
	"net/http"

	"github.com/opsdeskhq/opsdesk/internal/auth/service"
	"github.com/opsdeskhq/opsdesk/pkg/httpx"
	"github.com/opsdeskhq/opsdesk/pkg/slogx"
)

type LogoutHandler struct {
	AuthService *service.AuthService
	Secure      bool
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
	Everywhere   bool   `json:"everywhere"`
}

// ServeHTTP handles POST /auth/logout: revokes the presented refresh
// session and clears the cookies. Requires a valid access credential;
// the revocation itself is idempotent, so logging out with an
// already-revoked or absent refresh session still succeeds. With
// "everywhere" set, every session of the principal is revoked.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.MsgAuthRequired)
		return
	}

	var req logoutRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	raw := refreshTokenFromRequest(r, req.RefreshToken)
	origin := httpx.ClientIP(r)

	var err error
	switch {
	case req.Everywhere:
		err = h.AuthService.LogoutEverywhere(ctx, id.PrincipalID, origin)
	default:
		err = h.AuthService.Logout(ctx, raw, &id.PrincipalID, origin)
	}
	if err != nil {
		log.Error("logout failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	clearAuthCookies(w, h.Secure)
	httpx.WriteData(w, http.StatusOK, nil, "logged out")
}
