package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opsdeskhq/opsdesk/internal/auth/obs"
	"github.com/opsdeskhq/opsdesk/internal/auth/service"
	"github.com/opsdeskhq/opsdesk/pkg/httpx"
	"github.com/opsdeskhq/opsdesk/pkg/slogx"
)

type RefreshHandler struct {
	AuthService *service.AuthService
	Secure      bool
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ServeHTTP handles POST /auth/refresh: rotates the presented refresh
// token and installs a fresh cookie pair. A replayed or otherwise
// invalid token clears the cookies so a broken client stops retrying.
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req refreshRequest
	if r.Body != nil {
		// Body is optional; browser clients rely on the cookie alone.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	raw := refreshTokenFromRequest(r, req.RefreshToken)
	if raw == "" {
		httpx.WriteError(w, http.StatusUnauthorized, MsgInvalidToken)
		return
	}

	principal, pair, err := h.AuthService.Refresh(ctx, raw, httpx.ClientIP(r))
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			obs.ObserveRefresh("rejected")
			clearAuthCookies(w, h.Secure)
			httpx.WriteError(w, http.StatusUnauthorized, MsgInvalidToken)
			return
		}
		log.Error("refresh failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	obs.ObserveRefresh("ok")
	setAuthCookies(w, pair, h.Secure)
	httpx.WriteData(w, http.StatusOK, LoginResponse{
		Principal:   toPrincipalResponse(principal),
		AccessToken: pair.AccessToken,
		ExpiresIn:   int(pair.AccessTTL.Seconds()),
	}, "token refreshed")
}
