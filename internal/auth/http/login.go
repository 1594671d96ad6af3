package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/opsdeskhq/opsdesk/internal/auth/obs"
	"github.com/opsdeskhq/opsdesk/internal/auth/service"
	"github.com/opsdeskhq/opsdesk/pkg/httpx"
	"github.com/opsdeskhq/opsdesk/pkg/slogx"
)

type LoginHandler struct {
	AuthService *service.AuthService
	Secure      bool
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ServeHTTP handles POST /auth/login: verifies credentials, installs the
// cookie pair and returns the principal projection with the access token.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	principal, pair, err := h.AuthService.Login(ctx, req.Email, req.Password, httpx.ClientIP(r))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			obs.ObserveLogin("rejected")
			httpx.WriteError(w, http.StatusUnauthorized, MsgInvalidCredentials)
			return
		}
		log.Error("login failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	obs.ObserveLogin("ok")
	setAuthCookies(w, pair, h.Secure)
	httpx.WriteData(w, http.StatusOK, LoginResponse{
		Principal:   toPrincipalResponse(principal),
		AccessToken: pair.AccessToken,
		ExpiresIn:   int(pair.AccessTTL.Seconds()),
	}, "login successful")
}
