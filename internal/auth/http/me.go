package http

import (
	"errors"
	"net/http"

	"github.com/opsdeskhq/opsdesk/internal/auth/service"
	"github.com/opsdeskhq/opsdesk/internal/auth/store"
	"github.com/opsdeskhq/opsdesk/pkg/httpx"
	"github.com/opsdeskhq/opsdesk/pkg/slogx"
)

type MeHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP handles GET /auth/me. The access token alone is not trusted
// as the source of truth: the live principal record is read, so a
// principal deactivated after issuance gets 404 even with a valid token.
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.MsgAuthRequired)
		return
	}

	principal, err := h.AuthService.Me(ctx, id.PrincipalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "principal not found")
			return
		}
		log.Error("failed to load principal", "principal_id", id.PrincipalID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	httpx.WriteData(w, http.StatusOK, toPrincipalResponse(principal), "")
}
