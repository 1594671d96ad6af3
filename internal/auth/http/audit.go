package http

import (
	"net/http"
	"strconv"

	"github.com/opsdeskhq/opsdesk/internal/auth/service"
	"github.com/opsdeskhq/opsdesk/pkg/httpx"
	"github.com/opsdeskhq/opsdesk/pkg/slogx"
)

type AuditLogHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP handles GET /auth/audit: the newest audit events, for
// administrators and above. limit query param caps the page size.
func (h *AuditLogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.AuthService.RecentAuditEvents(ctx, limit)
	if err != nil {
		log.Error("failed to list audit events", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]AuditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, AuditEventResponse{
			ID:         e.ID,
			ActorID:    e.ActorID,
			Action:     string(e.Action),
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Origin:     e.Origin,
			CreatedAt:  e.CreatedAt,
		})
	}

	httpx.WriteData(w, http.StatusOK, out, "")
}
