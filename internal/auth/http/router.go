package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/opsdeskhq/opsdesk/internal/auth/obs"
	"github.com/opsdeskhq/opsdesk/internal/auth/service"
	"github.com/opsdeskhq/opsdesk/internal/auth/store"
	"github.com/opsdeskhq/opsdesk/pkg/httpx"
	"github.com/opsdeskhq/opsdesk/pkg/jwtx"
	"github.com/opsdeskhq/opsdesk/pkg/rolex"
	"github.com/opsdeskhq/opsdesk/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        *jwtx.Codec
	buildVersion string
	secure       bool
	startTime    time.Time
	logger       *slog.Logger

	store       store.Store
	AuthService *service.AuthService
}

// NewRouter builds a router with the default middleware chain. secure
// controls the Secure flag on credential cookies; disable only in dev.
func NewRouter(
	codec *jwtx.Codec,
	buildVersion string,
	secure bool,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		buildVersion: buildVersion,
		secure:       secure,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		obs.Instrument,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// POST /auth/login - strict rate limit by IP (credential guessing)
	loginHandler := &LoginHandler{AuthService: r.AuthService, Secure: r.secure}
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /auth/refresh - strict rate limit by IP (token guessing)
	refreshHandler := &RefreshHandler{AuthService: r.AuthService, Secure: r.secure}
	r.Mux.Handle("POST /auth/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /auth/logout - authenticated; the revocation itself stays
	// idempotent once the caller is in
	logoutHandler := &LogoutHandler{AuthService: r.AuthService, Secure: r.secure}
	r.Mux.Handle("POST /auth/logout",
		httpx.Chain(logoutHandler,
			httpx.AuthnMiddleware(r.codec),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// GET /auth/me - authenticated, any role
	meHandler := &MeHandler{AuthService: r.AuthService}
	r.Mux.Handle("GET /auth/me",
		httpx.Chain(meHandler,
			httpx.AuthnMiddleware(r.codec),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// GET /auth/audit - administrators and above; denials feed the trail
	auditHandler := &AuditLogHandler{AuthService: r.AuthService}
	r.Mux.Handle("GET /auth/audit",
		httpx.Chain(auditHandler,
			httpx.AuthnMiddleware(r.codec),
			httpx.RequireRole(r.onDenied, rolex.Administrator, rolex.Owner),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /metrics", obs.Handler())
}

func (r *Router) onDenied(req *http.Request, id httpx.Identity) {
	r.AuthService.RecordDenied(id.PrincipalID, httpx.ClientIP(req))
}
