package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsdeskhq/opsdesk/internal/auth/domain"
	"github.com/opsdeskhq/opsdesk/internal/auth/service"
	"github.com/opsdeskhq/opsdesk/internal/auth/store"
	"github.com/opsdeskhq/opsdesk/internal/auth/store/drivers/sqlite"
	"github.com/opsdeskhq/opsdesk/pkg/cryptox"
	"github.com/opsdeskhq/opsdesk/pkg/httpx"
	"github.com/opsdeskhq/opsdesk/pkg/idx"
	"github.com/opsdeskhq/opsdesk/pkg/jwtx"
	"github.com/opsdeskhq/opsdesk/pkg/rolex"
)

const testPassword = "correct horse battery staple"

type recordedAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (c *recordedAudit) Record(e domain.AuditEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *recordedAudit) has(action domain.AuditAction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.Action == action {
			return true
		}
	}
	return false
}

type testEnv struct {
	server *httptest.Server
	client *http.Client
	store  store.Store
	codec  *jwtx.Codec
	audit  *recordedAudit
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		filepath.Join(t.TempDir(), "auth.db"))
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	codec, err := jwtx.NewCodec(
		[]byte("test-access-signing-key-32bytes!"),
		[]byte("test-refresh-signing-key-32byte!"),
		"opsdesk-test", time.Hour, 7*24*time.Hour,
	)
	require.NoError(t, err)

	audit := &recordedAudit{}
	logger := slog.New(slog.DiscardHandler)

	router := NewRouter(codec, "test", false, st, logger)
	router.AuthService = &service.AuthService{Store: st, Codec: codec, Audit: audit}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		server: srv,
		client: &http.Client{Jar: jar},
		store:  st,
		codec:  codec,
		audit:  audit,
	}
}

func (e *testEnv) seedPrincipal(t *testing.T, role rolex.Role) domain.Principal {
	t.Helper()

	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(t, err)

	p := domain.Principal{
		ID:           idx.New().String(),
		Email:        strings.ToLower(fmt.Sprintf("%s@example.com", idx.New())),
		FullName:     "Flow Tester",
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	require.NoError(t, e.store.Principals().CreatePrincipal(context.Background(), p))
	return p
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := e.client.Post(e.server.URL+path, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()

	resp, err := e.client.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) httpx.Envelope {
	t.Helper()
	defer resp.Body.Close()

	var env httpx.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func (e *testEnv) login(t *testing.T, email string) httpx.Envelope {
	t.Helper()

	resp := e.postJSON(t, "/auth/login", map[string]string{
		"email":    email,
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeEnvelope(t, resp)
}

// refreshCookieValue digs the refresh credential out of the client jar.
func (e *testEnv) refreshCookieValue(t *testing.T) string {
	t.Helper()

	u, err := url.Parse(e.server.URL)
	require.NoError(t, err)
	u.Path = "/auth/refresh"

	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == RefreshTokenCookie {
			return c.Value
		}
	}
	return ""
}

func TestLoginFlowSetsCookiesAndIdentity(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedPrincipal(t, rolex.Administrator)

	envlp := env.login(t, p.Email)
	require.True(t, envlp.Success)

	data, ok := envlp.Data.(map[string]any)
	require.True(t, ok)
	require.NotEmpty(t, data["accessToken"])

	principal, ok := data["principal"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, p.Email, principal["email"])
	require.Equal(t, "ADMINISTRATOR", principal["role"])
	require.NotContains(t, principal, "passwordHash")

	// The cookie jar now authenticates /auth/me without a header.
	resp := env.get(t, "/auth/me")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decodeEnvelope(t, resp)
	require.True(t, me.Success)
}

func TestLoginValidationAndCredentialErrors(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedPrincipal(t, rolex.Employee)

	t.Run("missing fields", func(t *testing.T) {
		resp := env.postJSON(t, "/auth/login", map[string]string{"email": p.Email})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, err := env.client.Post(env.server.URL+"/auth/login", "application/json",
			strings.NewReader("{not json"))
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		wrong := env.postJSON(t, "/auth/login", map[string]string{
			"email": p.Email, "password": "nope",
		})
		unknown := env.postJSON(t, "/auth/login", map[string]string{
			"email": "ghost@example.com", "password": "nope",
		})
		require.Equal(t, http.StatusUnauthorized, wrong.StatusCode)
		require.Equal(t, http.StatusUnauthorized, unknown.StatusCode)

		wrongEnv := decodeEnvelope(t, wrong)
		unknownEnv := decodeEnvelope(t, unknown)
		require.Equal(t, wrongEnv.Error, unknownEnv.Error)
	})
}

func TestProtectedRouteRejectsMissingAndExpiredTokens(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedPrincipal(t, rolex.Employee)

	t.Run("no credential", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + "/auth/me")
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("expired access token", func(t *testing.T) {
		// Issued two hours in the past, so the 1h access TTL has lapsed
		// while the refresh credential is still comfortably live.
		expired, _, err := env.codec.IssueAt(p.ID, p.Email, string(p.Role), idx.New().String(),
			time.Now().UTC().Add(-2*time.Hour))
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodGet, env.server.URL+"/auth/me", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+expired)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestRefreshRotationAndReplayFlow(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedPrincipal(t, rolex.Employee)
	env.login(t, p.Email)

	stolen := env.refreshCookieValue(t)
	require.NotEmpty(t, stolen)

	// Legitimate refresh rotates the pair.
	resp := env.postJSON(t, "/auth/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	rotated := env.refreshCookieValue(t)
	require.NotEmpty(t, rotated)
	require.NotEqual(t, stolen, rotated)

	// /auth/me still works on the fresh access cookie.
	me := env.get(t, "/auth/me")
	require.Equal(t, http.StatusOK, me.StatusCode)
	me.Body.Close()

	// Replaying the pre-rotation token from a cookie-less client fails
	// with the generic message and burns the lineage.
	replay, err := http.Post(env.server.URL+"/auth/refresh", "application/json",
		strings.NewReader(fmt.Sprintf(`{"refreshToken":%q}`, stolen)))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, replay.StatusCode)
	replayEnv := decodeEnvelope(t, replay)
	require.False(t, replayEnv.Success)

	require.True(t, env.audit.has(domain.AuditTokenReuse))

	// The legitimately rotated token died with the lineage.
	resp = env.postJSON(t, "/auth/refresh", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestLogoutThenRefreshFails(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedPrincipal(t, rolex.Employee)
	envlp := env.login(t, p.Email)

	data, ok := envlp.Data.(map[string]any)
	require.True(t, ok)
	access, _ := data["accessToken"].(string)
	require.NotEmpty(t, access)

	resp := env.postJSON(t, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Logout cleared the jar's cookies; refreshing now has nothing to
	// present and is rejected.
	resp = env.postJSON(t, "/auth/refresh", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// A second logout on a still-live access token is a success even
	// though no refresh session is left to revoke.
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/auth/logout", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+access)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.True(t, env.audit.has(domain.AuditLogout))
}

func TestLogoutRejectsAnonymousRequests(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedPrincipal(t, rolex.Employee)
	env.login(t, p.Email)

	stolen := env.refreshCookieValue(t)
	require.NotEmpty(t, stolen)

	// A cookie-less client presenting only the refresh token must not be
	// able to revoke it; logout demands a verified access credential.
	resp, err := http.Post(env.server.URL+"/auth/logout", "application/json",
		strings.NewReader(fmt.Sprintf(`{"refreshToken":%q}`, stolen)))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	envlp := decodeEnvelope(t, resp)
	require.False(t, envlp.Success)
	require.Equal(t, httpx.MsgAuthRequired, envlp.Error)

	// The session survived the anonymous attempt.
	resp = env.postJSON(t, "/auth/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestAuditRouteEnforcesRoleHierarchy(t *testing.T) {
	env := newTestEnv(t)

	t.Run("employee is forbidden", func(t *testing.T) {
		p := env.seedPrincipal(t, rolex.Employee)
		env.login(t, p.Email)

		resp := env.get(t, "/auth/audit")
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()

		require.True(t, env.audit.has(domain.AuditDenied))
	})

	t.Run("administrator is allowed", func(t *testing.T) {
		p := env.seedPrincipal(t, rolex.Administrator)
		env.login(t, p.Email)

		resp := env.get(t, "/auth/audit")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		envlp := decodeEnvelope(t, resp)
		require.True(t, envlp.Success)
	})
}

func TestMeReturns404ForDeactivatedPrincipal(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedPrincipal(t, rolex.Employee)
	env.login(t, p.Email)

	// Deactivate behind the token's back; the live record wins.
	require.NoError(t, env.store.Principals().DeactivatePrincipal(context.Background(), p.ID))

	resp := env.get(t, "/auth/me")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/livez", "/readyz", "/metrics"} {
		resp := env.get(t, path)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		resp.Body.Close()
	}
}
