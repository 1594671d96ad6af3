package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsdeskhq/opsdesk/pkg/jwtx"
	"github.com/opsdeskhq/opsdesk/pkg/rolex"
)

func testCodec(t *testing.T) *jwtx.Codec {
	t.Helper()
	c, err := jwtx.NewCodec(
		[]byte("httpx-test-access-key-0123456789abcd"),
		[]byte("httpx-test-refresh-key-0123456789abc"),
		"opsdesk-auth", time.Hour, 7*24*time.Hour)
	require.NoError(t, err)
	return c
}

func okHandler(hit *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hit = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthnMiddleware(t *testing.T) {
	t.Parallel()
	codec := testCodec(t)

	access, _, err := codec.Issue("p1", "a@b.c", "EMPLOYEE", "sid")
	require.NoError(t, err)

	t.Run("accepts cookie credential and binds identity", func(t *testing.T) {
		var id Identity
		var bound bool
		h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, bound = IdentityFromContext(r.Context())
		}), AuthnMiddleware(codec))

		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: access})
		h.ServeHTTP(httptest.NewRecorder(), req)

		require.True(t, bound)
		require.Equal(t, "p1", id.PrincipalID)
		require.Equal(t, rolex.Employee, id.Role)
	})

	t.Run("accepts Authorization header when cookie absent", func(t *testing.T) {
		var hit bool
		h := Chain(okHandler(&hit), AuthnMiddleware(codec))

		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.True(t, hit)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("prefers cookie over header", func(t *testing.T) {
		var hit bool
		h := Chain(okHandler(&hit), AuthnMiddleware(codec))

		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "garbage"})
		req.Header.Set("Authorization", "Bearer "+access)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.False(t, hit, "garbage cookie must win over a valid header")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects missing and invalid credentials identically", func(t *testing.T) {
		for _, setup := range []func(*http.Request){
			func(r *http.Request) {},
			func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "nope"})
			},
		} {
			var hit bool
			h := Chain(okHandler(&hit), AuthnMiddleware(codec))

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.False(t, hit)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Contains(t, rec.Body.String(), MsgAuthRequired)
		}
	})
}

func TestRequireRole(t *testing.T) {
	t.Parallel()
	codec := testCodec(t)

	issue := func(role rolex.Role) string {
		access, _, err := codec.Issue("p1", "a@b.c", role.String(), "sid")
		require.NoError(t, err)
		return access
	}

	serve := func(token string, required ...rolex.Role) (*httptest.ResponseRecorder, *bool) {
		var hit bool
		h := Chain(okHandler(&hit),
			AuthnMiddleware(codec),
			RequireRole(nil, required...),
		)
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if token != "" {
			req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec, &hit
	}

	t.Run("higher role passes lower requirement", func(t *testing.T) {
		rec, hit := serve(issue(rolex.Owner), rolex.Employee)
		require.True(t, *hit)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("lower role is forbidden", func(t *testing.T) {
		rec, hit := serve(issue(rolex.Employee), rolex.Owner)
		require.False(t, *hit)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("minimum of required levels applies", func(t *testing.T) {
		rec, hit := serve(issue(rolex.Administrator), rolex.Owner, rolex.Employee)
		require.True(t, *hit)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("empty requirement passes", func(t *testing.T) {
		rec, hit := serve(issue(rolex.Employee))
		require.True(t, *hit)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("never runs unauthenticated", func(t *testing.T) {
		var hit bool
		h := Chain(okHandler(&hit), RequireRole(nil, rolex.Employee))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		require.False(t, hit)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("denial hook fires on 403", func(t *testing.T) {
		var denied *Identity
		h := Chain(okHandler(new(bool)),
			AuthnMiddleware(codec),
			RequireRole(func(r *http.Request, id Identity) { denied = &id }, rolex.Owner),
		)
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: issue(rolex.Employee)})
		h.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, denied)
		require.Equal(t, rolex.Employee, denied.Role)
	})
}

func TestRateLimitByIP(t *testing.T) {
	t.Parallel()

	var hits int
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}), RateLimitByIP(RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.1.1.1:4444"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if i < 2 {
			require.Equal(t, http.StatusOK, rec.Code)
		} else {
			require.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
	require.Equal(t, 2, hits)

	// A different source address has its own bucket.
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.1.1.2:4444"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:1234"
	require.Equal(t, "192.0.2.7", ClientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.4")
	require.Equal(t, "198.51.100.4", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "203.0.113.9", ClientIP(r))

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.RemoteAddr = ""
	require.Equal(t, "unknown", ClientIP(r2))
}
