package httpx

import (
	"context"

	"github.com/opsdeskhq/opsdesk/pkg/rolex"
)

type ctxKey string

const ctxKeyIdentity ctxKey = "identity"

// Identity is the authenticated principal bound to a request context by
// AuthnMiddleware. It is a snapshot of the access-token claims, not a live
// read of the principal record.
type Identity struct {
	PrincipalID string
	Email       string
	Role        rolex.Role
}

func contextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

// IdentityFromContext returns the identity bound by AuthnMiddleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return id, ok
}
