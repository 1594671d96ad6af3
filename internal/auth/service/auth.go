package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/opsdeskhq/opsdesk/internal/auth/domain"
	"github.com/opsdeskhq/opsdesk/internal/auth/obs"
	"github.com/opsdeskhq/opsdesk/internal/auth/store"
	"github.com/opsdeskhq/opsdesk/pkg/cryptox"
	"github.com/opsdeskhq/opsdesk/pkg/idx"
	"github.com/opsdeskhq/opsdesk/pkg/jwtx"
	"github.com/opsdeskhq/opsdesk/pkg/slogx"
)

const auditEntityPrincipal = "PRINCIPAL"

var (
	// ErrInvalidCredentials covers every login failure: unknown email,
	// deactivated account and wrong password all surface identically so
	// the endpoint cannot be used to probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrInvalidToken covers every refresh failure, including a replayed
	// refresh token that lost the rotation race.
	ErrInvalidToken = errors.New("invalid_token")
)

// AuthService implements the login, refresh, logout and identity lookup
// flows on top of the store and the token codec.
type AuthService struct {
	Store store.Store
	Codec *jwtx.Codec
	Audit AuditRecorder
}

// Login verifies the credentials and mints a fresh access/refresh pair
// backed by a new session lineage. origin is the client address recorded
// in the audit trail.
func (s *AuthService) Login(ctx context.Context, email, password, origin string) (domain.Principal, domain.TokenPair, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)
	email = strings.TrimSpace(strings.ToLower(email))

	p, err := s.Store.Principals().FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("login rejected", slog.String("reason", "unknown_or_inactive"))
			s.record(domain.AuditLoginFailed, nil, email, origin)
			return domain.Principal{}, domain.TokenPair{}, ErrInvalidCredentials
		}
		return domain.Principal{}, domain.TokenPair{}, err
	}

	if err := cryptox.VerifyPassword(password, p.PasswordHash); err != nil {
		l.Info("login rejected", slog.String("reason", "password_mismatch"), slog.String("principal_id", p.ID))
		s.record(domain.AuditLoginFailed, &p.ID, p.ID, origin)
		return domain.Principal{}, domain.TokenPair{}, ErrInvalidCredentials
	}

	// The session row id doubles as the lineage id carried inside the
	// refresh token, so reuse of an already-rotated token can be traced
	// back to its lineage.
	sid := idx.New().String()

	accessToken, refreshToken, err := s.Codec.IssueAt(p.ID, p.Email, string(p.Role), sid, now)
	if err != nil {
		return domain.Principal{}, domain.TokenPair{}, err
	}

	sess := domain.RefreshSession{
		ID:          sid,
		PrincipalID: p.ID,
		TokenHash:   cryptox.FingerprintToken(refreshToken),
		ExpiresAt:   now.Add(s.Codec.RefreshTTL),
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().CreateSession(ctx, sess); err != nil {
			return err
		}
		return tx.Principals().TouchLastAccess(ctx, p.ID, now)
	})
	if err != nil {
		return domain.Principal{}, domain.TokenPair{}, err
	}

	s.record(domain.AuditLogin, &p.ID, p.ID, origin)
	l.Info("login succeeded", slog.String("principal_id", p.ID), slog.String("role", string(p.Role)))

	return p, domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessTTL:    s.Codec.AccessTTL,
		RefreshTTL:   s.Codec.RefreshTTL,
	}, nil
}

// Refresh rotates the presented refresh token: it verifies the token,
// mints a new pair on the same session lineage, and atomically swaps the
// stored fingerprint. Of two concurrent calls presenting the same token
// exactly one wins; the loser gets ErrInvalidToken.
//
// A replay of an already-rotated token against a still-live lineage is
// treated as theft: the whole lineage is revoked and a TOKEN_REUSE event
// is recorded.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh, origin string) (domain.Principal, domain.TokenPair, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	claims, err := s.Codec.VerifyRefresh(rawRefresh)
	if err != nil {
		return domain.Principal{}, domain.TokenPair{}, ErrInvalidToken
	}

	p, err := s.Store.Principals().GetActivePrincipalByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, domain.TokenPair{}, ErrInvalidToken
		}
		return domain.Principal{}, domain.TokenPair{}, err
	}

	accessToken, refreshToken, err := s.Codec.IssueAt(p.ID, p.Email, string(p.Role), claims.SID, now)
	if err != nil {
		return domain.Principal{}, domain.TokenPair{}, err
	}

	presentedFP := cryptox.FingerprintToken(rawRefresh)
	nextFP := cryptox.FingerprintToken(refreshToken)

	err = s.Store.Sessions().RotateSession(ctx, presentedFP, nextFP, now.Add(s.Codec.RefreshTTL), now)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.handleRotationConflict(ctx, claims.SID, presentedFP, p.ID, origin, now)
			return domain.Principal{}, domain.TokenPair{}, ErrInvalidToken
		}
		return domain.Principal{}, domain.TokenPair{}, err
	}

	s.record(domain.AuditTokenRefresh, &p.ID, p.ID, origin)
	l.Debug("refresh rotation succeeded", slog.String("principal_id", p.ID), slog.String("session_id", claims.SID))

	return p, domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessTTL:    s.Codec.AccessTTL,
		RefreshTTL:   s.Codec.RefreshTTL,
	}, nil
}

// handleRotationConflict inspects a lost rotation. A well-signed token
// whose fingerprint no longer matches a still-live lineage means the
// token was already rotated once and is now being replayed, so the
// lineage is revoked outright.
func (s *AuthService) handleRotationConflict(ctx context.Context, sid, presentedFP, principalID, origin string, now time.Time) {
	l := slogx.FromContext(ctx)

	sess, err := s.Store.Sessions().GetSessionByID(ctx, sid)
	if err != nil {
		// Lineage already swept or never existed; nothing to revoke.
		return
	}
	if !sess.Live(now) || sess.TokenHash == presentedFP {
		return
	}

	if err := s.Store.Sessions().RevokeSessionByID(ctx, sid); err != nil {
		l.Error("failed to revoke session lineage after token reuse", slog.Any("error", err), slog.String("session_id", sid))
		return
	}

	obs.ObserveTokenReuse()
	s.record(domain.AuditTokenReuse, &principalID, principalID, origin)
	l.Warn("refresh token reuse detected, lineage revoked",
		slog.String("principal_id", principalID),
		slog.String("session_id", sid),
	)
}

// Logout revokes the session holding the presented refresh token. The
// operation is idempotent: an already-revoked, expired or unknown token
// still yields success. actorID, when known, attributes the audit event.
func (s *AuthService) Logout(ctx context.Context, rawRefresh string, actorID *string, origin string) error {
	if rawRefresh == "" {
		return nil
	}

	if err := s.Store.Sessions().RevokeSessionByHash(ctx, cryptox.FingerprintToken(rawRefresh)); err != nil {
		return err
	}

	entityID := "unknown"
	if actorID != nil {
		entityID = *actorID
	}
	s.record(domain.AuditLogout, actorID, entityID, origin)
	return nil
}

// LogoutEverywhere revokes every live session of the principal, ending
// all of their devices at once.
func (s *AuthService) LogoutEverywhere(ctx context.Context, principalID, origin string) error {
	if err := s.Store.Sessions().RevokeAllPrincipalSessions(ctx, principalID); err != nil {
		return err
	}
	s.record(domain.AuditLogout, &principalID, principalID, origin)
	return nil
}

// Me returns the active principal behind a verified access token.
// store.ErrNotFound passes through for a principal deactivated after the
// token was issued.
func (s *AuthService) Me(ctx context.Context, principalID string) (domain.Principal, error) {
	return s.Store.Principals().GetActivePrincipalByID(ctx, principalID)
}

// RecentAuditEvents returns the newest audit events, capped at limit.
func (s *AuthService) RecentAuditEvents(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.Store.AuditEvents().ListRecentAuditEvents(ctx, limit)
}

// RecordDenied logs an authorization rejection on a protected route.
func (s *AuthService) RecordDenied(principalID, origin string) {
	s.record(domain.AuditDenied, &principalID, principalID, origin)
}

func (s *AuthService) record(action domain.AuditAction, actorID *string, entityID, origin string) {
	if s.Audit == nil {
		return
	}
	s.Audit.Record(domain.AuditEvent{
		ActorID:    actorID,
		Action:     action,
		EntityType: auditEntityPrincipal,
		EntityID:   entityID,
		Origin:     origin,
	})
}
