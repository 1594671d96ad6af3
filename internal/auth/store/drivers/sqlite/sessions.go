package sqlite

import (
	"context"
	"time"

	"github.com/opsdeskhq/opsdesk/internal/auth/domain"
	"github.com/opsdeskhq/opsdesk/internal/auth/store"
)

type sessionsRepo struct {
	db querier
}

const sessionColumns = `id, principal_id, token_hash, expires_at, revoked, created_at, updated_at`

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.RefreshSession) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_sessions (id, principal_id, token_hash, expires_at, revoked, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.PrincipalID, s.TokenHash, s.ExpiresAt.UTC(), s.Revoked, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *sessionsRepo) GetSessionByHash(ctx context.Context, hash string) (domain.RefreshSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM refresh_sessions WHERE token_hash = ?`, hash)
	return scanSession(row)
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.RefreshSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM refresh_sessions WHERE id = ?`, id)
	return scanSession(row)
}

// RotateSession is the replay-safety crux: a single conditional UPDATE
// matches the presented fingerprint only while the row is live, so two
// concurrent rotations of the same fingerprint cannot both succeed. The
// loser matches zero rows and gets ErrConflict.
func (r *sessionsRepo) RotateSession(ctx context.Context, presentedHash, nextHash string, expiresAt, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_sessions
		 SET token_hash = ?, expires_at = ?, updated_at = ?
		 WHERE token_hash = ? AND revoked = 0 AND expires_at > ?`,
		nextHash, expiresAt.UTC(), now.UTC(), presentedHash, now.UTC(),
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (r *sessionsRepo) RevokeSessionByHash(ctx context.Context, hash string) error {
	// Idempotent: revoking an already-revoked or absent session succeeds.
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_sessions SET revoked = 1, updated_at = ? WHERE token_hash = ?`,
		time.Now().UTC(), hash,
	)
	return err
}

func (r *sessionsRepo) RevokeSessionByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_sessions SET revoked = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	return err
}

func (r *sessionsRepo) RevokeAllPrincipalSessions(ctx context.Context, principalID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_sessions SET revoked = 1, updated_at = ? WHERE principal_id = ? AND revoked = 0`,
		time.Now().UTC(), principalID,
	)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_sessions WHERE expires_at <= ?`, now.UTC())
	return err
}
