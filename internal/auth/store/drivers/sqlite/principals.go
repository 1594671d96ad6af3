package sqlite

import (
	"context"
	"time"

	"github.com/opsdeskhq/opsdesk/internal/auth/domain"
)

type principalsRepo struct {
	db querier
}

const principalColumns = `id, email, full_name, password_hash, role,
	branch_id, is_active, last_access, created_at, updated_at`

func (r *principalsRepo) FindActiveByEmail(ctx context.Context, email string) (domain.Principal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE email = ? AND is_active = 1`,
		email,
	)
	return scanPrincipal(row)
}

func (r *principalsRepo) GetActivePrincipalByID(ctx context.Context, id string) (domain.Principal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE id = ? AND is_active = 1`,
		id,
	)
	return scanPrincipal(row)
}

func (r *principalsRepo) CreatePrincipal(ctx context.Context, p domain.Principal) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO principals (id, email, full_name, password_hash, role,
			branch_id, is_active, last_access, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		p.ID, p.Email, p.FullName, p.PasswordHash, p.Role.String(),
		mapOptionalString(p.BranchID), p.Active, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *principalsRepo) DeactivatePrincipal(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE principals SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	return err
}

func (r *principalsRepo) TouchLastAccess(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE principals SET last_access = ?, updated_at = ? WHERE id = ?`,
		at, at, id,
	)
	return err
}
