package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/opsdeskhq/opsdesk/internal/auth/domain"
)

type auditEventsRepo struct {
	db querier
}

func (r *auditEventsRepo) CreateAuditEvent(ctx context.Context, e domain.AuditEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Origin == "" {
		e.Origin = "unknown"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, actor_id, action_type, entity_type, entity_id, origin, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, mapOptionalString(e.ActorID), string(e.Action),
		e.EntityType, e.EntityID, e.Origin, e.CreatedAt,
	)
	return err
}

func (r *auditEventsRepo) ListRecentAuditEvents(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, actor_id, action_type, entity_type, entity_id, origin, created_at
		 FROM audit_events ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var (
			e       domain.AuditEvent
			actorID sql.NullString
			action  string
		)
		if err := rows.Scan(&e.ID, &actorID, &action, &e.EntityType, &e.EntityID, &e.Origin, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActorID = mapNullStringPtr(actorID)
		e.Action = domain.AuditAction(action)
		out = append(out, e)
	}
	return out, rows.Err()
}
