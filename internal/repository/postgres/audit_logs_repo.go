package postgres

import (
	"context"

	"github.com/kasrafouladi/Elmosyar/internal/models"
)

type auditLogsRepo struct{ q querier }

func (r *auditLogsRepo) Create(ctx context.Context, l models.AuditLog) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO audit_logs (entity_type, entity_id, actor_id, action, details)
		 VALUES ($1, $2, $3, $4, $5)`,
		l.EntityType, l.EntityID, l.ActorID, l.Action, l.Details,
	)
	return err
}
