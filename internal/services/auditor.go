package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/kasrafouladi/Elmosyar/internal/models"
	repo "github.com/kasrafouladi/Elmosyar/internal/repository"
	"github.com/kasrafouladi/Elmosyar/internal/worker"
)

// Auditor writes audit entries off the request path. Entries are only
// emitted after the money movement they describe has committed, and a lost
// entry never undoes that movement.
type Auditor struct {
	logs    repo.AuditLogs
	wp      *worker.Pool
	log     *slog.Logger
	timeout time.Duration
}

func NewAuditor(logs repo.AuditLogs, wp *worker.Pool, log *slog.Logger) *Auditor {
	return &Auditor{logs: logs, wp: wp, log: log, timeout: 5 * time.Second}
}

func (a *Auditor) Transaction(t models.Transaction, actorID, action string) {
	details := map[string]any{
		"type":   string(t.Type),
		"status": string(t.Status),
		"amount": t.Amount,
	}
	if t.ToUserID != nil {
		details["to_user_id"] = *t.ToUserID
	}
	if t.ItemID != nil {
		details["item_id"] = *t.ItemID
	}
	a.emit(models.AuditLog{
		EntityType: models.AuditEntityTransaction,
		EntityID:   &t.ID,
		ActorID:    &actorID,
		Action:     action,
		Details:    details,
	})
}

func (a *Auditor) ItemSold(itemID int64, buyerID string) {
	id := formatItemID(itemID)
	a.emit(models.AuditLog{
		EntityType: models.AuditEntityItem,
		EntityID:   &id,
		ActorID:    &buyerID,
		Action:     "sold",
	})
}

func (a *Auditor) emit(l models.AuditLog) {
	if a == nil {
		return
	}
	write := func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.logs.Create(ctx, l); err != nil {
			a.log.Warn("audit write failed", "entity", l.EntityType, "action", l.Action, "err", err)
		}
	}
	if a.wp == nil || !a.wp.Submit(write) {
		write()
	}
}
