package models

import "time"

const (
	AuditEntityWallet      = "wallet"
	AuditEntityTransaction = "transaction"
	AuditEntityItem        = "item"
)

// AuditLog is an append-only record of a committed wallet event.
type AuditLog struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   *string        `json:"entity_id"`
	ActorID    *string        `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}
