package domain

import "time"

// AuditEvent is one recorded lifecycle mutation: who did what to which
// listing, with old/new snapshots of the fields the operation touched.
// Events are a write-only side channel; nothing in the core reads them
// back.
type AuditEvent struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actor_id"`
	ActorRole Role           `json:"actor_role"`
	Action    Action         `json:"action"`
	EntityID  string         `json:"entity_id"`
	Old       map[string]any `json:"old,omitempty"`
	New       map[string]any `json:"new,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
