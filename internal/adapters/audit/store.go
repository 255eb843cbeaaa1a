package audit

import (
	"context"
	"database/sql"
	"encoding/json"

	"eatpoint/internal/domain"
)

const insertEventSQL = `
INSERT INTO audit_log
  (id, actor_id, actor_role, action, entity_id, old_state, new_state, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Store persists audit events into the audit_log table.
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Insert(ctx context.Context, ev domain.AuditEvent) error {
	_, err := s.db.ExecContext(ctx, insertEventSQL,
		ev.ID, ev.ActorID, string(ev.ActorRole), string(ev.Action), ev.EntityID,
		stateJSON(ev.Old), stateJSON(ev.New), ev.CreatedAt.UTC())
	return err
}

// stateJSON keeps absent snapshots as NULL rather than "{}".
func stateJSON(m map[string]any) any {
	if len(m) == 0 {
		return nil
	}
	b, _ := json.Marshal(m)
	return b
}
