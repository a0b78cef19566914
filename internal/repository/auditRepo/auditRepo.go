package auditRepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"share-service/internal/model/auditInfo"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Append inserts one audit row. Rows are never updated or deleted.
func (r *AuditRepo) Append(ctx context.Context, event *auditInfo.Event) error {
	var details []byte
	if len(event.Details) > 0 {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_events (id, actor_id, action, file_id, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.ActorID, string(event.Action), event.FileID, details, event.Timestamp)
	return err
}

func (r *AuditRepo) ListByActor(ctx context.Context, actorID uint32, limit int) ([]*auditInfo.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, actor_id, action, file_id, details, created_at
		 FROM audit_events WHERE actor_id = $1
		 ORDER BY created_at DESC LIMIT $2`, actorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*auditInfo.Event
	for rows.Next() {
		var e auditInfo.Event
		var action string
		var details []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &action, &e.FileID, &details, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Action = auditInfo.Action(action)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode audit details: %w", err)
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
