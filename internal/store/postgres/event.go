package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/boardsync/internal/domain"
)

const uniqueViolation = "23505"

// EventRepo is the append-only per-workspace event log.
type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Append stores one event and returns its sequence number. Appends to the
// same workspace are serialised with a transaction-scoped advisory lock so
// sequence numbers stay gapless across server instances.
func (r *EventRepo) Append(ctx context.Context, workspaceID uuid.UUID, typ domain.EventType, payload json.RawMessage) (int64, error) {
	var seq int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, workspaceID.String()); err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			`INSERT INTO workspace_events (workspace_id, seq, type, payload)
			 SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3
			 FROM workspace_events WHERE workspace_id = $1
			 RETURNING seq`,
			workspaceID, string(typ), []byte(payload),
		).Scan(&seq)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("eventRepo.Append: %w", domain.ErrConflict)
		}
		return 0, fmt.Errorf("eventRepo.Append: %w", err)
	}

	return seq, nil
}

// List returns the events of a workspace with seq > afterSeq in order.
func (r *EventRepo) List(ctx context.Context, workspaceID uuid.UUID, afterSeq int64) ([]domain.RecordedEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT workspace_id, seq, type, payload, created_at
		 FROM workspace_events WHERE workspace_id = $1 AND seq > $2
		 ORDER BY seq`,
		workspaceID, afterSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("eventRepo.List: %w", err)
	}
	defer rows.Close()

	var out []domain.RecordedEvent
	for rows.Next() {
		var (
			ev      domain.RecordedEvent
			typ     string
			payload []byte
		)
		if err := rows.Scan(&ev.WorkspaceID, &ev.Seq, &typ, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("eventRepo.List: scan: %w", err)
		}
		ev.Type = domain.EventType(typ)
		ev.Payload = payload
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventRepo.List: rows: %w", err)
	}

	return out, nil
}
