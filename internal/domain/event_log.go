package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RecordedEvent is one entry of a workspace's append-only event log.
// Seq is strictly increasing per workspace.
type RecordedEvent struct {
	WorkspaceID uuid.UUID
	Seq         int64
	Type        EventType
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type EventLog interface {
	Append(ctx context.Context, workspaceID uuid.UUID, typ EventType, payload json.RawMessage) (int64, error)
	List(ctx context.Context, workspaceID uuid.UUID, afterSeq int64) ([]RecordedEvent, error)
}
