package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/protocol"
)

// BoardService abstracts the server of record for handler testing.
// *service.Service satisfies this interface.
type BoardService interface {
	Snapshot(ctx context.Context, workspaceID uuid.UUID) (protocol.BoardSnapshot, error)
	Execute(ctx context.Context, workspaceID uuid.UUID, cmd domain.Command) (domain.Event, int64, error)
	Members(ctx context.Context, workspaceID uuid.UUID) ([]*domain.Member, error)
	UpsertMember(ctx context.Context, m *domain.Member) error
}
