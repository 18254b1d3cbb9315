package v1_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/protocol"
)

// ---------------------------------------------------------------------------
// Mock BoardService
// ---------------------------------------------------------------------------

type mockBoardService struct {
	snapshotFunc     func(ctx context.Context, workspaceID uuid.UUID) (protocol.BoardSnapshot, error)
	executeFunc      func(ctx context.Context, workspaceID uuid.UUID, cmd domain.Command) (domain.Event, int64, error)
	membersFunc      func(ctx context.Context, workspaceID uuid.UUID) ([]*domain.Member, error)
	upsertMemberFunc func(ctx context.Context, m *domain.Member) error
}

func (m *mockBoardService) Snapshot(ctx context.Context, workspaceID uuid.UUID) (protocol.BoardSnapshot, error) {
	return m.snapshotFunc(ctx, workspaceID)
}

func (m *mockBoardService) Execute(ctx context.Context, workspaceID uuid.UUID, cmd domain.Command) (domain.Event, int64, error) {
	return m.executeFunc(ctx, workspaceID, cmd)
}

func (m *mockBoardService) Members(ctx context.Context, workspaceID uuid.UUID) ([]*domain.Member, error) {
	return m.membersFunc(ctx, workspaceID)
}

func (m *mockBoardService) UpsertMember(ctx context.Context, mem *domain.Member) error {
	return m.upsertMemberFunc(ctx, mem)
}
