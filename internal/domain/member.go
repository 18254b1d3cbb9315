package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Member is a workspace member as stored in the member directory.
type Member struct {
	WorkspaceID uuid.UUID
	StudentID   string
	DisplayName string
	AvatarURL   string
	CreatedAt   time.Time
}

// Ref returns the weak reference cards hold for m.
func (m Member) Ref() MemberRef {
	return MemberRef{StudentID: m.StudentID, DisplayName: m.DisplayName, AvatarURL: m.AvatarURL}
}

type MemberRepository interface {
	Upsert(ctx context.Context, m *Member) error
	Get(ctx context.Context, workspaceID uuid.UUID, studentID string) (*Member, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*Member, error)
}
