package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const ContextKeyWorkspaceID contextKey = "workspace_id"

func WorkspaceIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyWorkspaceID).(uuid.UUID)
	return v, ok
}
