package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

// MemberView is the wire shape of a directory entry.
type MemberView struct {
	StudentID   string    `json:"student_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func memberView(m *domain.Member) MemberView {
	return MemberView{
		StudentID:   m.StudentID,
		DisplayName: m.DisplayName,
		AvatarURL:   m.AvatarURL,
		CreatedAt:   m.CreatedAt,
	}
}

type ListMembersInput struct {
	WorkspaceID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
}

type ListMembersOutput struct {
	Body []MemberView
}

type PutMemberInput struct {
	WorkspaceID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
	StudentID   string    `path:"studentID" minLength:"1" maxLength:"128" doc:"Student ID"`
	Body        struct {
		DisplayName string `json:"display_name" minLength:"1" maxLength:"255" doc:"Name shown on cards"`
		AvatarURL   string `json:"avatar_url,omitempty" maxLength:"2048" doc:"Avatar image URL"`
	}
}

type PutMemberOutput struct {
	Body MemberView
}

func RegisterMemberRoutes(api huma.API, svc BoardService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-members",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspaceID}/members",
		Summary:     "List the member directory of a workspace",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *ListMembersInput) (*ListMembersOutput, error) {
		members, err := svc.Members(ctx, input.WorkspaceID)
		if err != nil {
			return nil, statusError("failed to list members", err)
		}

		out := make([]MemberView, 0, len(members))
		for _, m := range members {
			out = append(out, memberView(m))
		}
		return &ListMembersOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-member",
		Method:      http.MethodPut,
		Path:        "/workspaces/{workspaceID}/members/{studentID}",
		Summary:     "Add or update a workspace member",
		Description: "Cards already assigned to the member keep the name and avatar they were assigned with.",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *PutMemberInput) (*PutMemberOutput, error) {
		m := &domain.Member{
			WorkspaceID: input.WorkspaceID,
			StudentID:   input.StudentID,
			DisplayName: input.Body.DisplayName,
			AvatarURL:   input.Body.AvatarURL,
		}
		if err := svc.UpsertMember(ctx, m); err != nil {
			return nil, statusError("failed to save member", err)
		}
		return &PutMemberOutput{Body: memberView(m)}, nil
	})
}
