package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/protocol"
)

type GetBoardInput struct {
	WorkspaceID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
}

type GetBoardOutput struct {
	Body protocol.BoardSnapshot
}

type SubmitCommandInput struct {
	WorkspaceID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
	Body        protocol.Body
}

type CommandResult struct {
	Seq   int64         `json:"seq" doc:"Sequence number of the accepted event"`
	Event protocol.Body `json:"event" doc:"The accepted event"`
}

type SubmitCommandOutput struct {
	Body CommandResult
}

func RegisterBoardRoutes(api huma.API, svc BoardService) {
	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspaceID}/board",
		Summary:     "Get the full board of a workspace",
		Description: "Returns every list, card, task and subtask in position order together with the sequence number of the last event folded in.",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *GetBoardInput) (*GetBoardOutput, error) {
		snap, err := svc.Snapshot(ctx, input.WorkspaceID)
		if err != nil {
			return nil, statusError("failed to load board", err)
		}
		return &GetBoardOutput{Body: snap}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-command",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspaceID}/commands",
		Summary:       "Submit a board command",
		Description:   "Validates and records one command. The accepted event is also broadcast to every socket joined to the workspace.",
		Tags:          []string{"Boards"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *SubmitCommandInput) (*SubmitCommandOutput, error) {
		cmd, err := protocol.DecodeCommand(input.Body)
		if err != nil {
			return nil, statusError("invalid command", err)
		}

		ev, seq, err := svc.Execute(ctx, input.WorkspaceID, cmd)
		if err != nil {
			return nil, statusError("command rejected", err)
		}

		body, err := protocol.EncodeEvent(ev)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to encode event", err)
		}
		return &SubmitCommandOutput{Body: CommandResult{Seq: seq, Event: body}}, nil
	})
}
