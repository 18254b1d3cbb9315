// Package protocol defines the JSON frames exchanged over the workspace
// WebSocket and the codecs between wire bodies and domain commands/events.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

// Kind identifies a frame's role.
type Kind string

const (
	KindJoin    Kind = "join"
	KindLeave   Kind = "leave"
	KindCommand Kind = "command"
	KindReply   Kind = "reply"
	KindEvent   Kind = "event"
)

// Status is the result of a request frame.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Code classifies a rejected request.
type Code string

const (
	CodeNotFound    Code = "not_found"
	CodeConflict    Code = "conflict"
	CodeInvalid     Code = "invalid"
	CodeRateLimited Code = "rate_limited"
	CodeInternal    Code = "internal"
)

// Body is a tagged payload: a command or an event.
type Body struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Frame is one WebSocket text message.
type Frame struct {
	Kind        Kind      `json:"kind"`
	Ref         uuid.UUID `json:"ref,omitzero"`
	WorkspaceID uuid.UUID `json:"workspace_id,omitzero"`
	Seq         int64     `json:"seq,omitempty"`
	Status      Status    `json:"status,omitempty"`
	Code        Code      `json:"code,omitempty"`
	Error       string    `json:"error,omitempty"`
	Body        *Body     `json:"body,omitempty"`
}

// BoardSnapshot is the REST resync payload: the full board as of Seq, the
// last event sequence number folded into it.
type BoardSnapshot struct {
	Workspace domain.Workspace `json:"workspace"`
	Seq       int64            `json:"seq"`
}

// ---------------------------------------------------------------------------
// Frame constructors
// ---------------------------------------------------------------------------

func Join(workspaceID uuid.UUID) Frame {
	return Frame{Kind: KindJoin, Ref: uuid.New(), WorkspaceID: workspaceID}
}

func Leave(workspaceID uuid.UUID) Frame {
	return Frame{Kind: KindLeave, Ref: uuid.New(), WorkspaceID: workspaceID}
}

// CommandFrame wraps cmd in a request frame with a fresh ref.
func CommandFrame(workspaceID uuid.UUID, cmd domain.Command) (Frame, error) {
	body, err := EncodeCommand(cmd)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Kind: KindCommand, Ref: uuid.New(), WorkspaceID: workspaceID, Body: &body}, nil
}

// EventFrame wraps an accepted event for broadcast.
func EventFrame(workspaceID uuid.UUID, seq int64, ev domain.Event) (Frame, error) {
	body, err := EncodeEvent(ev)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Kind: KindEvent, WorkspaceID: workspaceID, Seq: seq, Body: &body}, nil
}

// OK acknowledges the request ref. body may be nil.
func OK(ref uuid.UUID, body *Body) Frame {
	return Frame{Kind: KindReply, Ref: ref, Status: StatusOK, Body: body}
}

// Reject answers the request ref with err classified by CodeOf.
func Reject(ref uuid.UUID, err error) Frame {
	return Frame{Kind: KindReply, Ref: ref, Status: StatusError, Code: CodeOf(err), Error: err.Error()}
}

// ---------------------------------------------------------------------------
// Error codes
// ---------------------------------------------------------------------------

// ErrRateLimited is reported when a connection sends commands too fast.
var ErrRateLimited = errors.New("rate limited")

// CodeOf maps a domain error to its wire code.
func CodeOf(err error) Code {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrConflict):
		return CodeConflict
	case errors.Is(err, domain.ErrInvalidCommand),
		errors.Is(err, domain.ErrUnknownCommand),
		errors.Is(err, domain.ErrInvalidEvent):
		return CodeInvalid
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternal
	}
}

// Sentinel maps a wire code back to the error it was derived from. Unknown
// and internal codes map to nil.
func (c Code) Sentinel() error {
	switch c {
	case CodeNotFound:
		return domain.ErrNotFound
	case CodeConflict:
		return domain.ErrConflict
	case CodeInvalid:
		return domain.ErrInvalidCommand
	case CodeRateLimited:
		return ErrRateLimited
	default:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

var eventDecoders = map[domain.EventType]func(json.RawMessage) (domain.Event, error){
	domain.EvListCreated:              decodeEvent[domain.ListCreated],
	domain.EvListRenamed:              decodeEvent[domain.ListRenamed],
	domain.EvListMoved:                decodeEvent[domain.ListMoved],
	domain.EvListDeleted:              decodeEvent[domain.ListDeleted],
	domain.EvCardCreated:              decodeEvent[domain.CardCreated],
	domain.EvCardMoved:                decodeEvent[domain.CardMoved],
	domain.EvCardUpdated:              decodeEvent[domain.CardUpdated],
	domain.EvCardCompletionChanged:    decodeEvent[domain.CardCompletionChanged],
	domain.EvCardDeleted:              decodeEvent[domain.CardDeleted],
	domain.EvMemberAssigned:           decodeEvent[domain.MemberAssigned],
	domain.EvMemberUnassigned:         decodeEvent[domain.MemberUnassigned],
	domain.EvTaskCreated:              decodeEvent[domain.TaskCreated],
	domain.EvTaskRenamed:              decodeEvent[domain.TaskRenamed],
	domain.EvTaskCompletionChanged:    decodeEvent[domain.TaskCompletionChanged],
	domain.EvTaskDeleted:              decodeEvent[domain.TaskDeleted],
	domain.EvSubtaskCreated:           decodeEvent[domain.SubtaskCreated],
	domain.EvSubtaskRenamed:           decodeEvent[domain.SubtaskRenamed],
	domain.EvSubtaskCompletionChanged: decodeEvent[domain.SubtaskCompletionChanged],
	domain.EvSubtaskDeleted:           decodeEvent[domain.SubtaskDeleted],
	domain.EvPositionsRenumbered:      decodeEvent[domain.PositionsRenumbered],
}

func decodeEvent[T domain.Event](raw json.RawMessage) (domain.Event, error) {
	var v T
	if err := json.Unmarshal(payloadOrEmpty(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeEvent serialises ev into a tagged body.
func EncodeEvent(ev domain.Event) (Body, error) {
	if ev == nil {
		return Body{}, fmt.Errorf("protocol.EncodeEvent: %w", domain.ErrInvalidEvent)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return Body{}, fmt.Errorf("protocol.EncodeEvent: %w", err)
	}
	return Body{Type: string(ev.EventType()), Payload: payload}, nil
}

// DecodeEvent turns a body into its closed event variant and validates it.
// Unknown tags wrap domain.ErrUnknownEvent; malformed or incomplete payloads
// wrap domain.ErrInvalidEvent.
func DecodeEvent(b Body) (domain.Event, error) {
	decode, ok := eventDecoders[domain.EventType(b.Type)]
	if !ok {
		return nil, fmt.Errorf("protocol.DecodeEvent: %q: %w", b.Type, domain.ErrUnknownEvent)
	}
	ev, err := decode(b.Payload)
	if err != nil {
		return nil, fmt.Errorf("protocol.DecodeEvent: %s: %w: %s", b.Type, domain.ErrInvalidEvent, err.Error())
	}
	if err := domain.ValidateEvent(ev); err != nil {
		return nil, fmt.Errorf("protocol.DecodeEvent: %w", err)
	}
	return ev, nil
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

var commandDecoders = map[domain.CommandType]func(json.RawMessage) (domain.Command, error){
	domain.CmdCreateList:         decodeCommand[domain.CreateList],
	domain.CmdRenameList:         decodeCommand[domain.RenameList],
	domain.CmdMoveList:           decodeCommand[domain.MoveList],
	domain.CmdDeleteList:         decodeCommand[domain.DeleteList],
	domain.CmdCreateCard:         decodeCommand[domain.CreateCard],
	domain.CmdMoveCard:           decodeCommand[domain.MoveCard],
	domain.CmdUpdateCardDetails:  decodeCommand[domain.UpdateCardDetails],
	domain.CmdToggleCardComplete: decodeCommand[domain.ToggleCardComplete],
	domain.CmdDeleteCard:         decodeCommand[domain.DeleteCard],
	domain.CmdAssignMember:       decodeCommand[domain.AssignMember],
	domain.CmdUnassignMember:     decodeCommand[domain.UnassignMember],
	domain.CmdCreateTask:         decodeCommand[domain.CreateTask],
	domain.CmdRenameTask:         decodeCommand[domain.RenameTask],
	domain.CmdToggleTaskDone:     decodeCommand[domain.ToggleTaskDone],
	domain.CmdDeleteTask:         decodeCommand[domain.DeleteTask],
	domain.CmdCreateSubtask:      decodeCommand[domain.CreateSubtask],
	domain.CmdRenameSubtask:      decodeCommand[domain.RenameSubtask],
	domain.CmdToggleSubtaskDone:  decodeCommand[domain.ToggleSubtaskDone],
	domain.CmdDeleteSubtask:      decodeCommand[domain.DeleteSubtask],
	domain.CmdRenumberLists:      decodeCommand[domain.RenumberLists],
	domain.CmdRenumberCards:      decodeCommand[domain.RenumberCards],
}

func decodeCommand[T domain.Command](raw json.RawMessage) (domain.Command, error) {
	var v T
	if err := json.Unmarshal(payloadOrEmpty(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeCommand serialises cmd into a tagged body.
func EncodeCommand(cmd domain.Command) (Body, error) {
	if cmd == nil {
		return Body{}, fmt.Errorf("protocol.EncodeCommand: %w", domain.ErrInvalidCommand)
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return Body{}, fmt.Errorf("protocol.EncodeCommand: %w", err)
	}
	return Body{Type: string(cmd.CommandType()), Payload: payload}, nil
}

// DecodeCommand turns a body into its command variant and validates it.
func DecodeCommand(b Body) (domain.Command, error) {
	decode, ok := commandDecoders[domain.CommandType(b.Type)]
	if !ok {
		return nil, fmt.Errorf("protocol.DecodeCommand: %q: %w", b.Type, domain.ErrUnknownCommand)
	}
	cmd, err := decode(b.Payload)
	if err != nil {
		return nil, fmt.Errorf("protocol.DecodeCommand: %s: %w: %s", b.Type, domain.ErrInvalidCommand, err.Error())
	}
	if err := domain.ValidateCommand(cmd); err != nil {
		return nil, fmt.Errorf("protocol.DecodeCommand: %w", err)
	}
	return cmd, nil
}

func payloadOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}
