package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// EventType is the wire tag of a broadcast event.
type EventType string

const (
	EvListCreated              EventType = "list_created"
	EvListRenamed              EventType = "list_renamed"
	EvListMoved                EventType = "list_moved"
	EvListDeleted              EventType = "list_deleted"
	EvCardCreated              EventType = "card_created"
	EvCardMoved                EventType = "card_moved"
	EvCardUpdated              EventType = "card_updated"
	EvCardCompletionChanged    EventType = "card_completion_changed"
	EvCardDeleted              EventType = "card_deleted"
	EvMemberAssigned           EventType = "member_assigned"
	EvMemberUnassigned         EventType = "member_unassigned"
	EvTaskCreated              EventType = "task_created"
	EvTaskRenamed              EventType = "task_renamed"
	EvTaskCompletionChanged    EventType = "task_completion_changed"
	EvTaskDeleted              EventType = "task_deleted"
	EvSubtaskCreated           EventType = "subtask_created"
	EvSubtaskRenamed           EventType = "subtask_renamed"
	EvSubtaskCompletionChanged EventType = "subtask_completion_changed"
	EvSubtaskDeleted           EventType = "subtask_deleted"
	EvPositionsRenumbered      EventType = "positions_renumbered"
)

// Event is one accepted mutation broadcast by the server of record. Every
// variant fully specifies the new state of the item it touches, so applying
// the same event twice is harmless.
type Event interface {
	EventType() EventType
	validate() error
}

// ValidateEvent checks that ev carries the identity it needs to be applied.
func ValidateEvent(ev Event) error {
	if ev == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if err := ev.validate(); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrInvalidEvent, ev.EventType(), err.Error())
	}
	return nil
}

type ListCreated struct {
	List List `json:"list"`
}

type ListRenamed struct {
	ListID uuid.UUID `json:"list_id"`
	Title  string    `json:"title"`
}

type ListMoved struct {
	ListID   uuid.UUID `json:"list_id"`
	Position float64   `json:"position"`
}

type ListDeleted struct {
	ListID uuid.UUID `json:"list_id"`
}

type CardCreated struct {
	ListID uuid.UUID `json:"list_id"`
	Card   Card      `json:"card"`
}

type CardMoved struct {
	FromListID uuid.UUID `json:"from_list_id"`
	ToListID   uuid.UUID `json:"to_list_id"`
	CardID     uuid.UUID `json:"card_id"`
	Position   float64   `json:"position"`
}

type CardUpdated struct {
	CardID uuid.UUID `json:"card_id"`
	Fields CardPatch `json:"fields"`
}

type CardCompletionChanged struct {
	CardID      uuid.UUID `json:"card_id"`
	IsCompleted bool      `json:"is_completed"`
}

type CardDeleted struct {
	ListID uuid.UUID `json:"list_id"`
	CardID uuid.UUID `json:"card_id"`
}

type MemberAssigned struct {
	CardID uuid.UUID `json:"card_id"`
	Member MemberRef `json:"member"`
}

type MemberUnassigned struct {
	CardID    uuid.UUID `json:"card_id"`
	StudentID string    `json:"student_id"`
}

type TaskCreated struct {
	CardID uuid.UUID `json:"card_id"`
	Task   Task      `json:"task"`
}

type TaskRenamed struct {
	CardID uuid.UUID `json:"card_id"`
	TaskID uuid.UUID `json:"task_id"`
	Title  string    `json:"title"`
}

type TaskCompletionChanged struct {
	CardID uuid.UUID `json:"card_id"`
	TaskID uuid.UUID `json:"task_id"`
	Done   bool      `json:"is_done"`
}

type TaskDeleted struct {
	CardID uuid.UUID `json:"card_id"`
	TaskID uuid.UUID `json:"task_id"`
}

type SubtaskCreated struct {
	TaskID  uuid.UUID `json:"task_id"`
	Subtask Subtask   `json:"subtask"`
}

type SubtaskRenamed struct {
	TaskID    uuid.UUID `json:"task_id"`
	SubtaskID uuid.UUID `json:"subtask_id"`
	Title     string    `json:"title"`
}

type SubtaskCompletionChanged struct {
	TaskID    uuid.UUID `json:"task_id"`
	SubtaskID uuid.UUID `json:"subtask_id"`
	IsDone    bool      `json:"is_done"`
}

type SubtaskDeleted struct {
	TaskID    uuid.UUID `json:"task_id"`
	SubtaskID uuid.UUID `json:"subtask_id"`
}

// PositionsRenumbered carries the full new position map of one parent's
// children after an administrative renumber.
type PositionsRenumbered struct {
	Parent    Ref                   `json:"parent"`
	Positions map[uuid.UUID]float64 `json:"positions"`
}

func (ListCreated) EventType() EventType              { return EvListCreated }
func (ListRenamed) EventType() EventType              { return EvListRenamed }
func (ListMoved) EventType() EventType                { return EvListMoved }
func (ListDeleted) EventType() EventType              { return EvListDeleted }
func (CardCreated) EventType() EventType              { return EvCardCreated }
func (CardMoved) EventType() EventType                { return EvCardMoved }
func (CardUpdated) EventType() EventType              { return EvCardUpdated }
func (CardCompletionChanged) EventType() EventType    { return EvCardCompletionChanged }
func (CardDeleted) EventType() EventType              { return EvCardDeleted }
func (MemberAssigned) EventType() EventType           { return EvMemberAssigned }
func (MemberUnassigned) EventType() EventType         { return EvMemberUnassigned }
func (TaskCreated) EventType() EventType              { return EvTaskCreated }
func (TaskRenamed) EventType() EventType              { return EvTaskRenamed }
func (TaskCompletionChanged) EventType() EventType    { return EvTaskCompletionChanged }
func (TaskDeleted) EventType() EventType              { return EvTaskDeleted }
func (SubtaskCreated) EventType() EventType           { return EvSubtaskCreated }
func (SubtaskRenamed) EventType() EventType           { return EvSubtaskRenamed }
func (SubtaskCompletionChanged) EventType() EventType { return EvSubtaskCompletionChanged }
func (SubtaskDeleted) EventType() EventType           { return EvSubtaskDeleted }
func (PositionsRenumbered) EventType() EventType      { return EvPositionsRenumbered }

func (e ListCreated) validate() error { return requireID("list.id", e.List.ID) }
func (e ListRenamed) validate() error { return requireID("list_id", e.ListID) }
func (e ListMoved) validate() error {
	return firstErr(requireID("list_id", e.ListID), requirePosition(e.Position))
}
func (e ListDeleted) validate() error { return requireID("list_id", e.ListID) }

func (e CardCreated) validate() error {
	return firstErr(requireID("list_id", e.ListID), requireID("card.id", e.Card.ID))
}

func (e CardMoved) validate() error {
	return firstErr(
		requireID("from_list_id", e.FromListID),
		requireID("to_list_id", e.ToListID),
		requireID("card_id", e.CardID),
		requirePosition(e.Position),
	)
}

func (e CardUpdated) validate() error {
	if e.Fields.RiskLevel != nil && !e.Fields.RiskLevel.Valid() {
		return fmt.Errorf("unknown risk level %q", *e.Fields.RiskLevel)
	}
	return requireID("card_id", e.CardID)
}

func (e CardCompletionChanged) validate() error { return requireID("card_id", e.CardID) }

func (e CardDeleted) validate() error {
	return firstErr(requireID("list_id", e.ListID), requireID("card_id", e.CardID))
}

func (e MemberAssigned) validate() error {
	if e.Member.StudentID == "" {
		return errors.New("member.student_id is required")
	}
	return requireID("card_id", e.CardID)
}

func (e MemberUnassigned) validate() error {
	if e.StudentID == "" {
		return errors.New("student_id is required")
	}
	return requireID("card_id", e.CardID)
}

func (e TaskCreated) validate() error {
	return firstErr(requireID("card_id", e.CardID), requireID("task.id", e.Task.ID))
}

func (e TaskRenamed) validate() error {
	return firstErr(requireID("card_id", e.CardID), requireID("task_id", e.TaskID))
}

func (e TaskCompletionChanged) validate() error {
	return firstErr(requireID("card_id", e.CardID), requireID("task_id", e.TaskID))
}

func (e TaskDeleted) validate() error {
	return firstErr(requireID("card_id", e.CardID), requireID("task_id", e.TaskID))
}

func (e SubtaskCreated) validate() error {
	return firstErr(requireID("task_id", e.TaskID), requireID("subtask.id", e.Subtask.ID))
}

func (e SubtaskRenamed) validate() error {
	return firstErr(requireID("task_id", e.TaskID), requireID("subtask_id", e.SubtaskID))
}

func (e SubtaskCompletionChanged) validate() error {
	return firstErr(requireID("task_id", e.TaskID), requireID("subtask_id", e.SubtaskID))
}

func (e SubtaskDeleted) validate() error {
	return firstErr(requireID("task_id", e.TaskID), requireID("subtask_id", e.SubtaskID))
}

func (e PositionsRenumbered) validate() error {
	switch e.Parent.Kind {
	case KindWorkspace, KindList:
	default:
		return fmt.Errorf("cannot renumber children of %q", e.Parent.Kind)
	}
	for id, pos := range e.Positions {
		if err := requireID("positions key", id); err != nil {
			return err
		}
		if err := requirePosition(pos); err != nil {
			return err
		}
	}
	return requireID("parent.id", e.Parent.ID)
}
