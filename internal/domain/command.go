package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CommandType is the wire tag of a command sent to the server of record.
type CommandType string

const (
	CmdCreateList         CommandType = "create_list"
	CmdRenameList         CommandType = "rename_list"
	CmdMoveList           CommandType = "move_list"
	CmdDeleteList         CommandType = "delete_list"
	CmdCreateCard         CommandType = "create_card"
	CmdMoveCard           CommandType = "move_card"
	CmdUpdateCardDetails  CommandType = "update_card_details"
	CmdToggleCardComplete CommandType = "toggle_card_complete"
	CmdDeleteCard         CommandType = "delete_card"
	CmdAssignMember       CommandType = "assign_member"
	CmdUnassignMember     CommandType = "unassign_member"
	CmdCreateTask         CommandType = "create_task"
	CmdRenameTask         CommandType = "rename_task"
	CmdToggleTaskDone     CommandType = "toggle_task_done"
	CmdDeleteTask         CommandType = "delete_task"
	CmdCreateSubtask      CommandType = "create_subtask"
	CmdRenameSubtask      CommandType = "rename_subtask"
	CmdToggleSubtaskDone  CommandType = "toggle_subtask_done"
	CmdDeleteSubtask      CommandType = "delete_subtask"
	CmdRenumberLists      CommandType = "renumber_lists"
	CmdRenumberCards      CommandType = "renumber_cards"
)

// Command is an intent submitted to the server of record. The set of
// implementations is closed to this package.
type Command interface {
	CommandType() CommandType
	validate() error
}

// ValidateCommand checks the structural requirements of cmd.
func ValidateCommand(cmd Command) error {
	if cmd == nil {
		return fmt.Errorf("%w: nil command", ErrInvalidCommand)
	}
	if err := cmd.validate(); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrInvalidCommand, cmd.CommandType(), err.Error())
	}
	return nil
}

type CreateList struct {
	Title    string  `json:"title"`
	Position float64 `json:"position"`
}

type RenameList struct {
	ListID uuid.UUID `json:"list_id"`
	Title  string    `json:"title"`
}

type MoveList struct {
	ListID   uuid.UUID `json:"list_id"`
	Position float64   `json:"position"`
}

type DeleteList struct {
	ListID uuid.UUID `json:"list_id"`
}

// NewTask describes a task created together with its card.
type NewTask struct {
	Title    string   `json:"title"`
	Subtasks []string `json:"subtasks,omitempty"`
}

type CreateCard struct {
	ListID       uuid.UUID  `json:"list_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	RiskLevel    RiskLevel  `json:"risk_level"`
	Position     float64    `json:"position"`
	DueAt        *time.Time `json:"due_at,omitempty"`
	Assignments  []string   `json:"assignments,omitempty"`
	InitialTasks []NewTask  `json:"initial_tasks,omitempty"`
}

type MoveCard struct {
	FromListID uuid.UUID `json:"from_list_id"`
	CardID     uuid.UUID `json:"card_id"`
	ToListID   uuid.UUID `json:"to_list_id"`
	Position   float64   `json:"position"`
}

type UpdateCardDetails struct {
	CardID uuid.UUID `json:"card_id"`
	Fields CardPatch `json:"fields"`
}

type ToggleCardComplete struct {
	CardID      uuid.UUID `json:"card_id"`
	IsCompleted bool      `json:"is_completed"`
}

type DeleteCard struct {
	CardID uuid.UUID `json:"card_id"`
}

type AssignMember struct {
	CardID    uuid.UUID `json:"card_id"`
	StudentID string    `json:"student_id"`
}

type UnassignMember struct {
	CardID    uuid.UUID `json:"card_id"`
	StudentID string    `json:"student_id"`
}

type CreateTask struct {
	CardID uuid.UUID `json:"card_id"`
	Title  string    `json:"title"`
}

type RenameTask struct {
	CardID uuid.UUID `json:"card_id"`
	TaskID uuid.UUID `json:"task_id"`
	Title  string    `json:"title"`
}

type ToggleTaskDone struct {
	CardID uuid.UUID `json:"card_id"`
	TaskID uuid.UUID `json:"task_id"`
	Done   bool      `json:"is_done"`
}

type DeleteTask struct {
	CardID uuid.UUID `json:"card_id"`
	TaskID uuid.UUID `json:"task_id"`
}

type CreateSubtask struct {
	TaskID uuid.UUID `json:"task_id"`
	Title  string    `json:"title"`
}

type RenameSubtask struct {
	TaskID    uuid.UUID `json:"task_id"`
	SubtaskID uuid.UUID `json:"subtask_id"`
	Title     string    `json:"title"`
}

type ToggleSubtaskDone struct {
	TaskID    uuid.UUID `json:"task_id"`
	SubtaskID uuid.UUID `json:"subtask_id"`
	IsDone    bool      `json:"is_done"`
}

type DeleteSubtask struct {
	TaskID    uuid.UUID `json:"task_id"`
	SubtaskID uuid.UUID `json:"subtask_id"`
}

// RenumberLists reassigns evenly spaced positions to every list.
type RenumberLists struct{}

// RenumberCards reassigns evenly spaced positions to every card of a list.
type RenumberCards struct {
	ListID uuid.UUID `json:"list_id"`
}

func (CreateList) CommandType() CommandType         { return CmdCreateList }
func (RenameList) CommandType() CommandType         { return CmdRenameList }
func (MoveList) CommandType() CommandType           { return CmdMoveList }
func (DeleteList) CommandType() CommandType         { return CmdDeleteList }
func (CreateCard) CommandType() CommandType         { return CmdCreateCard }
func (MoveCard) CommandType() CommandType           { return CmdMoveCard }
func (UpdateCardDetails) CommandType() CommandType  { return CmdUpdateCardDetails }
func (ToggleCardComplete) CommandType() CommandType { return CmdToggleCardComplete }
func (DeleteCard) CommandType() CommandType         { return CmdDeleteCard }
func (AssignMember) CommandType() CommandType       { return CmdAssignMember }
func (UnassignMember) CommandType() CommandType     { return CmdUnassignMember }
func (CreateTask) CommandType() CommandType         { return CmdCreateTask }
func (RenameTask) CommandType() CommandType         { return CmdRenameTask }
func (ToggleTaskDone) CommandType() CommandType     { return CmdToggleTaskDone }
func (DeleteTask) CommandType() CommandType         { return CmdDeleteTask }
func (CreateSubtask) CommandType() CommandType      { return CmdCreateSubtask }
func (RenameSubtask) CommandType() CommandType      { return CmdRenameSubtask }
func (ToggleSubtaskDone) CommandType() CommandType  { return CmdToggleSubtaskDone }
func (DeleteSubtask) CommandType() CommandType      { return CmdDeleteSubtask }
func (RenumberLists) CommandType() CommandType      { return CmdRenumberLists }
func (RenumberCards) CommandType() CommandType      { return CmdRenumberCards }

func requireID(name string, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

func requireTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("title is required")
	}
	return nil
}

func requirePosition(pos float64) error {
	if math.IsNaN(pos) || math.IsInf(pos, 0) {
		return fmt.Errorf("position must be finite, got %v", pos)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (c CreateList) validate() error {
	return firstErr(requireTitle(c.Title), requirePosition(c.Position))
}

func (c RenameList) validate() error {
	return firstErr(requireID("list_id", c.ListID), requireTitle(c.Title))
}

func (c MoveList) validate() error {
	return firstErr(requireID("list_id", c.ListID), requirePosition(c.Position))
}

func (c DeleteList) validate() error { return requireID("list_id", c.ListID) }

func (c CreateCard) validate() error {
	if err := firstErr(requireID("list_id", c.ListID), requireTitle(c.Title), requirePosition(c.Position)); err != nil {
		return err
	}
	if !c.RiskLevel.Valid() {
		return fmt.Errorf("unknown risk level %q", c.RiskLevel)
	}
	for i, t := range c.InitialTasks {
		if strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("initial task %d: title is required", i)
		}
	}
	return nil
}

func (c MoveCard) validate() error {
	return firstErr(
		requireID("from_list_id", c.FromListID),
		requireID("card_id", c.CardID),
		requireID("to_list_id", c.ToListID),
		requirePosition(c.Position),
	)
}

func (c UpdateCardDetails) validate() error {
	if err := requireID("card_id", c.CardID); err != nil {
		return err
	}
	if c.Fields.IsEmpty() {
		return errors.New("no fields to update")
	}
	if c.Fields.Title != nil {
		if err := requireTitle(*c.Fields.Title); err != nil {
			return err
		}
	}
	if c.Fields.RiskLevel != nil && !c.Fields.RiskLevel.Valid() {
		return fmt.Errorf("unknown risk level %q", *c.Fields.RiskLevel)
	}
	return nil
}

func (c ToggleCardComplete) validate() error { return requireID("card_id", c.CardID) }
func (c DeleteCard) validate() error         { return requireID("card_id", c.CardID) }

func (c AssignMember) validate() error {
	if strings.TrimSpace(c.StudentID) == "" {
		return errors.New("student_id is required")
	}
	return requireID("card_id", c.CardID)
}

func (c UnassignMember) validate() error {
	if strings.TrimSpace(c.StudentID) == "" {
		return errors.New("student_id is required")
	}
	return requireID("card_id", c.CardID)
}

func (c CreateTask) validate() error {
	return firstErr(requireID("card_id", c.CardID), requireTitle(c.Title))
}

func (c RenameTask) validate() error {
	return firstErr(requireID("card_id", c.CardID), requireID("task_id", c.TaskID), requireTitle(c.Title))
}

func (c ToggleTaskDone) validate() error {
	return firstErr(requireID("card_id", c.CardID), requireID("task_id", c.TaskID))
}

func (c DeleteTask) validate() error {
	return firstErr(requireID("card_id", c.CardID), requireID("task_id", c.TaskID))
}

func (c CreateSubtask) validate() error {
	return firstErr(requireID("task_id", c.TaskID), requireTitle(c.Title))
}

func (c RenameSubtask) validate() error {
	return firstErr(requireID("task_id", c.TaskID), requireID("subtask_id", c.SubtaskID), requireTitle(c.Title))
}

func (c ToggleSubtaskDone) validate() error {
	return firstErr(requireID("task_id", c.TaskID), requireID("subtask_id", c.SubtaskID))
}

func (c DeleteSubtask) validate() error {
	return firstErr(requireID("task_id", c.TaskID), requireID("subtask_id", c.SubtaskID))
}

func (RenumberLists) validate() error   { return nil }
func (c RenumberCards) validate() error { return requireID("list_id", c.ListID) }
