package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/position"
)

func (s *Session) exec(ctx context.Context, cmd domain.Command) error {
	_, err := s.Execute(ctx, cmd)
	return err
}

// tail returns a position after the last child of parent.
func (s *Session) tail(parent domain.Ref) float64 {
	_, positions, _ := s.store.Children(parent)
	return position.AllocateForIndex(positions, len(positions))
}

// CreateList appends a list to the board.
func (s *Session) CreateList(ctx context.Context, title string) error {
	return s.exec(ctx, domain.CreateList{Title: title, Position: s.tail(domain.WorkspaceRef(s.wsID))})
}

func (s *Session) RenameList(ctx context.Context, listID uuid.UUID, title string) error {
	return s.exec(ctx, domain.RenameList{ListID: listID, Title: title})
}

func (s *Session) DeleteList(ctx context.Context, listID uuid.UUID) error {
	return s.exec(ctx, domain.DeleteList{ListID: listID})
}

// CreateCard appends a card to cmd.ListID. The position in cmd is replaced.
func (s *Session) CreateCard(ctx context.Context, cmd domain.CreateCard) error {
	if cmd.RiskLevel == "" {
		cmd.RiskLevel = domain.RiskLow
	}
	cmd.Position = s.tail(domain.ListRef(cmd.ListID))
	return s.exec(ctx, cmd)
}

// MoveListTo moves a list to index among the other lists without a gesture.
func (s *Session) MoveListTo(ctx context.Context, listID uuid.UUID, index int) error {
	if _, ok := s.store.List(listID); !ok {
		return fmt.Errorf("client.Session.MoveListTo: list %s: %w", listID, domain.ErrNotFound)
	}
	pos := s.positionAt(domain.WorkspaceRef(s.wsID), listID, index)
	return s.exec(ctx, domain.MoveList{ListID: listID, Position: pos})
}

// MoveCardTo moves a card to index within toListID without a gesture.
func (s *Session) MoveCardTo(ctx context.Context, cardID, toListID uuid.UUID, index int) error {
	_, fromListID, ok := s.store.FindCard(cardID)
	if !ok {
		return fmt.Errorf("client.Session.MoveCardTo: card %s: %w", cardID, domain.ErrNotFound)
	}
	if _, ok := s.store.List(toListID); !ok {
		return fmt.Errorf("client.Session.MoveCardTo: list %s: %w", toListID, domain.ErrNotFound)
	}
	pos := s.positionAt(domain.ListRef(toListID), cardID, index)
	return s.exec(ctx, domain.MoveCard{FromListID: fromListID, CardID: cardID, ToListID: toListID, Position: pos})
}

func (s *Session) positionAt(parent domain.Ref, item uuid.UUID, index int) float64 {
	ids, positions, _ := s.store.Children(parent)
	siblings := make([]float64, 0, len(positions))
	for i, id := range ids {
		if id != item {
			siblings = append(siblings, positions[i])
		}
	}
	return position.AllocateForIndex(siblings, index)
}

func (s *Session) UpdateCardDetails(ctx context.Context, cardID uuid.UUID, fields domain.CardPatch) error {
	return s.exec(ctx, domain.UpdateCardDetails{CardID: cardID, Fields: fields})
}

func (s *Session) ToggleCardComplete(ctx context.Context, cardID uuid.UUID, done bool) error {
	return s.exec(ctx, domain.ToggleCardComplete{CardID: cardID, IsCompleted: done})
}

func (s *Session) DeleteCard(ctx context.Context, cardID uuid.UUID) error {
	return s.exec(ctx, domain.DeleteCard{CardID: cardID})
}

func (s *Session) AssignMember(ctx context.Context, cardID uuid.UUID, studentID string) error {
	return s.exec(ctx, domain.AssignMember{CardID: cardID, StudentID: studentID})
}

func (s *Session) UnassignMember(ctx context.Context, cardID uuid.UUID, studentID string) error {
	return s.exec(ctx, domain.UnassignMember{CardID: cardID, StudentID: studentID})
}

func (s *Session) CreateTask(ctx context.Context, cardID uuid.UUID, title string) error {
	return s.exec(ctx, domain.CreateTask{CardID: cardID, Title: title})
}

func (s *Session) RenameTask(ctx context.Context, cardID, taskID uuid.UUID, title string) error {
	return s.exec(ctx, domain.RenameTask{CardID: cardID, TaskID: taskID, Title: title})
}

func (s *Session) ToggleTaskDone(ctx context.Context, cardID, taskID uuid.UUID, done bool) error {
	return s.exec(ctx, domain.ToggleTaskDone{CardID: cardID, TaskID: taskID, Done: done})
}

func (s *Session) DeleteTask(ctx context.Context, cardID, taskID uuid.UUID) error {
	return s.exec(ctx, domain.DeleteTask{CardID: cardID, TaskID: taskID})
}

func (s *Session) CreateSubtask(ctx context.Context, taskID uuid.UUID, title string) error {
	return s.exec(ctx, domain.CreateSubtask{TaskID: taskID, Title: title})
}

func (s *Session) RenameSubtask(ctx context.Context, taskID, subtaskID uuid.UUID, title string) error {
	return s.exec(ctx, domain.RenameSubtask{TaskID: taskID, SubtaskID: subtaskID, Title: title})
}

func (s *Session) ToggleSubtaskDone(ctx context.Context, taskID, subtaskID uuid.UUID, done bool) error {
	return s.exec(ctx, domain.ToggleSubtaskDone{TaskID: taskID, SubtaskID: subtaskID, IsDone: done})
}

func (s *Session) DeleteSubtask(ctx context.Context, taskID, subtaskID uuid.UUID) error {
	return s.exec(ctx, domain.DeleteSubtask{TaskID: taskID, SubtaskID: subtaskID})
}

// RenumberLists asks the server to respace every list evenly.
func (s *Session) RenumberLists(ctx context.Context) error {
	return s.exec(ctx, domain.RenumberLists{})
}

// RenumberCards asks the server to respace the cards of one list evenly.
func (s *Session) RenumberCards(ctx context.Context, listID uuid.UUID) error {
	return s.exec(ctx, domain.RenumberCards{ListID: listID})
}
