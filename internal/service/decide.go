package service

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/board"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/position"
)

// decide turns cmd into the event it produces against w's current board
// without changing anything. The caller holds w.mu.
func (s *Service) decide(ctx context.Context, w *workspace, cmd domain.Command) (domain.Event, error) {
	st := w.store
	switch c := cmd.(type) {
	case domain.CreateList:
		_, positions, _ := st.Children(domain.WorkspaceRef(w.id))
		return domain.ListCreated{List: domain.List{
			ID:       uuid.New(),
			Title:    c.Title,
			Position: placeNew(positions, c.Position),
			Cards:    []domain.Card{},
		}}, nil

	case domain.RenameList:
		if err := needList(st, c.ListID); err != nil {
			return nil, err
		}
		return domain.ListRenamed{ListID: c.ListID, Title: c.Title}, nil

	case domain.MoveList:
		if err := needList(st, c.ListID); err != nil {
			return nil, err
		}
		return domain.ListMoved{ListID: c.ListID, Position: position.Round(c.Position)}, nil

	case domain.DeleteList:
		if err := needList(st, c.ListID); err != nil {
			return nil, err
		}
		return domain.ListDeleted{ListID: c.ListID}, nil

	case domain.CreateCard:
		return s.createCard(ctx, w, c)

	case domain.MoveCard:
		_, current, ok := st.FindCard(c.CardID)
		if !ok {
			return nil, fmt.Errorf("card %s: %w", c.CardID, domain.ErrNotFound)
		}
		if err := needList(st, c.ToListID); err != nil {
			return nil, err
		}
		if current != c.FromListID {
			return nil, fmt.Errorf("%w: card %s is no longer in list %s", domain.ErrConflict, c.CardID, c.FromListID)
		}
		return domain.CardMoved{
			FromListID: current,
			ToListID:   c.ToListID,
			CardID:     c.CardID,
			Position:   position.Round(c.Position),
		}, nil

	case domain.UpdateCardDetails:
		if _, err := needCard(st, c.CardID); err != nil {
			return nil, err
		}
		return domain.CardUpdated{CardID: c.CardID, Fields: c.Fields}, nil

	case domain.ToggleCardComplete:
		if _, err := needCard(st, c.CardID); err != nil {
			return nil, err
		}
		return domain.CardCompletionChanged{CardID: c.CardID, IsCompleted: c.IsCompleted}, nil

	case domain.DeleteCard:
		_, listID, ok := st.FindCard(c.CardID)
		if !ok {
			return nil, fmt.Errorf("card %s: %w", c.CardID, domain.ErrNotFound)
		}
		return domain.CardDeleted{ListID: listID, CardID: c.CardID}, nil

	case domain.AssignMember:
		if _, err := needCard(st, c.CardID); err != nil {
			return nil, err
		}
		m, err := s.member(ctx, w.id, c.StudentID)
		if err != nil {
			return nil, err
		}
		return domain.MemberAssigned{CardID: c.CardID, Member: m.Ref()}, nil

	case domain.UnassignMember:
		card, err := needCard(st, c.CardID)
		if err != nil {
			return nil, err
		}
		if !card.HasMember(c.StudentID) {
			return nil, fmt.Errorf("member %q on card %s: %w", c.StudentID, c.CardID, domain.ErrNotFound)
		}
		return domain.MemberUnassigned{CardID: c.CardID, StudentID: c.StudentID}, nil

	case domain.CreateTask:
		card, err := needCard(st, c.CardID)
		if err != nil {
			return nil, err
		}
		positions := make([]float64, len(card.Tasks))
		for i, t := range card.Tasks {
			positions[i] = t.Position
		}
		return domain.TaskCreated{CardID: c.CardID, Task: domain.Task{
			ID:       uuid.New(),
			Title:    c.Title,
			Position: position.AllocateForIndex(positions, len(positions)),
			Subtasks: []domain.Subtask{},
		}}, nil

	case domain.RenameTask:
		if _, err := needTask(st, c.CardID, c.TaskID); err != nil {
			return nil, err
		}
		return domain.TaskRenamed{CardID: c.CardID, TaskID: c.TaskID, Title: c.Title}, nil

	case domain.ToggleTaskDone:
		if _, err := needTask(st, c.CardID, c.TaskID); err != nil {
			return nil, err
		}
		return domain.TaskCompletionChanged{CardID: c.CardID, TaskID: c.TaskID, Done: c.Done}, nil

	case domain.DeleteTask:
		if _, err := needTask(st, c.CardID, c.TaskID); err != nil {
			return nil, err
		}
		return domain.TaskDeleted{CardID: c.CardID, TaskID: c.TaskID}, nil

	case domain.CreateSubtask:
		task, _, ok := st.FindTask(c.TaskID)
		if !ok {
			return nil, fmt.Errorf("task %s: %w", c.TaskID, domain.ErrNotFound)
		}
		positions := make([]float64, len(task.Subtasks))
		for i, sub := range task.Subtasks {
			positions[i] = sub.Position
		}
		return domain.SubtaskCreated{TaskID: c.TaskID, Subtask: domain.Subtask{
			ID:       uuid.New(),
			Title:    c.Title,
			Position: position.AllocateForIndex(positions, len(positions)),
		}}, nil

	case domain.RenameSubtask:
		if err := needSubtask(st, c.TaskID, c.SubtaskID); err != nil {
			return nil, err
		}
		return domain.SubtaskRenamed{TaskID: c.TaskID, SubtaskID: c.SubtaskID, Title: c.Title}, nil

	case domain.ToggleSubtaskDone:
		if err := needSubtask(st, c.TaskID, c.SubtaskID); err != nil {
			return nil, err
		}
		return domain.SubtaskCompletionChanged{TaskID: c.TaskID, SubtaskID: c.SubtaskID, IsDone: c.IsDone}, nil

	case domain.DeleteSubtask:
		if err := needSubtask(st, c.TaskID, c.SubtaskID); err != nil {
			return nil, err
		}
		return domain.SubtaskDeleted{TaskID: c.TaskID, SubtaskID: c.SubtaskID}, nil

	case domain.RenumberLists:
		return renumber(st, domain.WorkspaceRef(w.id))

	case domain.RenumberCards:
		return renumber(st, domain.ListRef(c.ListID))

	default:
		return nil, fmt.Errorf("%T: %w", cmd, domain.ErrUnknownCommand)
	}
}

func (s *Service) createCard(ctx context.Context, w *workspace, c domain.CreateCard) (domain.Event, error) {
	_, positions, ok := w.store.Children(domain.ListRef(c.ListID))
	if !ok {
		return nil, fmt.Errorf("list %s: %w", c.ListID, domain.ErrNotFound)
	}

	members := make([]domain.MemberRef, 0, len(c.Assignments))
	for _, id := range c.Assignments {
		if slices.ContainsFunc(members, func(m domain.MemberRef) bool { return m.StudentID == id }) {
			continue
		}
		m, err := s.member(ctx, w.id, id)
		if err != nil {
			return nil, err
		}
		members = append(members, m.Ref())
	}

	taskPositions := position.Renumber(len(c.InitialTasks))
	tasks := make([]domain.Task, len(c.InitialTasks))
	for i, nt := range c.InitialTasks {
		subPositions := position.Renumber(len(nt.Subtasks))
		subtasks := make([]domain.Subtask, len(nt.Subtasks))
		for j, title := range nt.Subtasks {
			subtasks[j] = domain.Subtask{ID: uuid.New(), Title: title, Position: subPositions[j]}
		}
		tasks[i] = domain.Task{ID: uuid.New(), Title: nt.Title, Position: taskPositions[i], Subtasks: subtasks}
	}

	due := c.DueAt
	if due != nil {
		d := due.UTC()
		due = &d
	}

	return domain.CardCreated{ListID: c.ListID, Card: domain.Card{
		ID:              uuid.New(),
		Title:           c.Title,
		Description:     c.Description,
		RiskLevel:       c.RiskLevel,
		DueAt:           due,
		Position:        placeNew(positions, c.Position),
		AssignedMembers: members,
		Tasks:           tasks,
	}}, nil
}

func (s *Service) member(ctx context.Context, workspaceID uuid.UUID, studentID string) (*domain.Member, error) {
	if s.members == nil {
		return nil, fmt.Errorf("member %q: %w", studentID, domain.ErrNotFound)
	}
	m, err := s.members.Get(ctx, workspaceID, studentID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// placeNew keeps the client's proposed position unless it lands on an
// existing sibling, in which case the item goes to the tail.
func placeNew(siblings []float64, proposed float64) float64 {
	proposed = position.Round(proposed)
	if proposed != 0 && !slices.ContainsFunc(siblings, func(p float64) bool { return math.Abs(p-proposed) < 1e-9 }) {
		return proposed
	}
	return position.AllocateForIndex(siblings, len(siblings))
}

func renumber(st *board.Store, parent domain.Ref) (domain.Event, error) {
	positions, err := st.PlanRenumber(parent)
	if err != nil {
		return nil, err
	}
	return domain.PositionsRenumbered{Parent: parent, Positions: positions}, nil
}

func needList(st *board.Store, id uuid.UUID) error {
	if _, ok := st.List(id); !ok {
		return fmt.Errorf("list %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func needCard(st *board.Store, id uuid.UUID) (domain.Card, error) {
	card, _, ok := st.FindCard(id)
	if !ok {
		return domain.Card{}, fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
	}
	return card, nil
}

func needTask(st *board.Store, cardID, taskID uuid.UUID) (domain.Task, error) {
	task, owner, ok := st.FindTask(taskID)
	if !ok || owner != cardID {
		return domain.Task{}, fmt.Errorf("task %s on card %s: %w", taskID, cardID, domain.ErrNotFound)
	}
	return task, nil
}

func needSubtask(st *board.Store, taskID, subtaskID uuid.UUID) error {
	task, _, ok := st.FindTask(taskID)
	if !ok || !slices.ContainsFunc(task.Subtasks, func(sub domain.Subtask) bool { return sub.ID == subtaskID }) {
		return fmt.Errorf("subtask %s on task %s: %w", subtaskID, taskID, domain.ErrNotFound)
	}
	return nil
}
