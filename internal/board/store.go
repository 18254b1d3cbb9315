// Package board holds the in-memory entity tree of one open workspace.
//
// Store is the single source of truth for what the presentation layer renders.
// It has no gesture or network awareness: callers (the drag manager, the
// reconciliation listener, the session facade) translate their intents into
// the typed operations below. Every read returns deep copies and every child
// sequence is kept sorted by position with an id tie-break.
package board

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/position"
)

// ChangeKind describes what happened to the board.
type ChangeKind string

const (
	ChangeInserted   ChangeKind = "inserted"
	ChangeRelocated  ChangeKind = "relocated"
	ChangeRemoved    ChangeKind = "removed"
	ChangePatched    ChangeKind = "patched"
	ChangeRenumbered ChangeKind = "renumbered"
	ChangeReloaded   ChangeKind = "reloaded"
)

// Change is delivered to subscribers after a mutation has been committed.
type Change struct {
	Kind   ChangeKind
	Item   domain.Ref
	Parent domain.Ref
}

// Snapshot is an opaque deep copy of the whole tree.
type Snapshot struct {
	ws domain.Workspace
}

// Workspace returns a copy of the captured tree.
func (s Snapshot) Workspace() domain.Workspace { return s.ws.Clone() }

// SnapshotOf wraps an externally obtained tree, such as a freshly fetched
// server state, so it can be restored later.
func SnapshotOf(ws domain.Workspace) Snapshot {
	fresh := ws.Clone()
	sortTree(&fresh)
	return Snapshot{ws: fresh}
}

// Store is safe for use from multiple goroutines. Subscribers are invoked
// after the lock is released, so they may call back into the store.
type Store struct {
	mu sync.RWMutex
	ws domain.Workspace

	obsMu     sync.RWMutex
	observers map[int]func(Change)
	nextObs   int
}

// New creates an empty store for one workspace.
func New(workspaceID uuid.UUID) *Store {
	return &Store{
		ws:        domain.Workspace{ID: workspaceID},
		observers: make(map[int]func(Change)),
	}
}

// Subscribe registers fn for change notifications and returns a function that
// removes it.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Store) emit(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	s.obsMu.RLock()
	fns := make([]func(Change), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.RUnlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// WorkspaceID returns the id of the workspace held by the store.
func (s *Store) WorkspaceID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ws.ID
}

// Workspace returns a deep copy of the whole tree.
func (s *Store) Workspace() domain.Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ws.Clone()
}

// Lists returns the lists in position order.
func (s *Store) Lists() []domain.List {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.List, len(s.ws.Lists))
	for i := range s.ws.Lists {
		out[i] = s.ws.Lists[i].Clone()
	}
	return out
}

// List returns the list with id.
func (s *Store) List(id uuid.UUID) (domain.List, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	li := s.listIndex(id)
	if li < 0 {
		return domain.List{}, false
	}
	return s.ws.Lists[li].Clone(), true
}

// Cards returns the cards of listID in position order.
func (s *Store) Cards(listID uuid.UUID) ([]domain.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	li := s.listIndex(listID)
	if li < 0 {
		return nil, false
	}
	cards := s.ws.Lists[li].Cards
	out := make([]domain.Card, len(cards))
	for i := range cards {
		out[i] = cards[i].Clone()
	}
	return out, true
}

// FindCard returns the card with id and the list that holds it.
func (s *Store) FindCard(id uuid.UUID) (domain.Card, uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	li, ci := s.cardIndex(id)
	if li < 0 {
		return domain.Card{}, uuid.Nil, false
	}
	return s.ws.Lists[li].Cards[ci].Clone(), s.ws.Lists[li].ID, true
}

// FindTask returns the task with id and the card that holds it.
func (s *Store) FindTask(id uuid.UUID) (domain.Task, uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	li, ci, ti := s.taskIndex(id)
	if li < 0 {
		return domain.Task{}, uuid.Nil, false
	}
	card := &s.ws.Lists[li].Cards[ci]
	return card.Tasks[ti].Clone(), card.ID, true
}

// ParentOf returns the parent of item. Lists report the workspace.
func (s *Store) ParentOf(item domain.Ref) (domain.Ref, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch item.Kind {
	case domain.KindList:
		if s.listIndex(item.ID) < 0 {
			return domain.Ref{}, false
		}
		return domain.WorkspaceRef(s.ws.ID), true
	case domain.KindCard:
		li, _ := s.cardIndex(item.ID)
		if li < 0 {
			return domain.Ref{}, false
		}
		return domain.ListRef(s.ws.Lists[li].ID), true
	case domain.KindTask:
		li, ci, _ := s.taskIndex(item.ID)
		if li < 0 {
			return domain.Ref{}, false
		}
		return domain.CardRef(s.ws.Lists[li].Cards[ci].ID), true
	default:
		return domain.Ref{}, false
	}
}

// Children returns the ids and positions of parent's children in order.
// Only workspace (lists) and list (cards) parents are positional containers
// for gestures.
func (s *Store) Children(parent domain.Ref) ([]uuid.UUID, []float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch parent.Kind {
	case domain.KindWorkspace:
		if parent.ID != s.ws.ID {
			return nil, nil, false
		}
		ids := make([]uuid.UUID, len(s.ws.Lists))
		pos := make([]float64, len(s.ws.Lists))
		for i, l := range s.ws.Lists {
			ids[i], pos[i] = l.ID, l.Position
		}
		return ids, pos, true
	case domain.KindList:
		li := s.listIndex(parent.ID)
		if li < 0 {
			return nil, nil, false
		}
		cards := s.ws.Lists[li].Cards
		ids := make([]uuid.UUID, len(cards))
		pos := make([]float64, len(cards))
		for i, c := range cards {
			ids[i], pos[i] = c.ID, c.Position
		}
		return ids, pos, true
	default:
		return nil, nil, false
	}
}

// ---------------------------------------------------------------------------
// Whole-tree operations
// ---------------------------------------------------------------------------

// Load replaces the whole tree with ws.
func (s *Store) Load(ws domain.Workspace) {
	fresh := ws.Clone()
	sortTree(&fresh)

	s.mu.Lock()
	if fresh.ID == uuid.Nil {
		fresh.ID = s.ws.ID
	}
	s.ws = fresh
	id := s.ws.ID
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeReloaded, Item: domain.WorkspaceRef(id)})
}

// Snapshot captures a deep copy of the tree.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{ws: s.ws.Clone()}
}

// Restore replaces the tree with a previously captured snapshot.
func (s *Store) Restore(snap Snapshot) {
	ws := snap.ws.Clone()

	s.mu.Lock()
	if ws.ID == uuid.Nil {
		ws.ID = s.ws.ID
	}
	s.ws = ws
	id := s.ws.ID
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeReloaded, Item: domain.WorkspaceRef(id)})
}

// ---------------------------------------------------------------------------
// Lists
// ---------------------------------------------------------------------------

// InsertList adds l to the workspace, replacing any list with the same id.
func (s *Store) InsertList(l domain.List) {
	l = l.Clone()
	sortListTree(&l)

	s.mu.Lock()
	if li := s.listIndex(l.ID); li >= 0 {
		s.ws.Lists[li] = l
	} else {
		s.ws.Lists = append(s.ws.Lists, l)
	}
	sortLists(s.ws.Lists)
	parent := domain.WorkspaceRef(s.ws.ID)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeInserted, Item: domain.ListRef(l.ID), Parent: parent})
}

// RelocateList moves a list to pos within the workspace.
func (s *Store) RelocateList(id uuid.UUID, pos float64) error {
	s.mu.Lock()
	li := s.listIndex(id)
	if li < 0 {
		s.mu.Unlock()
		return fmt.Errorf("board.Store.RelocateList: list %s: %w", id, domain.ErrNotFound)
	}
	s.ws.Lists[li].Position = pos
	sortLists(s.ws.Lists)
	parent := domain.WorkspaceRef(s.ws.ID)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeRelocated, Item: domain.ListRef(id), Parent: parent})
	return nil
}

// RemoveList deletes a list and everything under it. It reports whether the
// list existed.
func (s *Store) RemoveList(id uuid.UUID) bool {
	s.mu.Lock()
	li := s.listIndex(id)
	if li < 0 {
		s.mu.Unlock()
		return false
	}
	s.ws.Lists = slices.Delete(s.ws.Lists, li, li+1)
	parent := domain.WorkspaceRef(s.ws.ID)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeRemoved, Item: domain.ListRef(id), Parent: parent})
	return true
}

// PatchList merges p into the list with id.
func (s *Store) PatchList(id uuid.UUID, p domain.ListPatch) error {
	s.mu.Lock()
	li := s.listIndex(id)
	if li < 0 {
		s.mu.Unlock()
		return fmt.Errorf("board.Store.PatchList: list %s: %w", id, domain.ErrNotFound)
	}
	p.Apply(&s.ws.Lists[li])
	parent := domain.WorkspaceRef(s.ws.ID)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangePatched, Item: domain.ListRef(id), Parent: parent})
	return nil
}

// ---------------------------------------------------------------------------
// Cards
// ---------------------------------------------------------------------------

// InsertCard adds c to listID. A card with the same id is replaced in place;
// if it lives under another list it is moved here.
func (s *Store) InsertCard(listID uuid.UUID, c domain.Card) error {
	c = c.Clone()
	sortCardTree(&c)

	s.mu.Lock()
	li := s.listIndex(listID)
	if li < 0 {
		s.mu.Unlock()
		return fmt.Errorf("board.Store.InsertCard: list %s: %w", listID, domain.ErrNotFound)
	}
	if oldLi, ci := s.cardIndex(c.ID); oldLi >= 0 {
		if oldLi == li {
			s.ws.Lists[li].Cards[ci] = c
			sortCards(s.ws.Lists[li].Cards)
			s.mu.Unlock()
			s.emit(Change{Kind: ChangeInserted, Item: domain.CardRef(c.ID), Parent: domain.ListRef(listID)})
			return nil
		}
		s.ws.Lists[oldLi].Cards = slices.Delete(s.ws.Lists[oldLi].Cards, ci, ci+1)
	}
	s.ws.Lists[li].Cards = append(s.ws.Lists[li].Cards, c)
	sortCards(s.ws.Lists[li].Cards)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeInserted, Item: domain.CardRef(c.ID), Parent: domain.ListRef(listID)})
	return nil
}

// RelocateCard moves a card from one list to another (or within one list)
// and sets its position. It returns domain.ErrNotFound without mutating
// anything when the card is not under fromListID or toListID does not exist;
// concurrent deletion makes that an expected outcome.
func (s *Store) RelocateCard(cardID, fromListID, toListID uuid.UUID, pos float64) error {
	s.mu.Lock()
	from := s.listIndex(fromListID)
	to := s.listIndex(toListID)
	if from < 0 || to < 0 {
		s.mu.Unlock()
		return fmt.Errorf("board.Store.RelocateCard: list %s or %s: %w", fromListID, toListID, domain.ErrNotFound)
	}
	ci := cardIn(s.ws.Lists[from].Cards, cardID)
	if ci < 0 {
		s.mu.Unlock()
		return fmt.Errorf("board.Store.RelocateCard: card %s in list %s: %w", cardID, fromListID, domain.ErrNotFound)
	}

	card := s.ws.Lists[from].Cards[ci]
	card.Position = pos
	if from == to {
		s.ws.Lists[from].Cards[ci] = card
	} else {
		s.ws.Lists[from].Cards = slices.Delete(s.ws.Lists[from].Cards, ci, ci+1)
		s.ws.Lists[to].Cards = append(s.ws.Lists[to].Cards, card)
	}
	sortCards(s.ws.Lists[to].Cards)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeRelocated, Item: domain.CardRef(cardID), Parent: domain.ListRef(toListID)})
	return nil
}

// RemoveCard deletes a card from listID. It reports whether the card existed.
func (s *Store) RemoveCard(listID, cardID uuid.UUID) bool {
	s.mu.Lock()
	li := s.listIndex(listID)
	if li < 0 {
		s.mu.Unlock()
		return false
	}
	ci := cardIn(s.ws.Lists[li].Cards, cardID)
	if ci < 0 {
		s.mu.Unlock()
		return false
	}
	s.ws.Lists[li].Cards = slices.Delete(s.ws.Lists[li].Cards, ci, ci+1)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeRemoved, Item: domain.CardRef(cardID), Parent: domain.ListRef(listID)})
	return true
}

// PatchCard merges p into the card with id. Position and children are never
// touched.
func (s *Store) PatchCard(id uuid.UUID, p domain.CardPatch) error {
	return s.mutateCard("board.Store.PatchCard", id, func(c *domain.Card) {
		p.Apply(c)
	})
}

// AssignMember adds m to the card's members, replacing an existing entry for
// the same student.
func (s *Store) AssignMember(cardID uuid.UUID, m domain.MemberRef) error {
	return s.mutateCard("board.Store.AssignMember", cardID, func(c *domain.Card) {
		for i := range c.AssignedMembers {
			if c.AssignedMembers[i].StudentID == m.StudentID {
				c.AssignedMembers[i] = m
				return
			}
		}
		c.AssignedMembers = append(c.AssignedMembers, m)
	})
}

// UnassignMember removes studentID from the card's members.
func (s *Store) UnassignMember(cardID uuid.UUID, studentID string) error {
	return s.mutateCard("board.Store.UnassignMember", cardID, func(c *domain.Card) {
		c.AssignedMembers = slices.DeleteFunc(c.AssignedMembers, func(m domain.MemberRef) bool {
			return m.StudentID == studentID
		})
	})
}

func (s *Store) mutateCard(op string, id uuid.UUID, fn func(*domain.Card)) error {
	s.mu.Lock()
	li, ci := s.cardIndex(id)
	if li < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%s: card %s: %w", op, id, domain.ErrNotFound)
	}
	fn(&s.ws.Lists[li].Cards[ci])
	parent := domain.ListRef(s.ws.Lists[li].ID)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangePatched, Item: domain.CardRef(id), Parent: parent})
	return nil
}

// ---------------------------------------------------------------------------
// Tasks and subtasks
// ---------------------------------------------------------------------------

// InsertTask adds t to cardID, replacing any task with the same id.
func (s *Store) InsertTask(cardID uuid.UUID, t domain.Task) error {
	t = t.Clone()
	sortSubtasks(t.Subtasks)

	s.mu.Lock()
	li, ci := s.cardIndex(cardID)
	if li < 0 {
		s.mu.Unlock()
		return fmt.Errorf("board.Store.InsertTask: card %s: %w", cardID, domain.ErrNotFound)
	}
	card := &s.ws.Lists[li].Cards[ci]
	if ti := taskIn(card.Tasks, t.ID); ti >= 0 {
		card.Tasks[ti] = t
	} else {
		card.Tasks = append(card.Tasks, t)
	}
	sortTasks(card.Tasks)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeInserted, Item: domain.TaskRef(t.ID), Parent: domain.CardRef(cardID)})
	return nil
}

// RemoveTask deletes a task from cardID. It reports whether the task existed.
func (s *Store) RemoveTask(cardID, taskID uuid.UUID) bool {
	s.mu.Lock()
	li, ci := s.cardIndex(cardID)
	if li < 0 {
		s.mu.Unlock()
		return false
	}
	card := &s.ws.Lists[li].Cards[ci]
	ti := taskIn(card.Tasks, taskID)
	if ti < 0 {
		s.mu.Unlock()
		return false
	}
	card.Tasks = slices.Delete(card.Tasks, ti, ti+1)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeRemoved, Item: domain.TaskRef(taskID), Parent: domain.CardRef(cardID)})
	return true
}

// PatchTask merges p into the task with id.
func (s *Store) PatchTask(id uuid.UUID, p domain.TaskPatch) error {
	s.mu.Lock()
	li, ci, ti := s.taskIndex(id)
	if li < 0 {
		s.mu.Unlock()
		return fmt.Errorf("board.Store.PatchTask: task %s: %w", id, domain.ErrNotFound)
	}
	card := &s.ws.Lists[li].Cards[ci]
	p.Apply(&card.Tasks[ti])
	parent := domain.CardRef(card.ID)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangePatched, Item: domain.TaskRef(id), Parent: parent})
	return nil
}

// InsertSubtask adds st to taskID, replacing any subtask with the same id.
func (s *Store) InsertSubtask(taskID uuid.UUID, st domain.Subtask) error {
	s.mu.Lock()
	li, ci, ti := s.taskIndex(taskID)
	if li < 0 {
		s.mu.Unlock()
		return fmt.Errorf("board.Store.InsertSubtask: task %s: %w", taskID, domain.ErrNotFound)
	}
	task := &s.ws.Lists[li].Cards[ci].Tasks[ti]
	if si := subtaskIn(task.Subtasks, st.ID); si >= 0 {
		task.Subtasks[si] = st
	} else {
		task.Subtasks = append(task.Subtasks, st)
	}
	sortSubtasks(task.Subtasks)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeInserted, Item: domain.SubtaskRef(st.ID), Parent: domain.TaskRef(taskID)})
	return nil
}

// RemoveSubtask deletes a subtask. It reports whether the subtask existed.
func (s *Store) RemoveSubtask(taskID, subtaskID uuid.UUID) bool {
	s.mu.Lock()
	li, ci, ti := s.taskIndex(taskID)
	if li < 0 {
		s.mu.Unlock()
		return false
	}
	task := &s.ws.Lists[li].Cards[ci].Tasks[ti]
	si := subtaskIn(task.Subtasks, subtaskID)
	if si < 0 {
		s.mu.Unlock()
		return false
	}
	task.Subtasks = slices.Delete(task.Subtasks, si, si+1)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeRemoved, Item: domain.SubtaskRef(subtaskID), Parent: domain.TaskRef(taskID)})
	return true
}

// PatchSubtask merges p into a subtask.
func (s *Store) PatchSubtask(taskID, subtaskID uuid.UUID, p domain.SubtaskPatch) error {
	s.mu.Lock()
	li, ci, ti := s.taskIndex(taskID)
	if li < 0 {
		s.mu.Unlock()
		return fmt.Errorf("board.Store.PatchSubtask: task %s: %w", taskID, domain.ErrNotFound)
	}
	task := &s.ws.Lists[li].Cards[ci].Tasks[ti]
	si := subtaskIn(task.Subtasks, subtaskID)
	if si < 0 {
		s.mu.Unlock()
		return fmt.Errorf("board.Store.PatchSubtask: subtask %s: %w", subtaskID, domain.ErrNotFound)
	}
	p.Apply(&task.Subtasks[si])
	s.mu.Unlock()

	s.emit(Change{Kind: ChangePatched, Item: domain.SubtaskRef(subtaskID), Parent: domain.TaskRef(taskID)})
	return nil
}

// ---------------------------------------------------------------------------
// Renumbering
// ---------------------------------------------------------------------------

// PlanRenumber returns evenly spaced positions for parent's children in their
// current order without changing anything.
func (s *Store) PlanRenumber(parent domain.Ref) (map[uuid.UUID]float64, error) {
	ids, _, ok := s.Children(parent)
	if !ok {
		return nil, fmt.Errorf("board.Store.PlanRenumber: %s: %w", parent, domain.ErrNotFound)
	}
	fresh := position.Renumber(len(ids))
	out := make(map[uuid.UUID]float64, len(ids))
	for i, id := range ids {
		out[id] = fresh[i]
	}
	return out, nil
}

// SetPositions overwrites the positions of parent's children named in
// positions. Children missing from the map keep their position.
func (s *Store) SetPositions(parent domain.Ref, positions map[uuid.UUID]float64) error {
	s.mu.Lock()
	switch parent.Kind {
	case domain.KindWorkspace:
		for i := range s.ws.Lists {
			if p, ok := positions[s.ws.Lists[i].ID]; ok {
				s.ws.Lists[i].Position = p
			}
		}
		sortLists(s.ws.Lists)
	case domain.KindList:
		li := s.listIndex(parent.ID)
		if li < 0 {
			s.mu.Unlock()
			return fmt.Errorf("board.Store.SetPositions: %s: %w", parent, domain.ErrNotFound)
		}
		cards := s.ws.Lists[li].Cards
		for i := range cards {
			if p, ok := positions[cards[i].ID]; ok {
				cards[i].Position = p
			}
		}
		sortCards(cards)
	default:
		s.mu.Unlock()
		return fmt.Errorf("board.Store.SetPositions: %s: %w", parent, domain.ErrNotFound)
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeRenumbered, Item: parent})
	return nil
}

// ---------------------------------------------------------------------------
// Index helpers (callers hold mu)
// ---------------------------------------------------------------------------

func (s *Store) listIndex(id uuid.UUID) int {
	return slices.IndexFunc(s.ws.Lists, func(l domain.List) bool { return l.ID == id })
}

func (s *Store) cardIndex(id uuid.UUID) (int, int) {
	for li := range s.ws.Lists {
		if ci := cardIn(s.ws.Lists[li].Cards, id); ci >= 0 {
			return li, ci
		}
	}
	return -1, -1
}

func (s *Store) taskIndex(id uuid.UUID) (int, int, int) {
	for li := range s.ws.Lists {
		cards := s.ws.Lists[li].Cards
		for ci := range cards {
			if ti := taskIn(cards[ci].Tasks, id); ti >= 0 {
				return li, ci, ti
			}
		}
	}
	return -1, -1, -1
}

func cardIn(cards []domain.Card, id uuid.UUID) int {
	return slices.IndexFunc(cards, func(c domain.Card) bool { return c.ID == id })
}

func taskIn(tasks []domain.Task, id uuid.UUID) int {
	return slices.IndexFunc(tasks, func(t domain.Task) bool { return t.ID == id })
}

func subtaskIn(subtasks []domain.Subtask, id uuid.UUID) int {
	return slices.IndexFunc(subtasks, func(st domain.Subtask) bool { return st.ID == id })
}

// ---------------------------------------------------------------------------
// Ordering
// ---------------------------------------------------------------------------

// byPosition orders by position and breaks ties by id so that colliding
// positions still read back in a stable order.
func byPosition(ap, bp float64, aid, bid uuid.UUID) int {
	if c := cmp.Compare(ap, bp); c != 0 {
		return c
	}
	return bytes.Compare(aid[:], bid[:])
}

func sortLists(lists []domain.List) {
	slices.SortStableFunc(lists, func(a, b domain.List) int { return byPosition(a.Position, b.Position, a.ID, b.ID) })
}

func sortCards(cards []domain.Card) {
	slices.SortStableFunc(cards, func(a, b domain.Card) int { return byPosition(a.Position, b.Position, a.ID, b.ID) })
}

func sortTasks(tasks []domain.Task) {
	slices.SortStableFunc(tasks, func(a, b domain.Task) int { return byPosition(a.Position, b.Position, a.ID, b.ID) })
}

func sortSubtasks(subtasks []domain.Subtask) {
	slices.SortStableFunc(subtasks, func(a, b domain.Subtask) int { return byPosition(a.Position, b.Position, a.ID, b.ID) })
}

func sortTree(ws *domain.Workspace) {
	sortLists(ws.Lists)
	for li := range ws.Lists {
		sortListTree(&ws.Lists[li])
	}
}

func sortListTree(l *domain.List) {
	sortCards(l.Cards)
	for ci := range l.Cards {
		sortCardTree(&l.Cards[ci])
	}
}

func sortCardTree(c *domain.Card) {
	sortTasks(c.Tasks)
	for ti := range c.Tasks {
		sortSubtasks(c.Tasks[ti].Subtasks)
	}
}
