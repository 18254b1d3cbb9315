// Package reconcile applies broadcast events to a board store.
//
// Every event fully specifies the new state of the item it touches, so
// application is idempotent and safe against out-of-order delivery for
// unrelated items. Events that reference items this replica does not have
// are logged and dropped: the item may have been deleted concurrently.
package reconcile

import (
	"errors"
	"fmt"
	"maps"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/board"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/protocol"
)

// Guard decides how an event interacts with an in-flight gesture. See
// drag.Manager.Observe.
type Guard interface {
	Observe(ev domain.Event, moves []domain.Ref, apply func(hold domain.Ref) error) error
}

// Recorder receives reconciliation statistics. A nil Recorder is allowed.
type Recorder interface {
	EventApplied(typ domain.EventType)
	EventDropped(reason string)
}

// Listener translates events into store operations.
type Listener struct {
	store *board.Store
	guard Guard
	rec   Recorder
}

// New creates a listener. guard and rec may be nil; without a guard every
// event is applied in full.
func New(store *board.Store, guard Guard, rec Recorder) *Listener {
	return &Listener{store: store, guard: guard, rec: rec}
}

// HandleMessage decodes and applies one event body. It never returns an
// error: anything that cannot be applied is logged and dropped.
func (l *Listener) HandleMessage(body protocol.Body) {
	ev, err := protocol.DecodeEvent(body)
	if err != nil {
		l.dropped("decode", err, body.Type)
		return
	}
	_ = l.Apply(ev)
}

// Apply validates ev and applies it through the guard. The returned error is
// informational; the store is left untouched when it is non-nil. Structural
// misses are logged at warn. When the guard queues ev behind a mutation in
// progress, Apply returns nil and a later miss is only logged.
func (l *Listener) Apply(ev domain.Event) error {
	if err := domain.ValidateEvent(ev); err != nil {
		typ := ""
		if ev != nil {
			typ = string(ev.EventType())
		}
		l.dropped("invalid", err, typ)
		return fmt.Errorf("reconcile.Listener.Apply: %w", err)
	}

	run := func(hold domain.Ref) error {
		if err := Apply(l.store, ev, hold); err != nil {
			l.dropped("structural", err, string(ev.EventType()))
			return err
		}
		if l.rec != nil {
			l.rec.EventApplied(ev.EventType())
		}
		return nil
	}

	var err error
	if l.guard != nil {
		err = l.guard.Observe(ev, Moves(ev), run)
	} else {
		err = run(domain.Ref{})
	}
	if err != nil {
		return fmt.Errorf("reconcile.Listener.Apply: %w", err)
	}
	return nil
}

// Replay applies ev in full, bypassing the guard. It is the replayer the drag
// manager uses after a rollback or commit, while it already serialises
// application.
func (l *Listener) Replay(ev domain.Event) {
	if err := Apply(l.store, ev, domain.Ref{}); err != nil {
		log.Debug().Err(err).Str("event_type", string(ev.EventType())).Msg("replayed event not applicable")
	}
}

func (l *Listener) dropped(reason string, err error, typ string) {
	log.Warn().Err(err).
		Str("event_type", typ).
		Str("workspace_id", l.store.WorkspaceID().String()).
		Str("reason", reason).
		Msg("broadcast event dropped")
	if l.rec != nil {
		l.rec.EventDropped(reason)
	}
}

// Moves returns the items whose position ev changes.
func Moves(ev domain.Event) []domain.Ref {
	switch e := ev.(type) {
	case domain.ListMoved:
		return []domain.Ref{domain.ListRef(e.ListID)}
	case domain.CardMoved:
		return []domain.Ref{domain.CardRef(e.CardID)}
	case domain.PositionsRenumbered:
		kind := domain.KindList
		if e.Parent.Kind == domain.KindList {
			kind = domain.KindCard
		}
		out := make([]domain.Ref, 0, len(e.Positions))
		for id := range e.Positions {
			out = append(out, domain.Ref{Kind: kind, ID: id})
		}
		return out
	default:
		return nil
	}
}

// Apply performs ev against store. hold names an item whose position must be
// left alone; the zero Ref holds nothing. Removals of missing items are not
// errors. Everything else that references a missing item returns an error
// wrapping domain.ErrNotFound.
func Apply(store *board.Store, ev domain.Event, hold domain.Ref) error {
	switch e := ev.(type) {
	case domain.ListCreated:
		store.InsertList(e.List)
		return nil

	case domain.ListRenamed:
		return store.PatchList(e.ListID, domain.ListPatch{Title: &e.Title})

	case domain.ListMoved:
		if hold == domain.ListRef(e.ListID) {
			return nil
		}
		return store.RelocateList(e.ListID, e.Position)

	case domain.ListDeleted:
		store.RemoveList(e.ListID)
		return nil

	case domain.CardCreated:
		return store.InsertCard(e.ListID, e.Card)

	case domain.CardMoved:
		if hold == domain.CardRef(e.CardID) {
			return nil
		}
		return moveCard(store, e)

	case domain.CardUpdated:
		return store.PatchCard(e.CardID, e.Fields)

	case domain.CardCompletionChanged:
		return store.PatchCard(e.CardID, domain.CardPatch{IsCompleted: &e.IsCompleted})

	case domain.CardDeleted:
		if !store.RemoveCard(e.ListID, e.CardID) {
			// The card may have moved since the delete was issued.
			if _, listID, ok := store.FindCard(e.CardID); ok {
				store.RemoveCard(listID, e.CardID)
			}
		}
		return nil

	case domain.MemberAssigned:
		return store.AssignMember(e.CardID, e.Member)

	case domain.MemberUnassigned:
		return store.UnassignMember(e.CardID, e.StudentID)

	case domain.TaskCreated:
		return store.InsertTask(e.CardID, e.Task)

	case domain.TaskRenamed:
		return store.PatchTask(e.TaskID, domain.TaskPatch{Title: &e.Title})

	case domain.TaskCompletionChanged:
		return store.PatchTask(e.TaskID, domain.TaskPatch{Done: &e.Done})

	case domain.TaskDeleted:
		store.RemoveTask(e.CardID, e.TaskID)
		return nil

	case domain.SubtaskCreated:
		return store.InsertSubtask(e.TaskID, e.Subtask)

	case domain.SubtaskRenamed:
		return store.PatchSubtask(e.TaskID, e.SubtaskID, domain.SubtaskPatch{Title: &e.Title})

	case domain.SubtaskCompletionChanged:
		return store.PatchSubtask(e.TaskID, e.SubtaskID, domain.SubtaskPatch{IsDone: &e.IsDone})

	case domain.SubtaskDeleted:
		store.RemoveSubtask(e.TaskID, e.SubtaskID)
		return nil

	case domain.PositionsRenumbered:
		positions := e.Positions
		if hold != (domain.Ref{}) {
			if _, ok := positions[hold.ID]; ok {
				positions = maps.Clone(positions)
				delete(positions, hold.ID)
			}
		}
		return store.SetPositions(e.Parent, positions)

	default:
		return fmt.Errorf("reconcile.Apply: %T: %w", ev, domain.ErrUnknownEvent)
	}
}

// moveCard relocates a card. When the card is no longer under the event's
// source list (a later move already landed locally, or the replica missed
// one), it is moved from wherever it currently is.
func moveCard(store *board.Store, e domain.CardMoved) error {
	err := store.RelocateCard(e.CardID, e.FromListID, e.ToListID, e.Position)
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	_, current, ok := store.FindCard(e.CardID)
	if !ok || current == e.FromListID {
		return err
	}
	return store.RelocateCard(e.CardID, current, e.ToListID, e.Position)
}
