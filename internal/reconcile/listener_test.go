package reconcile_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/board"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/protocol"
	"github.com/gosuda/boardsync/internal/reconcile"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

type fixture struct {
	store   *board.Store
	listA   uuid.UUID
	listB   uuid.UUID
	card1   uuid.UUID
	card2   uuid.UUID
	task    uuid.UUID
	subtask uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	f := fixture{
		store:   board.New(uuid.New()),
		listA:   uuid.New(),
		listB:   uuid.New(),
		card1:   uuid.New(),
		card2:   uuid.New(),
		task:    uuid.New(),
		subtask: uuid.New(),
	}
	f.store.Load(domain.Workspace{Lists: []domain.List{
		{ID: f.listA, Title: "A", Position: 1, Cards: []domain.Card{
			{ID: f.card1, Title: "one", RiskLevel: domain.RiskLow, Position: 1, Tasks: []domain.Task{
				{ID: f.task, Title: "task", Position: 1, Subtasks: []domain.Subtask{
					{ID: f.subtask, Title: "sub", Position: 1},
				}},
			}},
			{ID: f.card2, Title: "two", RiskLevel: domain.RiskLow, Position: 2},
		}},
		{ID: f.listB, Title: "B", Position: 2},
	}})
	return f
}

type fakeGuard struct {
	observeFn func(ev domain.Event, moves []domain.Ref, apply func(domain.Ref) error) error
}

func (g *fakeGuard) Observe(ev domain.Event, moves []domain.Ref, apply func(domain.Ref) error) error {
	return g.observeFn(ev, moves, apply)
}

type countingRecorder struct {
	applied map[domain.EventType]int
	dropped map[string]int
}

func newRecorder() *countingRecorder {
	return &countingRecorder{applied: map[domain.EventType]int{}, dropped: map[string]int{}}
}

func (r *countingRecorder) EventApplied(typ domain.EventType) { r.applied[typ]++ }
func (r *countingRecorder) EventDropped(reason string)        { r.dropped[reason]++ }

func strPtr(s string) *string { return &s }

// ---------------------------------------------------------------------------
// Idempotence
// ---------------------------------------------------------------------------

func TestApply_Idempotent(t *testing.T) {
	t.Parallel()

	high := domain.RiskHigh
	newList, newCard, newTask, newSub := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	events := func(f fixture) map[string]domain.Event {
		return map[string]domain.Event{
			"list created":      domain.ListCreated{List: domain.List{ID: newList, Title: "C", Position: 3}},
			"list renamed":      domain.ListRenamed{ListID: f.listA, Title: "Alpha"},
			"list moved":        domain.ListMoved{ListID: f.listA, Position: 5},
			"list deleted":      domain.ListDeleted{ListID: f.listB},
			"card created":      domain.CardCreated{ListID: f.listB, Card: domain.Card{ID: newCard, Title: "new", Position: 1}},
			"card moved":        domain.CardMoved{FromListID: f.listA, ToListID: f.listB, CardID: f.card1, Position: 1},
			"card updated":      domain.CardUpdated{CardID: f.card1, Fields: domain.CardPatch{Title: strPtr("renamed"), RiskLevel: &high}},
			"card completion":   domain.CardCompletionChanged{CardID: f.card2, IsCompleted: true},
			"card deleted":      domain.CardDeleted{ListID: f.listA, CardID: f.card2},
			"member assigned":   domain.MemberAssigned{CardID: f.card1, Member: domain.MemberRef{StudentID: "s1", DisplayName: "Sam"}},
			"member unassigned": domain.MemberUnassigned{CardID: f.card1, StudentID: "s1"},
			"task created":      domain.TaskCreated{CardID: f.card2, Task: domain.Task{ID: newTask, Title: "t", Position: 1}},
			"task renamed":      domain.TaskRenamed{CardID: f.card1, TaskID: f.task, Title: "renamed"},
			"task completion":   domain.TaskCompletionChanged{CardID: f.card1, TaskID: f.task, Done: true},
			"task deleted":      domain.TaskDeleted{CardID: f.card1, TaskID: f.task},
			"subtask created":   domain.SubtaskCreated{TaskID: f.task, Subtask: domain.Subtask{ID: newSub, Title: "s", Position: 2}},
			"subtask renamed":   domain.SubtaskRenamed{TaskID: f.task, SubtaskID: f.subtask, Title: "renamed"},
			"subtask done":      domain.SubtaskCompletionChanged{TaskID: f.task, SubtaskID: f.subtask, IsDone: true},
			"subtask deleted":   domain.SubtaskDeleted{TaskID: f.task, SubtaskID: f.subtask},
			"renumbered": domain.PositionsRenumbered{
				Parent:    domain.ListRef(f.listA),
				Positions: map[uuid.UUID]float64{f.card1: 10, f.card2: 20},
			},
		}
	}

	for name := range events(newFixture(t)) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			once := newFixture(t)
			ev := events(once)[name]
			require.NoError(t, reconcile.Apply(once.store, ev, domain.Ref{}))
			want := once.store.Workspace()

			require.NoError(t, reconcile.Apply(once.store, ev, domain.Ref{}))
			assert.Equal(t, want, once.store.Workspace())
		})
	}
}

// ---------------------------------------------------------------------------
// Out-of-order and structural misses
// ---------------------------------------------------------------------------

func TestApply_UnrelatedEventsCommute(t *testing.T) {
	t.Parallel()

	a, b := newFixture(t), newFixture(t)
	b.store.Load(a.store.Workspace())

	ev1 := domain.CardMoved{FromListID: a.listA, ToListID: a.listB, CardID: a.card1, Position: 1}
	ev2 := domain.CardUpdated{CardID: a.card2, Fields: domain.CardPatch{Title: strPtr("x")}}

	require.NoError(t, reconcile.Apply(a.store, ev1, domain.Ref{}))
	require.NoError(t, reconcile.Apply(a.store, ev2, domain.Ref{}))
	require.NoError(t, reconcile.Apply(b.store, ev2, domain.Ref{}))
	require.NoError(t, reconcile.Apply(b.store, ev1, domain.Ref{}))

	assert.Equal(t, a.store.Workspace(), b.store.Workspace())
}

func TestApply_MissingTargetsAreReportedNotFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	before := f.store.Workspace()

	err := reconcile.Apply(f.store, domain.CardUpdated{CardID: uuid.New(), Fields: domain.CardPatch{Title: strPtr("x")}}, domain.Ref{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = reconcile.Apply(f.store, domain.CardCreated{ListID: uuid.New(), Card: domain.Card{ID: uuid.New()}}, domain.Ref{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, reconcile.Apply(f.store, domain.CardDeleted{ListID: f.listA, CardID: uuid.New()}, domain.Ref{}))
	assert.NoError(t, reconcile.Apply(f.store, domain.ListDeleted{ListID: uuid.New()}, domain.Ref{}))

	assert.Equal(t, before, f.store.Workspace())
}

func TestApply_CardMovedFromStaleSource(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.store.RelocateCard(f.card1, f.listA, f.listB, 1))

	// The event still names list A as the source.
	ev := domain.CardMoved{FromListID: f.listA, ToListID: f.listA, CardID: f.card1, Position: 3}
	require.NoError(t, reconcile.Apply(f.store, ev, domain.Ref{}))

	card, listID, ok := f.store.FindCard(f.card1)
	require.True(t, ok)
	assert.Equal(t, f.listA, listID)
	assert.Equal(t, 3.0, card.Position)
}

func TestApply_CardDeletedAfterMove(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.store.RelocateCard(f.card1, f.listA, f.listB, 1))

	require.NoError(t, reconcile.Apply(f.store, domain.CardDeleted{ListID: f.listA, CardID: f.card1}, domain.Ref{}))
	_, _, ok := f.store.FindCard(f.card1)
	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// Hold (drag in progress)
// ---------------------------------------------------------------------------

func TestApply_HoldSkipsOnlyTheHeldItemPosition(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	held := domain.CardRef(f.card1)

	require.NoError(t, reconcile.Apply(f.store, domain.CardMoved{
		FromListID: f.listA, ToListID: f.listB, CardID: f.card1, Position: 7,
	}, held))
	_, listID, _ := f.store.FindCard(f.card1)
	assert.Equal(t, f.listA, listID)

	require.NoError(t, reconcile.Apply(f.store, domain.PositionsRenumbered{
		Parent:    domain.ListRef(f.listA),
		Positions: map[uuid.UUID]float64{f.card1: 30, f.card2: 10},
	}, held))
	c1, _, _ := f.store.FindCard(f.card1)
	c2, _, _ := f.store.FindCard(f.card2)
	assert.Equal(t, 1.0, c1.Position)
	assert.Equal(t, 10.0, c2.Position)

	require.NoError(t, reconcile.Apply(f.store, domain.CardUpdated{CardID: f.card1, Fields: domain.CardPatch{Title: strPtr("live")}}, held))
	c1, _, _ = f.store.FindCard(f.card1)
	assert.Equal(t, "live", c1.Title)
}

func TestMoves(t *testing.T) {
	t.Parallel()

	list, card := uuid.New(), uuid.New()
	assert.Equal(t, []domain.Ref{domain.ListRef(list)}, reconcile.Moves(domain.ListMoved{ListID: list, Position: 1}))
	assert.Equal(t, []domain.Ref{domain.CardRef(card)}, reconcile.Moves(domain.CardMoved{CardID: card}))
	assert.Equal(t, []domain.Ref{domain.CardRef(card)}, reconcile.Moves(domain.PositionsRenumbered{
		Parent: domain.ListRef(list), Positions: map[uuid.UUID]float64{card: 1},
	}))
	assert.Equal(t, []domain.Ref{domain.ListRef(list)}, reconcile.Moves(domain.PositionsRenumbered{
		Parent: domain.WorkspaceRef(uuid.New()), Positions: map[uuid.UUID]float64{list: 1},
	}))
	assert.Empty(t, reconcile.Moves(domain.CardUpdated{CardID: card}))
}

// ---------------------------------------------------------------------------
// Listener
// ---------------------------------------------------------------------------

func TestListener_AppliesThroughGuard(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	var seenMoves []domain.Ref
	guard := &fakeGuard{observeFn: func(_ domain.Event, moves []domain.Ref, apply func(domain.Ref) error) error {
		seenMoves = moves
		return apply(domain.CardRef(f.card1))
	}}
	rec := newRecorder()
	l := reconcile.New(f.store, guard, rec)

	require.NoError(t, l.Apply(domain.CardMoved{FromListID: f.listA, ToListID: f.listB, CardID: f.card1, Position: 1}))
	assert.Equal(t, []domain.Ref{domain.CardRef(f.card1)}, seenMoves)
	_, listID, _ := f.store.FindCard(f.card1)
	assert.Equal(t, f.listA, listID, "held card stays put")

	// Replay bypasses the guard.
	l.Replay(domain.CardMoved{FromListID: f.listA, ToListID: f.listB, CardID: f.card1, Position: 1})
	_, listID, _ = f.store.FindCard(f.card1)
	assert.Equal(t, f.listB, listID)

	assert.Equal(t, 1, rec.applied[domain.EvCardMoved])
}

func TestListener_DeferredApplyReportsItself(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	var queued func(domain.Ref) error
	guard := &fakeGuard{observeFn: func(_ domain.Event, _ []domain.Ref, apply func(domain.Ref) error) error {
		queued = apply
		return nil
	}}
	rec := newRecorder()
	l := reconcile.New(f.store, guard, rec)

	require.NoError(t, l.Apply(domain.CardUpdated{CardID: uuid.New(), Fields: domain.CardPatch{Title: strPtr("x")}}))
	require.NotNil(t, queued)
	assert.Zero(t, rec.dropped["structural"])

	assert.ErrorIs(t, queued(domain.Ref{}), domain.ErrNotFound)
	assert.Equal(t, 1, rec.dropped["structural"])
	assert.Zero(t, rec.applied[domain.EvCardUpdated])
}

func TestListener_HandleMessageDropsGarbage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := newRecorder()
	l := reconcile.New(f.store, nil, rec)
	before := f.store.Workspace()

	assert.NotPanics(t, func() {
		l.HandleMessage(protocol.Body{Type: "nonsense", Payload: json.RawMessage(`{}`)})
		l.HandleMessage(protocol.Body{Type: "card_moved", Payload: json.RawMessage(`{{{`)})
		l.HandleMessage(protocol.Body{Type: "card_updated", Payload: json.RawMessage(`{"card_id":"` + uuid.NewString() + `","fields":{"title":"x"}}`)})
	})

	assert.Equal(t, before, f.store.Workspace())
	assert.Equal(t, 2, rec.dropped["decode"])
	assert.Equal(t, 1, rec.dropped["structural"])
}

func TestListener_HandleMessageApplies(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	l := reconcile.New(f.store, nil, nil)

	body, err := protocol.EncodeEvent(domain.ListRenamed{ListID: f.listB, Title: "Done"})
	require.NoError(t, err)
	l.HandleMessage(body)

	list, ok := f.store.List(f.listB)
	require.True(t, ok)
	assert.Equal(t, "Done", list.Title)
}

func TestListener_ApplyRejectsInvalid(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	l := reconcile.New(f.store, nil, nil)

	err := l.Apply(domain.CardMoved{CardID: f.card1})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
	err = l.Apply(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}
