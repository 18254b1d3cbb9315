package client_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/board"
	"github.com/gosuda/boardsync/internal/channel"
	"github.com/gosuda/boardsync/internal/client"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/drag"
	"github.com/gosuda/boardsync/internal/droptarget"
	"github.com/gosuda/boardsync/internal/protocol"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeTransport struct {
	mu        sync.Mutex
	state     channel.State
	sent      []domain.Command
	requestFn func(ctx context.Context, cmd domain.Command) (*protocol.Body, error)
}

func (f *fakeTransport) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (f *fakeTransport) Request(ctx context.Context, cmd domain.Command) (*protocol.Body, error) {
	f.mu.Lock()
	f.sent = append(f.sent, cmd)
	fn := f.requestFn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, cmd)
}

func (f *fakeTransport) State() channel.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) OnStateChange(func(channel.State)) func() { return func() {} }
func (f *fakeTransport) Close(context.Context) error             { return nil }

func (f *fakeTransport) commands() []domain.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Command(nil), f.sent...)
}

type fakeFetcher struct {
	fetchFn func(ctx context.Context, id uuid.UUID) (protocol.BoardSnapshot, error)
}

func (f *fakeFetcher) FetchBoard(ctx context.Context, id uuid.UUID) (protocol.BoardSnapshot, error) {
	return f.fetchFn(ctx, id)
}

type mockNotifier struct {
	mu     sync.Mutex
	failed []domain.CommandType
}

func (n *mockNotifier) CommandFailed(typ domain.CommandType, _ error) {
	n.mu.Lock()
	n.failed = append(n.failed, typ)
	n.mu.Unlock()
}

type mockRecorder struct {
	mu       sync.Mutex
	applied  int
	dropped  []string
	failed   []domain.CommandType
	outcomes []drag.Outcome
}

func (r *mockRecorder) DragFinished(_ domain.ItemKind, o drag.Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
}
func (r *mockRecorder) EventDeferred() {}
func (r *mockRecorder) EventApplied(domain.EventType) {
	r.mu.Lock()
	r.applied++
	r.mu.Unlock()
}
func (r *mockRecorder) EventDropped(reason string) {
	r.mu.Lock()
	r.dropped = append(r.dropped, reason)
	r.mu.Unlock()
}
func (r *mockRecorder) CommandFailed(typ domain.CommandType) {
	r.mu.Lock()
	r.failed = append(r.failed, typ)
	r.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Fixture: list A = [C1 1.0, C2 2.0], list B empty.
// ---------------------------------------------------------------------------

type fixture struct {
	session   *client.Session
	transport *fakeTransport
	notifier  *mockNotifier
	rec       *mockRecorder

	ws           uuid.UUID
	listA, listB uuid.UUID
	c1, c2       uuid.UUID
}

func (f *fixture) board() domain.Workspace {
	return domain.Workspace{ID: f.ws, Lists: []domain.List{
		{ID: f.listA, Title: "A", Position: 1, Cards: []domain.Card{
			{ID: f.c1, Title: "C1", RiskLevel: domain.RiskLow, Position: 1},
			{ID: f.c2, Title: "C2", RiskLevel: domain.RiskLow, Position: 2},
		}},
		{ID: f.listB, Title: "B", Position: 2},
	}}
}

func newFixture(t *testing.T, fetcher client.Fetcher) *fixture {
	t.Helper()

	f := &fixture{
		transport: &fakeTransport{state: channel.StateConnected},
		notifier:  &mockNotifier{},
		rec:       &mockRecorder{},
		ws:        uuid.New(),
		listA:     uuid.New(),
		listB:     uuid.New(),
		c1:        uuid.New(),
		c2:        uuid.New(),
	}
	if fetcher == nil {
		fetcher = &fakeFetcher{fetchFn: func(context.Context, uuid.UUID) (protocol.BoardSnapshot, error) {
			return protocol.BoardSnapshot{Workspace: f.board(), Seq: 10}, nil
		}}
	}
	f.session = client.New(client.Options{
		WorkspaceID: f.ws,
		Fetcher:     fetcher,
		Notifier:    f.notifier,
		Recorder:    f.rec,
	})
	f.session.Attach(f.transport)
	return f
}

func (f *fixture) load(t *testing.T) {
	t.Helper()
	require.NoError(t, f.session.Resync(context.Background()))
}

func frame(t *testing.T, ws uuid.UUID, seq int64, ev domain.Event) protocol.Frame {
	t.Helper()
	fr, err := protocol.EventFrame(ws, seq, ev)
	require.NoError(t, err)
	return fr
}

func replyWith(ev domain.Event) func(context.Context, domain.Command) (*protocol.Body, error) {
	return func(context.Context, domain.Command) (*protocol.Body, error) {
		body, err := protocol.EncodeEvent(ev)
		if err != nil {
			return nil, err
		}
		return &body, nil
	}
}

// ---------------------------------------------------------------------------
// Resync
// ---------------------------------------------------------------------------

func TestSession_ResyncLoadsSnapshot(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.load(t)

	lists := f.session.Board().Lists()
	require.Len(t, lists, 2)
	assert.Equal(t, f.listA, lists[0].ID)
	assert.Equal(t, int64(10), f.session.Seq())
}

func TestSession_ResyncBuffersRacingEvents(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var f *fixture
	f = newFixture(t, &fakeFetcher{fetchFn: func(context.Context, uuid.UUID) (protocol.BoardSnapshot, error) {
		close(started)
		<-release
		ws := f.board()
		ws.Lists[0].Title = "A (server)"
		return protocol.BoardSnapshot{Workspace: ws, Seq: 6}, nil
	}})

	done := make(chan error, 1)
	go func() { done <- f.session.Resync(context.Background()) }()
	<-started

	late := uuid.New()
	f.session.HandleFrame(frame(t, f.ws, 5, domain.ListRenamed{ListID: f.listA, Title: "stale"}))
	f.session.HandleFrame(frame(t, f.ws, 7, domain.ListCreated{List: domain.List{ID: late, Title: "late", Position: 3}}))
	assert.Empty(t, f.session.Board().Lists(), "nothing applied while the fetch is in flight")

	close(release)
	require.NoError(t, <-done)

	list, ok := f.session.Board().List(f.listA)
	require.True(t, ok)
	assert.Equal(t, "A (server)", list.Title, "event already folded into the snapshot is skipped")
	_, ok = f.session.Board().List(late)
	assert.True(t, ok, "event newer than the snapshot is applied")
	assert.Equal(t, int64(7), f.session.Seq())
}

func TestSession_ResyncFailureFlushesBuffer(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	f := newFixture(t, &fakeFetcher{fetchFn: func(context.Context, uuid.UUID) (protocol.BoardSnapshot, error) {
		close(started)
		<-release
		return protocol.BoardSnapshot{}, errors.New("503")
	}})

	done := make(chan error, 1)
	go func() { done <- f.session.Resync(context.Background()) }()
	<-started

	id := uuid.New()
	f.session.HandleFrame(frame(t, f.ws, 3, domain.ListCreated{List: domain.List{ID: id, Title: "X", Position: 1}}))
	close(release)

	require.Error(t, <-done)
	_, ok := f.session.Board().List(id)
	assert.True(t, ok)

	// Feed is live again.
	f.session.HandleFrame(frame(t, f.ws, 4, domain.ListRenamed{ListID: id, Title: "Y"}))
	list, _ := f.session.Board().List(id)
	assert.Equal(t, "Y", list.Title)
}

func TestSession_ResyncRebasesActiveDrag(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.load(t)

	require.NoError(t, f.session.StartDrag(domain.CardRef(f.c1)))
	require.NoError(t, f.session.Drag().Move([]droptarget.Region{{Kind: droptarget.RegionCardsContainer, ID: f.listB, Overlap: 1}}))
	require.NoError(t, f.session.Resync(context.Background()))

	_, parent, ok := f.session.Board().FindCard(f.c1)
	require.True(t, ok)
	assert.Equal(t, f.listB, parent, "optimistic placement survives the reload")
	assert.Equal(t, drag.StateActive, f.session.Drag().State())
}

// ---------------------------------------------------------------------------
// Broadcast intake
// ---------------------------------------------------------------------------

func TestSession_HandleFrame(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.load(t)

	f.session.HandleFrame(frame(t, f.ws, 11, domain.CardCompletionChanged{CardID: f.c2, IsCompleted: true}))
	f.session.HandleFrame(protocol.Frame{Kind: protocol.KindEvent, WorkspaceID: f.ws, Seq: 12})
	f.session.HandleFrame(protocol.Frame{Kind: protocol.KindEvent, WorkspaceID: f.ws, Seq: 13, Body: &protocol.Body{Type: "card_exploded"}})

	card, _, ok := f.session.Board().FindCard(f.c2)
	require.True(t, ok)
	assert.True(t, card.IsCompleted)
	assert.Equal(t, int64(13), f.session.Seq())

	f.rec.mu.Lock()
	defer f.rec.mu.Unlock()
	assert.Equal(t, 1, f.rec.applied)
	assert.Equal(t, []string{"decode"}, f.rec.dropped)
}

func TestSession_SubscribersMayReadSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	var (
		mu   sync.Mutex
		seen []int64
	)
	unsubscribe := f.session.Board().Subscribe(func(board.Change) {
		seq := f.session.Seq()
		_ = f.session.Drag().State()
		mu.Lock()
		seen = append(seen, seq)
		mu.Unlock()
	})
	defer unsubscribe()

	completed := frame(t, f.ws, 11, domain.CardCompletionChanged{CardID: f.c2, IsCompleted: true})
	errc := make(chan error, 1)
	go func() {
		if err := f.session.Resync(context.Background()); err != nil {
			errc <- err
			return
		}
		f.session.HandleFrame(completed)
		errc <- nil
	}()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("a store subscriber reading the session blocked the feed")
	}

	card, _, ok := f.session.Board().FindCard(f.c2)
	require.True(t, ok)
	assert.True(t, card.IsCompleted)
	assert.Equal(t, int64(11), f.session.Seq())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, int64(10), seen[0], "reload observed at the snapshot's seq")
	assert.Equal(t, int64(11), seen[len(seen)-1])
}

// ---------------------------------------------------------------------------
// Non-gesture commands
// ---------------------------------------------------------------------------

func TestSession_ExecuteReturnsEventWithoutMutating(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.load(t)
	f.transport.requestFn = replyWith(domain.ListRenamed{ListID: f.listA, Title: "Todo"})

	ev, err := f.session.Execute(context.Background(), domain.RenameList{ListID: f.listA, Title: "Todo"})
	require.NoError(t, err)
	assert.Equal(t, domain.ListRenamed{ListID: f.listA, Title: "Todo"}, ev)

	list, _ := f.session.Board().List(f.listA)
	assert.Equal(t, "A", list.Title, "the board follows the broadcast, not the reply")
}

func TestSession_ExecuteFailureNotifies(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.load(t)
	f.transport.requestFn = func(context.Context, domain.Command) (*protocol.Body, error) {
		return nil, &channel.RejectedError{Code: protocol.CodeNotFound, Reason: "card gone"}
	}

	err := f.session.DeleteCard(context.Background(), f.c1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, ok := f.session.Board().FindCard(f.c1)
	assert.True(t, ok, "no state mutation on failure")
	assert.Equal(t, []domain.CommandType{domain.CmdDeleteCard}, f.notifier.failed)
	assert.Equal(t, []domain.CommandType{domain.CmdDeleteCard}, f.rec.failed)
}

func TestSession_InvalidCommandIsNotSent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	err := f.session.RenameList(context.Background(), f.listA, "   ")
	require.ErrorIs(t, err, domain.ErrInvalidCommand)
	assert.Empty(t, f.transport.commands())
	assert.Len(t, f.notifier.failed, 1)
}

func TestSession_CreatePositionsAtTail(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.load(t)
	ctx := context.Background()

	require.NoError(t, f.session.CreateList(ctx, "C"))
	require.NoError(t, f.session.CreateCard(ctx, domain.CreateCard{ListID: f.listA, Title: "C3"}))
	require.NoError(t, f.session.CreateCard(ctx, domain.CreateCard{ListID: f.listB, Title: "D1"}))

	cmds := f.transport.commands()
	require.Len(t, cmds, 3)
	assert.InDelta(t, 3.0, cmds[0].(domain.CreateList).Position, 1e-9)

	c3 := cmds[1].(domain.CreateCard)
	assert.InDelta(t, 3.0, c3.Position, 1e-9)
	assert.Equal(t, domain.RiskLow, c3.RiskLevel)
	assert.InDelta(t, 1.0, cmds[2].(domain.CreateCard).Position, 1e-9)
}

func TestSession_MoveCardTo(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.load(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		card  uuid.UUID
		list  func() uuid.UUID
		index int
		want  domain.MoveCard
	}{
		{
			name: "reorder within list", card: f.c2, list: func() uuid.UUID { return f.listA }, index: 0,
			want: domain.MoveCard{FromListID: f.listA, CardID: f.c2, ToListID: f.listA, Position: 0.5},
		},
		{
			name: "into empty list", card: f.c1, list: func() uuid.UUID { return f.listB }, index: 5,
			want: domain.MoveCard{FromListID: f.listA, CardID: f.c1, ToListID: f.listB, Position: 1},
		},
	}

	for i, tt := range tests {
		require.NoError(t, f.session.MoveCardTo(ctx, tt.card, tt.list(), tt.index), tt.name)
		assert.Equal(t, tt.want, f.transport.commands()[i], tt.name)
	}

	err := f.session.MoveCardTo(ctx, uuid.New(), f.listA, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, f.transport.commands(), 2)
}

func TestSession_MoveListTo(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.load(t)

	require.NoError(t, f.session.MoveListTo(context.Background(), f.listB, 0))
	cmds := f.transport.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, domain.MoveList{ListID: f.listB, Position: 0.5}, cmds[0])
}

// ---------------------------------------------------------------------------
// Gestures
// ---------------------------------------------------------------------------

func TestSession_StartDragRefusedOffline(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.load(t)
	f.transport.mu.Lock()
	f.transport.state = channel.StateDisconnected
	f.transport.mu.Unlock()

	assert.False(t, f.session.CanMutate())
	assert.ErrorIs(t, f.session.StartDrag(domain.CardRef(f.c1)), client.ErrOffline)
	assert.Equal(t, drag.StateIdle, f.session.Drag().State())
}

func TestSession_GestureCommitsThroughTransport(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.load(t)

	require.NoError(t, f.session.StartDrag(domain.CardRef(f.c1)))
	require.NoError(t, f.session.Drag().Move([]droptarget.Region{{Kind: droptarget.RegionCardsContainer, ID: f.listB, Overlap: 1}}))

	outcome, err := f.session.Drag().End(context.Background())
	require.NoError(t, err)
	assert.Equal(t, drag.OutcomeCommitted, outcome)

	cmds := f.transport.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, domain.MoveCard{FromListID: f.listA, CardID: f.c1, ToListID: f.listB, Position: 1}, cmds[0])
	assert.Empty(t, f.notifier.failed, "gesture failures are not notifications")
}

func TestSession_GestureRejectedRollsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.load(t)
	f.transport.requestFn = func(context.Context, domain.Command) (*protocol.Body, error) {
		return nil, channel.ErrTimeout
	}

	require.NoError(t, f.session.StartDrag(domain.CardRef(f.c1)))
	require.NoError(t, f.session.Drag().Move([]droptarget.Region{{Kind: droptarget.RegionCardsContainer, ID: f.listB, Overlap: 1}}))

	outcome, err := f.session.Drag().End(context.Background())
	require.ErrorIs(t, err, channel.ErrTimeout)
	assert.Equal(t, drag.OutcomeRolledBack, outcome)

	_, parent, ok := f.session.Board().FindCard(f.c1)
	require.True(t, ok)
	assert.Equal(t, f.listA, parent)
	assert.Empty(t, f.notifier.failed)
	assert.Equal(t, []drag.Outcome{drag.OutcomeRolledBack}, f.rec.outcomes)
}

func TestSession_RunWithoutTransport(t *testing.T) {
	t.Parallel()

	s := client.New(client.Options{WorkspaceID: uuid.New()})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorIs(t, s.Run(ctx), client.ErrOffline)
	assert.False(t, s.CanMutate())
	assert.NoError(t, s.Close(ctx))
}
