// Package client wires a board store, the broadcast channel, the
// reconciliation listener and the drag manager into one workspace session.
//
// Gestures (list and card moves) are optimistic and run through the drag
// manager. Every other command is pessimistic: it is sent, and the board only
// changes when the resulting event arrives on the broadcast channel. On every
// (re)join the session reloads the full board over REST and replays the
// events that raced the fetch on top.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/board"
	"github.com/gosuda/boardsync/internal/channel"
	"github.com/gosuda/boardsync/internal/config"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/drag"
	"github.com/gosuda/boardsync/internal/protocol"
	"github.com/gosuda/boardsync/internal/reconcile"
)

// ErrOffline is returned when a mutation is attempted while the channel is
// not joined to the workspace.
var ErrOffline = errors.New("workspace channel is not connected")

// Transport is the request/reply side of the broadcast channel.
type Transport interface {
	Run(ctx context.Context) error
	Request(ctx context.Context, cmd domain.Command) (*protocol.Body, error)
	State() channel.State
	OnStateChange(fn func(channel.State)) func()
	Close(ctx context.Context) error
}

// Fetcher loads the authoritative board for resync.
type Fetcher interface {
	FetchBoard(ctx context.Context, workspaceID uuid.UUID) (protocol.BoardSnapshot, error)
}

// Notifier surfaces failed non-gesture commands to the user.
type Notifier interface {
	CommandFailed(typ domain.CommandType, err error)
}

// Recorder is the union of the statistics hooks a session feeds. A nil
// Recorder is allowed.
type Recorder interface {
	drag.Recorder
	reconcile.Recorder
	CommandFailed(typ domain.CommandType)
}

// Options configures a Session.
type Options struct {
	WorkspaceID uuid.UUID
	Fetcher     Fetcher
	Notifier    Notifier
	Recorder    Recorder
}

// Session is one client's live view of a workspace.
type Session struct {
	wsID     uuid.UUID
	store    *board.Store
	listener *reconcile.Listener
	drag     *drag.Manager
	fetcher  Fetcher
	notifier Notifier
	rec      Recorder

	transport Transport

	resyncMu sync.Mutex

	// feedMu orders frame application against resync. The store is mutated
	// while it is held, so nothing a store subscriber may call takes it.
	feedMu    sync.Mutex
	buffering bool
	buffer    []protocol.Frame

	// lastSeq is written under feedMu and read without it.
	lastSeq atomic.Int64
}

// New creates a session without a transport. Attach one before Run, or use
// Dial.
func New(opts Options) *Session {
	s := &Session{
		wsID:     opts.WorkspaceID,
		store:    board.New(opts.WorkspaceID),
		fetcher:  opts.Fetcher,
		notifier: opts.Notifier,
		rec:      opts.Recorder,
	}
	if s.notifier == nil {
		s.notifier = logNotifier{}
	}

	var (
		dragRec drag.Recorder
		recRec  reconcile.Recorder
	)
	if opts.Recorder != nil {
		dragRec, recRec = opts.Recorder, opts.Recorder
	}
	s.drag = drag.NewManager(s.store, committer{s}, dragRec)
	s.listener = reconcile.New(s.store, s.drag, recRec)
	s.drag.SetReplayer(s.listener.Replay)
	return s
}

// Dial creates a session connected through a channel client built from cfg.
func Dial(cfg *config.ClientConfig, opts Options) *Session {
	opts.WorkspaceID = cfg.WorkspaceID
	if opts.Fetcher == nil {
		opts.Fetcher = NewHTTPFetcher(cfg.ServerURL, cfg.RequestTimeout)
	}
	s := New(opts)

	var chRec channel.Recorder
	if r, ok := opts.Recorder.(channel.Recorder); ok {
		chRec = r
	}
	s.Attach(channel.New(channel.Options{
		URL:            cfg.WebSocketURL(),
		WorkspaceID:    cfg.WorkspaceID,
		RequestTimeout: cfg.RequestTimeout,
		ReconnectMin:   cfg.ReconnectMin,
		ReconnectMax:   cfg.ReconnectMax,
		CommandRate:    cfg.CommandRate,
		CommandBurst:   cfg.CommandBurst,
		OnEvent:        s.HandleFrame,
		OnJoined:       s.onJoined,
		Recorder:       chRec,
	}))
	return s
}

// Attach sets the transport. It must be called before Run.
func (s *Session) Attach(t Transport) { s.transport = t }

// Run keeps the session connected until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	if s.transport == nil {
		return fmt.Errorf("client.Session.Run: %w", ErrOffline)
	}
	return s.transport.Run(ctx)
}

// Close leaves the workspace.
func (s *Session) Close(ctx context.Context) error {
	if s.transport == nil {
		return nil
	}
	return s.transport.Close(ctx)
}

func (s *Session) WorkspaceID() uuid.UUID { return s.wsID }
func (s *Session) Board() *board.Store    { return s.store }
func (s *Session) Drag() *drag.Manager    { return s.drag }

// Seq returns the highest event sequence number seen so far.
func (s *Session) Seq() int64 {
	return s.lastSeq.Load()
}

// State reports channel connectivity.
func (s *Session) State() channel.State {
	if s.transport == nil {
		return channel.StateDisconnected
	}
	return s.transport.State()
}

// OnStateChange subscribes fn to connectivity changes.
func (s *Session) OnStateChange(fn func(channel.State)) func() {
	if s.transport == nil {
		return func() {}
	}
	return s.transport.OnStateChange(fn)
}

// CanMutate reports whether gestures and commands may be issued.
func (s *Session) CanMutate() bool {
	return s.State() == channel.StateConnected
}

// StartDrag opens a gesture for item. It is refused while offline.
func (s *Session) StartDrag(item domain.Ref) error {
	if !s.CanMutate() {
		return fmt.Errorf("client.Session.StartDrag: %w", ErrOffline)
	}
	return s.drag.Start(item)
}

// ---------------------------------------------------------------------------
// Broadcast intake
// ---------------------------------------------------------------------------

// HandleFrame applies one event frame. While a resync is in flight frames
// are buffered instead.
func (s *Session) HandleFrame(f protocol.Frame) {
	if f.Body == nil {
		log.Warn().Str("workspace_id", s.wsID.String()).Int64("seq", f.Seq).Msg("event frame without body dropped")
		return
	}

	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	if s.buffering {
		s.buffer = append(s.buffer, f)
		return
	}
	s.applyLocked(f)
}

func (s *Session) applyLocked(f protocol.Frame) {
	s.advanceLocked(f.Seq)
	s.listener.HandleMessage(*f.Body)
}

func (s *Session) advanceLocked(seq int64) {
	if seq > s.lastSeq.Load() {
		s.lastSeq.Store(seq)
	}
}

func (s *Session) onJoined(ctx context.Context) {
	if err := s.Resync(ctx); err != nil {
		log.Warn().Err(err).Str("workspace_id", s.wsID.String()).Msg("board resync failed")
	}
}

// Resync reloads the board from the server of record. Events that arrive
// during the fetch are held back and then applied on top of the snapshot,
// except those the snapshot already contains.
func (s *Session) Resync(ctx context.Context) error {
	if s.fetcher == nil {
		return nil
	}
	s.resyncMu.Lock()
	defer s.resyncMu.Unlock()

	s.feedMu.Lock()
	s.buffering = true
	s.buffer = nil
	s.feedMu.Unlock()

	snap, err := s.fetcher.FetchBoard(ctx, s.wsID)

	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	buffered := s.buffer
	s.buffering = false
	s.buffer = nil

	if err != nil {
		for _, f := range buffered {
			s.applyLocked(f)
		}
		return fmt.Errorf("client.Session.Resync: %w", err)
	}

	if snap.Workspace.ID == uuid.Nil {
		snap.Workspace.ID = s.wsID
	}
	s.advanceLocked(snap.Seq)
	s.drag.Rebase(snap.Workspace)
	skipped := 0
	for _, f := range buffered {
		if f.Seq != 0 && f.Seq <= snap.Seq {
			skipped++
			continue
		}
		s.applyLocked(f)
	}
	log.Debug().
		Str("workspace_id", s.wsID.String()).
		Int64("seq", snap.Seq).
		Int("buffered", len(buffered)).
		Int("skipped", skipped).
		Msg("board resynced")
	return nil
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

// Execute sends cmd and returns the event the server accepted it as. The
// local board is not touched; it follows the broadcast. Failures are passed
// to the Notifier.
func (s *Session) Execute(ctx context.Context, cmd domain.Command) (domain.Event, error) {
	ev, err := s.send(ctx, cmd)
	if err != nil {
		typ := domain.CommandType("")
		if cmd != nil {
			typ = cmd.CommandType()
		}
		s.notifier.CommandFailed(typ, err)
		if s.rec != nil {
			s.rec.CommandFailed(typ)
		}
		return nil, fmt.Errorf("client.Session.Execute: %w", err)
	}
	return ev, nil
}

func (s *Session) send(ctx context.Context, cmd domain.Command) (domain.Event, error) {
	if err := domain.ValidateCommand(cmd); err != nil {
		return nil, err
	}
	if s.transport == nil {
		return nil, ErrOffline
	}
	body, err := s.transport.Request(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	ev, err := protocol.DecodeEvent(*body)
	if err != nil {
		log.Debug().Err(err).Str("command", string(cmd.CommandType())).Msg("unreadable reply body")
		return nil, nil
	}
	return ev, nil
}

// committer sends gesture moves. Failures roll the gesture back, which is
// the user-visible outcome, so the Notifier is not involved.
type committer struct{ s *Session }

func (c committer) MoveList(ctx context.Context, cmd domain.MoveList) error {
	_, err := c.s.send(ctx, cmd)
	return err
}

func (c committer) MoveCard(ctx context.Context, cmd domain.MoveCard) error {
	_, err := c.s.send(ctx, cmd)
	return err
}

type logNotifier struct{}

func (logNotifier) CommandFailed(typ domain.CommandType, err error) {
	log.Warn().Err(err).Str("command", string(typ)).Msg("command failed")
}
