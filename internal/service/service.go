// Package service is the reference server of record. It validates commands
// against an authoritative board per workspace, appends the resulting event
// to the workspace's log and publishes it to every subscriber.
//
// The in-memory boards are caches of the log. Each command first folds in
// any events appended since the board was last seen, so several server
// instances can share one database.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/board"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/protocol"
	"github.com/gosuda/boardsync/internal/reconcile"
	redisstore "github.com/gosuda/boardsync/internal/store/redis"
)

// DefaultCacheSize bounds the number of boards held in memory.
const DefaultCacheSize = 256

// Publisher fans an encoded event frame out to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Recorder receives command statistics. A nil Recorder is allowed.
type Recorder interface {
	CommandHandled(typ domain.CommandType, outcome string)
	Published(err error)
	WorkspacesLoaded(n int)
}

type Options struct {
	Events    domain.EventLog
	Members   domain.MemberRepository
	Publisher Publisher
	Recorder  Recorder
	CacheSize int
}

type Service struct {
	events  domain.EventLog
	members domain.MemberRepository
	pub     Publisher
	rec     Recorder

	mu     sync.Mutex
	boards *lru.Cache[uuid.UUID, *workspace]
}

type workspace struct {
	mu    sync.Mutex
	id    uuid.UUID
	store *board.Store
	seq   int64
}

func New(opts Options) (*Service, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	boards, err := lru.New[uuid.UUID, *workspace](size)
	if err != nil {
		return nil, fmt.Errorf("service.New: %w", err)
	}
	return &Service{
		events:  opts.Events,
		members: opts.Members,
		pub:     opts.Publisher,
		rec:     opts.Recorder,
		boards:  boards,
	}, nil
}

// Execute validates cmd against the workspace's board, records the resulting
// event and publishes it. The returned sequence number orders the event
// within the workspace.
func (s *Service) Execute(ctx context.Context, workspaceID uuid.UUID, cmd domain.Command) (domain.Event, int64, error) {
	ev, seq, err := s.execute(ctx, workspaceID, cmd)
	if s.rec != nil && cmd != nil {
		outcome := "ok"
		if err != nil {
			outcome = string(protocol.CodeOf(err))
		}
		s.rec.CommandHandled(cmd.CommandType(), outcome)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("service.Service.Execute: %w", err)
	}
	return ev, seq, nil
}

func (s *Service) execute(ctx context.Context, workspaceID uuid.UUID, cmd domain.Command) (domain.Event, int64, error) {
	if err := domain.ValidateCommand(cmd); err != nil {
		return nil, 0, err
	}

	w := s.workspace(workspaceID)
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := s.catchUp(ctx, w); err != nil {
		return nil, 0, err
	}

	ev, err := s.decide(ctx, w, cmd)
	if err != nil {
		return nil, 0, err
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, 0, fmt.Errorf("encode %s: %w", ev.EventType(), err)
	}
	seq, err := s.events.Append(ctx, w.id, ev.EventType(), payload)
	if err != nil {
		return nil, 0, err
	}

	if err := reconcile.Apply(w.store, ev, domain.Ref{}); err != nil {
		// The log is authoritative; the cached board is rebuilt on next use.
		log.Error().Err(err).Str("workspace_id", w.id.String()).Msg("accepted event did not apply to cached board")
		s.forget(w.id)
	}
	w.seq = seq

	s.publish(ctx, w.id, seq, ev)
	return ev, seq, nil
}

// Snapshot returns the current board and the sequence number it reflects.
func (s *Service) Snapshot(ctx context.Context, workspaceID uuid.UUID) (protocol.BoardSnapshot, error) {
	w := s.workspace(workspaceID)
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := s.catchUp(ctx, w); err != nil {
		return protocol.BoardSnapshot{}, fmt.Errorf("service.Service.Snapshot: %w", err)
	}
	return protocol.BoardSnapshot{Workspace: w.store.Workspace(), Seq: w.seq}, nil
}

// Members lists the member directory of a workspace.
func (s *Service) Members(ctx context.Context, workspaceID uuid.UUID) ([]*domain.Member, error) {
	out, err := s.members.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("service.Service.Members: %w", err)
	}
	return out, nil
}

// UpsertMember adds or updates a directory entry. Cards keep the copy they
// were assigned with.
func (s *Service) UpsertMember(ctx context.Context, m *domain.Member) error {
	if m.WorkspaceID == uuid.Nil || m.StudentID == "" || m.DisplayName == "" {
		return fmt.Errorf("service.Service.UpsertMember: %w: workspace, student id and display name are required", domain.ErrInvalidCommand)
	}
	if err := s.members.Upsert(ctx, m); err != nil {
		return fmt.Errorf("service.Service.UpsertMember: %w", err)
	}
	return nil
}

func (s *Service) workspace(id uuid.UUID) *workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.boards.Get(id); ok {
		return w
	}
	w := &workspace{id: id, store: board.New(id)}
	s.boards.Add(id, w)
	if s.rec != nil {
		s.rec.WorkspacesLoaded(s.boards.Len())
	}
	return w
}

func (s *Service) forget(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards.Remove(id)
	if s.rec != nil {
		s.rec.WorkspacesLoaded(s.boards.Len())
	}
}

// catchUp folds every logged event after w.seq into w. The caller holds w.mu.
func (s *Service) catchUp(ctx context.Context, w *workspace) error {
	recs, err := s.events.List(ctx, w.id, w.seq)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		ev, err := protocol.DecodeEvent(protocol.Body{Type: string(rec.Type), Payload: rec.Payload})
		if err != nil {
			log.Warn().Err(err).Str("workspace_id", w.id.String()).Int64("seq", rec.Seq).Msg("skipping unreadable logged event")
		} else if err := reconcile.Apply(w.store, ev, domain.Ref{}); err != nil {
			log.Debug().Err(err).Str("workspace_id", w.id.String()).Int64("seq", rec.Seq).Msg("logged event not applicable")
		}
		w.seq = rec.Seq
	}
	return nil
}

func (s *Service) publish(ctx context.Context, workspaceID uuid.UUID, seq int64, ev domain.Event) {
	if s.pub == nil {
		return
	}
	err := func() error {
		frame, err := protocol.EventFrame(workspaceID, seq, ev)
		if err != nil {
			return err
		}
		data, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		return s.pub.Publish(ctx, redisstore.WorkspaceChannel(workspaceID), data)
	}()
	if err != nil {
		log.Warn().Err(err).Str("workspace_id", workspaceID.String()).Int64("seq", seq).Msg("event broadcast failed")
	}
	if s.rec != nil {
		s.rec.Published(err)
	}
}
