package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/protocol"
	redisstore "github.com/gosuda/boardsync/internal/store/redis"
)

// session is the server side of one socket.
type session struct {
	hub     *Hub
	conn    *websocket.Conn
	id      uuid.UUID
	limiter *rate.Limiter

	mu     sync.Mutex
	joined map[uuid.UUID]context.CancelFunc
}

func (s *session) serve(ctx context.Context) error {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return err
		}

		var f protocol.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warn().Err(err).Str("conn_id", s.id.String()).Msg("unparseable frame dropped")
			continue
		}

		var reply protocol.Frame
		switch f.Kind {
		case protocol.KindJoin:
			reply = s.join(ctx, f)
		case protocol.KindLeave:
			s.leave(f.WorkspaceID)
			reply = protocol.OK(f.Ref, nil)
		case protocol.KindCommand:
			reply = s.command(ctx, f)
		default:
			reply = protocol.Reject(f.Ref, fmt.Errorf("%w: unexpected frame kind %q", domain.ErrInvalidCommand, f.Kind))
		}

		if err := s.write(ctx, reply); err != nil {
			return err
		}
	}
}

func (s *session) join(ctx context.Context, f protocol.Frame) protocol.Frame {
	if f.WorkspaceID == uuid.Nil {
		return protocol.Reject(f.Ref, fmt.Errorf("%w: workspace_id is required", domain.ErrInvalidCommand))
	}

	s.mu.Lock()
	_, already := s.joined[f.WorkspaceID]
	s.mu.Unlock()
	if already {
		return protocol.OK(f.Ref, nil)
	}

	subCtx, cancel := context.WithCancel(ctx)
	messages, cleanup, err := s.hub.broker.Subscribe(subCtx, redisstore.WorkspaceChannel(f.WorkspaceID))
	if err != nil {
		cancel()
		log.Error().Err(err).Str("workspace_id", f.WorkspaceID.String()).Msg("websocket subscribe")
		return protocol.Reject(f.Ref, fmt.Errorf("subscribe: %w", err))
	}

	s.mu.Lock()
	s.joined[f.WorkspaceID] = cancel
	s.mu.Unlock()

	go s.relay(subCtx, f.WorkspaceID, messages, cleanup)

	log.Info().Str("conn_id", s.id.String()).Str("workspace_id", f.WorkspaceID.String()).Msg("socket joined workspace")
	return protocol.OK(f.Ref, nil)
}

// relay copies published event frames to the socket until ctx ends.
func (s *session) relay(ctx context.Context, workspaceID uuid.UUID, messages <-chan []byte, cleanup func()) {
	defer cleanup()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := s.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				log.Debug().Err(err).Str("workspace_id", workspaceID.String()).Msg("websocket write")
				return
			}
		}
	}
}

func (s *session) leave(workspaceID uuid.UUID) {
	s.mu.Lock()
	cancel, ok := s.joined[workspaceID]
	delete(s.joined, workspaceID)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *session) leaveAll() {
	s.mu.Lock()
	joined := s.joined
	s.joined = make(map[uuid.UUID]context.CancelFunc)
	s.mu.Unlock()
	for _, cancel := range joined {
		cancel()
	}
}

func (s *session) command(ctx context.Context, f protocol.Frame) protocol.Frame {
	s.mu.Lock()
	_, joined := s.joined[f.WorkspaceID]
	s.mu.Unlock()
	if !joined {
		return protocol.Reject(f.Ref, fmt.Errorf("%w: workspace %s not joined", domain.ErrInvalidCommand, f.WorkspaceID))
	}
	if !s.limiter.Allow() {
		return protocol.Reject(f.Ref, protocol.ErrRateLimited)
	}
	if f.Body == nil {
		return protocol.Reject(f.Ref, fmt.Errorf("%w: missing body", domain.ErrInvalidCommand))
	}

	cmd, err := protocol.DecodeCommand(*f.Body)
	if err != nil {
		return protocol.Reject(f.Ref, err)
	}

	ev, seq, err := s.hub.exec.Execute(ctx, f.WorkspaceID, cmd)
	if err != nil {
		log.Debug().Err(err).
			Str("conn_id", s.id.String()).
			Str("command", string(cmd.CommandType())).
			Msg("command rejected")
		return protocol.Reject(f.Ref, err)
	}

	body, err := protocol.EncodeEvent(ev)
	if err != nil {
		return protocol.Reject(f.Ref, err)
	}
	reply := protocol.OK(f.Ref, &body)
	reply.WorkspaceID = f.WorkspaceID
	reply.Seq = seq
	return reply
}

func (s *session) write(ctx context.Context, f protocol.Frame) error {
	if err := wsjson.Write(ctx, s.conn, f); err != nil {
		return fmt.Errorf("ws.session.write: %w", err)
	}
	return nil
}
