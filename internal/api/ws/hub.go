package ws

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/gosuda/boardsync/internal/domain"
)

// Broker is the pub/sub backend events are fanned out through.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Executor is the server of record commands are submitted to.
type Executor interface {
	Execute(ctx context.Context, workspaceID uuid.UUID, cmd domain.Command) (domain.Event, int64, error)
}

// Recorder counts open sockets. A nil Recorder is allowed.
type Recorder interface {
	SocketOpened()
	SocketClosed()
}

type Options struct {
	// CommandRate and CommandBurst bound the commands one socket may send.
	CommandRate  float64
	CommandBurst int
	// OriginPatterns are the browser origins allowed to connect besides the
	// request host.
	OriginPatterns []string
	Recorder       Recorder
}

// Hub manages WebSocket connections backed by Redis pub/sub.
type Hub struct {
	broker Broker
	exec   Executor
	opts   Options
}

// NewHub creates a new WebSocket hub.
func NewHub(broker Broker, exec Executor, opts Options) *Hub {
	if opts.CommandRate <= 0 {
		opts.CommandRate = 20
	}
	if opts.CommandBurst <= 0 {
		opts.CommandBurst = 40
	}
	return &Hub{broker: broker, exec: exec, opts: opts}
}

// ServeWorkspaces handles one client connection. The client joins workspaces
// by id, receives every event published to them, and submits commands that
// are answered on the same socket.
func (h *Hub) ServeWorkspaces(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.opts.OriginPatterns})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	if h.opts.Recorder != nil {
		h.opts.Recorder.SocketOpened()
		defer h.opts.Recorder.SocketClosed()
	}

	s := &session{
		hub:     h,
		conn:    conn,
		id:      uuid.New(),
		limiter: rate.NewLimiter(rate.Limit(h.opts.CommandRate), h.opts.CommandBurst),
		joined:  make(map[uuid.UUID]context.CancelFunc),
	}
	defer s.leaveAll()

	err = s.serve(r.Context())
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		log.Debug().Str("conn_id", s.id.String()).Msg("websocket closed by client")
	default:
		log.Debug().Err(err).Str("conn_id", s.id.String()).Msg("websocket closed")
		_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
	}
}

// Publish sends an event payload to a Redis channel. The service publishes
// accepted events through it.
func (h *Hub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := h.broker.Publish(ctx, channel, payload); err != nil {
		return fmt.Errorf("ws.Hub.Publish: %w", err)
	}
	return nil
}
