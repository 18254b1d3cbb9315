// Package channel is the client side of the workspace broadcast channel: one
// WebSocket carrying join/leave, command request/reply and pushed events,
// with automatic reconnect.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/protocol"
)

var (
	ErrDisconnected = errors.New("channel: disconnected")
	ErrTimeout      = errors.New("channel: request timed out")
	ErrClosed       = errors.New("channel: closed")
)

// RejectedError is returned when the server answers a request with an
// error status. It unwraps to the domain sentinel matching the reply code.
type RejectedError struct {
	Code   protocol.Code
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("channel: rejected (%s): %s", e.Code, e.Reason)
}

func (e *RejectedError) Unwrap() error { return e.Code.Sentinel() }

// State is the connectivity of the channel.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

// Recorder receives channel statistics. A nil Recorder is allowed.
type Recorder interface {
	Reconnect()
	StateChanged(s State)
}

// Options configures a Client.
type Options struct {
	// URL is the WebSocket endpoint, e.g. ws://localhost:8080/ws/workspaces.
	URL         string
	WorkspaceID uuid.UUID
	Header      http.Header

	RequestTimeout time.Duration
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
	CommandRate    float64
	CommandBurst   int

	// OnEvent receives every event frame for the workspace, in arrival
	// order, on the read goroutine.
	OnEvent func(f protocol.Frame)
	// OnJoined runs after every successful join, before Run waits for the
	// connection to end. Event frames keep flowing to OnEvent meanwhile.
	OnJoined func(ctx context.Context)

	Recorder Recorder
}

// Client is safe for concurrent use.
type Client struct {
	opts    Options
	limiter *rate.Limiter

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	pending map[uuid.UUID]chan protocol.Frame
	subs    map[int]func(State)
	nextSub int
	cancel  context.CancelFunc
	closed  bool
}

// New creates a client. Call Run to connect.
func New(opts Options) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	limit := rate.Inf
	if opts.CommandRate > 0 {
		limit = rate.Limit(opts.CommandRate)
	}
	burst := opts.CommandBurst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
		state:   StateDisconnected,
		pending: make(map[uuid.UUID]chan protocol.Frame),
		subs:    make(map[int]func(State)),
	}
}

// State reports the current connectivity.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStateChange registers fn for connectivity transitions and returns a
// function that removes it. fn runs without the client's lock held.
func (c *Client) OnStateChange(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	log.Debug().Str("state", string(s)).Str("workspace_id", c.opts.WorkspaceID.String()).Msg("channel state")
	if c.opts.Recorder != nil {
		c.opts.Recorder.StateChanged(s)
	}
	for _, fn := range subs {
		fn(s)
	}
}

// Run connects, joins the workspace and keeps the connection alive until ctx
// is cancelled or Close is called, reconnecting with jittered exponential
// backoff. It returns nil on a clean shutdown.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return ErrClosed
	}
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	attempt := 0
	for {
		joined, err := c.connectOnce(ctx)
		c.dropConn()
		c.setState(StateDisconnected)

		if ctx.Err() != nil {
			return nil
		}
		if joined {
			attempt = 0
		}

		delay := backoff(attempt, c.opts.ReconnectMin, c.opts.ReconnectMax)
		attempt++
		log.Debug().Err(err).Dur("retry_in", delay).Msg("channel connection lost")
		if c.opts.Recorder != nil {
			c.opts.Recorder.Reconnect()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// connectOnce runs one connection to completion. joined reports whether the
// workspace join succeeded.
func (c *Client) connectOnce(ctx context.Context) (bool, error) {
	c.setState(StateConnecting)

	conn, _, err := websocket.Dial(ctx, c.opts.URL, &websocket.DialOptions{HTTPHeader: c.opts.Header})
	if err != nil {
		return false, fmt.Errorf("channel.Client.connect: dial: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	readErr := make(chan error, 1)
	go func() {
		err := c.readLoop(ctx, conn)
		c.dropConn()
		c.setState(StateDisconnected)
		readErr <- err
	}()

	if _, err := c.roundTrip(ctx, conn, protocol.Join(c.opts.WorkspaceID)); err != nil {
		conn.CloseNow()
		<-readErr
		return false, fmt.Errorf("channel.Client.connect: join: %w", err)
	}
	c.setState(StateConnected)
	log.Info().Str("workspace_id", c.opts.WorkspaceID.String()).Msg("channel joined workspace")

	if c.opts.OnJoined != nil {
		c.opts.OnJoined(ctx)
	}

	select {
	case err := <-readErr:
		return true, err
	case <-ctx.Done():
		_ = conn.Close(websocket.StatusNormalClosure, "client shutdown")
		<-readErr
		return true, ctx.Err()
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var f protocol.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warn().Err(err).Msg("channel: unparseable frame dropped")
			continue
		}

		switch f.Kind {
		case protocol.KindReply:
			c.deliver(f)
		case protocol.KindEvent:
			if f.WorkspaceID != c.opts.WorkspaceID || f.Body == nil {
				log.Debug().Str("workspace_id", f.WorkspaceID.String()).Msg("channel: foreign event dropped")
				continue
			}
			if c.opts.OnEvent != nil {
				c.opts.OnEvent(f)
			}
		default:
			log.Debug().Str("kind", string(f.Kind)).Msg("channel: unexpected frame kind")
		}
	}
}

func (c *Client) deliver(f protocol.Frame) {
	c.mu.Lock()
	ch, ok := c.pending[f.Ref]
	if ok {
		delete(c.pending, f.Ref)
	}
	c.mu.Unlock()

	if !ok {
		log.Debug().Str("ref", f.Ref.String()).Msg("channel: reply without request")
		return
	}
	ch <- f
}

// dropConn forgets the current connection and fails every outstanding
// request with ErrDisconnected.
func (c *Client) dropConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	pending := c.pending
	c.pending = make(map[uuid.UUID]chan protocol.Frame)
	c.mu.Unlock()

	if conn != nil {
		conn.CloseNow()
	}
	for _, ch := range pending {
		close(ch)
	}
}

// Request sends cmd and waits for the server's reply. It returns the body of
// the reply (the canonical event) on success, ErrDisconnected when there is
// no joined connection, ErrTimeout when no reply arrives in time, and a
// *RejectedError when the server refuses the command.
func (c *Client) Request(ctx context.Context, cmd domain.Command) (*protocol.Body, error) {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()
	if conn == nil || state != StateConnected {
		return nil, fmt.Errorf("channel.Client.Request: %s: %w", cmd.CommandType(), ErrDisconnected)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("channel.Client.Request: %w", err)
	}

	f, err := protocol.CommandFrame(c.opts.WorkspaceID, cmd)
	if err != nil {
		return nil, fmt.Errorf("channel.Client.Request: %w", err)
	}
	reply, err := c.roundTrip(ctx, conn, f)
	if err != nil {
		return nil, fmt.Errorf("channel.Client.Request: %s: %w", cmd.CommandType(), err)
	}
	return reply.Body, nil
}

func (c *Client) roundTrip(ctx context.Context, conn *websocket.Conn, f protocol.Frame) (protocol.Frame, error) {
	ch := make(chan protocol.Frame, 1)
	c.mu.Lock()
	c.pending[f.Ref] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.pending[f.Ref] == ch {
			delete(c.pending, f.Ref)
		}
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	if err := wsjson.Write(ctx, conn, f); err != nil {
		return protocol.Frame{}, fmt.Errorf("%w: %w", ErrDisconnected, err)
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return protocol.Frame{}, ErrDisconnected
		}
		if reply.Status != protocol.StatusOK {
			return protocol.Frame{}, &RejectedError{Code: reply.Code, Reason: reply.Error}
		}
		return reply, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return protocol.Frame{}, ErrTimeout
		}
		return protocol.Frame{}, ctx.Err()
	}
}

// Close leaves the workspace, closes the connection and stops Run.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn, state, cancel := c.conn, c.state, c.cancel
	c.mu.Unlock()

	if conn != nil && state == StateConnected {
		if _, err := c.roundTrip(ctx, conn, protocol.Leave(c.opts.WorkspaceID)); err != nil {
			log.Debug().Err(err).Msg("channel: leave")
		}
	}
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.Close(websocket.StatusNormalClosure, "leaving"); err != nil {
			log.Debug().Err(err).Msg("channel: close")
		}
	}
	return nil
}
