// Package metrics exposes Prometheus collectors for the board client and the
// reference server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gosuda/boardsync/internal/channel"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/drag"
)

// Client implements the recorder interfaces of the drag, reconcile and
// channel packages.
type Client struct {
	eventsApplied  *prometheus.CounterVec
	eventsDropped  *prometheus.CounterVec
	eventsDeferred prometheus.Counter
	drags          *prometheus.CounterVec
	reconnects     prometheus.Counter
	connected      prometheus.Gauge
	commandsFailed *prometheus.CounterVec
}

// NewClient registers the client collectors with reg.
func NewClient(reg prometheus.Registerer) *Client {
	f := promauto.With(reg)
	return &Client{
		eventsApplied: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardsync_client_events_applied_total",
				Help: "Broadcast events applied to the local board by type",
			},
			[]string{"type"},
		),
		eventsDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardsync_client_events_dropped_total",
				Help: "Broadcast events dropped by reason",
			},
			[]string{"reason"},
		),
		eventsDeferred: f.NewCounter(prometheus.CounterOpts{
			Name: "boardsync_client_events_deferred_total",
			Help: "Events whose effect on a dragged item was deferred until the gesture settled",
		}),
		drags: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardsync_client_drags_total",
				Help: "Finished drag gestures by item kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "boardsync_client_reconnects_total",
			Help: "Channel reconnect attempts",
		}),
		connected: f.NewGauge(prometheus.GaugeOpts{
			Name: "boardsync_client_connected",
			Help: "1 while the channel is joined to the workspace",
		}),
		commandsFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardsync_client_commands_failed_total",
				Help: "Non-gesture commands that failed by type",
			},
			[]string{"type"},
		),
	}
}

func (c *Client) EventApplied(typ domain.EventType) { c.eventsApplied.WithLabelValues(string(typ)).Inc() }
func (c *Client) EventDropped(reason string)        { c.eventsDropped.WithLabelValues(reason).Inc() }
func (c *Client) EventDeferred()                    { c.eventsDeferred.Inc() }
func (c *Client) Reconnect()                        { c.reconnects.Inc() }

func (c *Client) DragFinished(kind domain.ItemKind, outcome drag.Outcome) {
	c.drags.WithLabelValues(string(kind), string(outcome)).Inc()
}

func (c *Client) StateChanged(s channel.State) {
	if s == channel.StateConnected {
		c.connected.Set(1)
		return
	}
	c.connected.Set(0)
}

func (c *Client) CommandFailed(typ domain.CommandType) {
	c.commandsFailed.WithLabelValues(string(typ)).Inc()
}

// Server records command handling on the reference server.
type Server struct {
	commands   *prometheus.CounterVec
	published  *prometheus.CounterVec
	sockets    prometheus.Gauge
	workspaces prometheus.Gauge
}

// NewServer registers the server collectors with reg.
func NewServer(reg prometheus.Registerer) *Server {
	f := promauto.With(reg)
	return &Server{
		commands: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardsync_server_commands_total",
				Help: "Commands handled by type and outcome code",
			},
			[]string{"type", "outcome"},
		),
		published: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardsync_server_broadcasts_total",
				Help: "Events published to workspace channels by status",
			},
			[]string{"status"},
		),
		sockets: f.NewGauge(prometheus.GaugeOpts{
			Name: "boardsync_server_websockets",
			Help: "Open WebSocket connections",
		}),
		workspaces: f.NewGauge(prometheus.GaugeOpts{
			Name: "boardsync_server_workspaces_loaded",
			Help: "Workspaces with an authoritative board in memory",
		}),
	}
}

// CommandHandled counts one command. outcome is "ok" or a wire error code.
func (s *Server) CommandHandled(typ domain.CommandType, outcome string) {
	s.commands.WithLabelValues(string(typ), outcome).Inc()
}

func (s *Server) Published(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.published.WithLabelValues(status).Inc()
}

func (s *Server) SocketOpened()          { s.sockets.Inc() }
func (s *Server) SocketClosed()          { s.sockets.Dec() }
func (s *Server) WorkspacesLoaded(n int) { s.workspaces.Set(float64(n)) }
