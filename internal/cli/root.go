package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/gosuda/boardsync/internal/channel"
	"github.com/gosuda/boardsync/internal/client"
	"github.com/gosuda/boardsync/internal/config"
	"github.com/gosuda/boardsync/internal/metrics"
)

// App holds the persistent flags shared by every command.
type App struct {
	Server         string
	Workspace      string
	ConnectTimeout time.Duration
}

// NewRootCmd builds the boardsync command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "boardsync",
		Short:        "Inspect and reorder a shared board",
		SilenceUsage: true,
		Example: `  # Print the board
  boardsync show --workspace 6f1c...

  # Move a card to the top of another list
  boardsync move-card <card-id> --to <list-id> --index 0

  # Follow live changes
  boardsync watch`,
	}

	cmd.PersistentFlags().StringVar(&app.Server, "server", "", "Server base URL (overrides BOARDSYNC_SERVER_URL)")
	cmd.PersistentFlags().StringVar(&app.Workspace, "workspace", "", "Workspace id (overrides BOARDSYNC_WORKSPACE_ID)")
	cmd.PersistentFlags().DurationVar(&app.ConnectTimeout, "connect-timeout", 10*time.Second, "How long to wait for the broadcast channel to join")

	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newMoveCardCmd(app))
	cmd.AddCommand(newMoveListCmd(app))
	cmd.AddCommand(newRenumberCmd(app))

	return cmd
}

// clientConfig loads the client configuration, letting flags win over the
// environment.
func (a *App) clientConfig() (*config.ClientConfig, error) {
	if a.Server != "" {
		if err := os.Setenv("BOARDSYNC_SERVER_URL", a.Server); err != nil {
			return nil, err
		}
	}
	if a.Workspace != "" {
		if _, err := uuid.Parse(a.Workspace); err != nil {
			return nil, fmt.Errorf("invalid --workspace %q: %w", a.Workspace, err)
		}
		if err := os.Setenv("BOARDSYNC_WORKSPACE_ID", a.Workspace); err != nil {
			return nil, err
		}
	}
	return config.LoadClient()
}

// connect dials a session, waits for the channel to join and loads the
// board. The returned func closes the session.
func (a *App) connect(ctx context.Context) (*client.Session, func(), error) {
	cfg, err := a.clientConfig()
	if err != nil {
		return nil, nil, err
	}

	s := client.Dial(cfg, client.Options{Recorder: metrics.NewClient(prometheus.NewRegistry())})

	joined := make(chan struct{}, 1)
	unsubscribe := s.OnStateChange(func(st channel.State) {
		if st == channel.StateConnected {
			select {
			case joined <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(runCtx)
	}()
	closeFn := func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer closeCancel()
		_ = s.Close(closeCtx)
		cancel()
		<-done
	}

	timer := time.NewTimer(a.ConnectTimeout)
	defer timer.Stop()
	select {
	case <-joined:
	case <-timer.C:
		closeFn()
		return nil, nil, fmt.Errorf("no connection to %s after %s", cfg.WebSocketURL(), a.ConnectTimeout)
	case <-ctx.Done():
		closeFn()
		return nil, nil, ctx.Err()
	}

	if err := s.Resync(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("load board: %w", err)
	}
	return s, closeFn, nil
}

func parseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q", kind, raw)
	}
	return id, nil
}

var errNegativeIndex = errors.New("--index must be >= 0")
