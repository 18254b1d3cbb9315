package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gosuda/boardsync/internal/board"
)

func newWatchCmd(app *App) *cobra.Command {
	var redraw bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow board changes as they are broadcast",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closeFn, err := app.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			if err := renderBoard(out, s.Board().Workspace(), s.Seq(), time.Now()); err != nil {
				return err
			}

			changes := make(chan board.Change, 64)
			unsubscribe := s.Board().Subscribe(func(c board.Change) {
				select {
				case changes <- c:
				default:
				}
			})
			defer unsubscribe()

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case c := <-changes:
					if redraw {
						fmt.Fprintln(out)
						if err := renderBoard(out, s.Board().Workspace(), s.Seq(), time.Now()); err != nil {
							return err
						}
						continue
					}
					fmt.Fprintln(out, formatChange(c, s.Seq()))
				}
			}
		},
	}
	cmd.Flags().BoolVar(&redraw, "redraw", false, "Print the whole board after every change")
	return cmd
}

func formatChange(c board.Change, seq int64) string {
	line := fmt.Sprintf("#%d %-10s %s", seq, c.Kind, c.Item)
	if c.Parent.ID != uuid.Nil {
		line += " in " + c.Parent.String()
	}
	return line
}
