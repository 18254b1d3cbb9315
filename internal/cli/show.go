package cli

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/gosuda/boardsync/internal/client"
)

func newShowCmd(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.clientConfig()
			if err != nil {
				return err
			}
			snap, err := client.NewHTTPFetcher(cfg.ServerURL, cfg.RequestTimeout).FetchBoard(cmd.Context(), cfg.WorkspaceID)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			return renderBoard(cmd.OutOrStdout(), snap.Workspace, snap.Seq, time.Now())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw snapshot as JSON")
	return cmd
}
