package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMoveCardCmd(app *App) *cobra.Command {
	var (
		to    string
		index int
	)

	cmd := &cobra.Command{
		Use:   "move-card <card-id>",
		Short: "Move a card to an index in a list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := parseID("card", args[0])
			if err != nil {
				return err
			}
			if index < 0 {
				return errNegativeIndex
			}

			s, closeFn, err := app.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			_, fromList, ok := s.Board().FindCard(cardID)
			if !ok {
				return fmt.Errorf("card %s is not on the board", cardID)
			}
			toList := fromList
			if to != "" {
				if toList, err = parseID("list", to); err != nil {
					return err
				}
			}

			if err := s.MoveCardTo(cmd.Context(), cardID, toList, index); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved card %s to list %s at %d (seq %d)\n", cardID, toList, index, s.Seq())
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Target list id (default: the card's current list)")
	cmd.Flags().IntVar(&index, "index", 0, "Target index within the list")
	return cmd
}

func newMoveListCmd(app *App) *cobra.Command {
	var index int

	cmd := &cobra.Command{
		Use:   "move-list <list-id>",
		Short: "Move a list to an index on the board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listID, err := parseID("list", args[0])
			if err != nil {
				return err
			}
			if index < 0 {
				return errNegativeIndex
			}

			s, closeFn, err := app.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := s.MoveListTo(cmd.Context(), listID, index); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved list %s to %d (seq %d)\n", listID, index, s.Seq())
			return nil
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "Target index on the board")
	return cmd
}

func newRenumberCmd(app *App) *cobra.Command {
	var list string

	cmd := &cobra.Command{
		Use:   "renumber",
		Short: "Reassign evenly spaced positions",
		Long:  "Renumber the lists of the board, or the cards of one list with --list.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closeFn, err := app.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if list == "" {
				if err := s.RenumberLists(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "renumbered lists (seq %d)\n", s.Seq())
				return nil
			}

			listID, err := parseID("list", list)
			if err != nil {
				return err
			}
			if err := s.RenumberCards(cmd.Context(), listID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renumbered cards of %s (seq %d)\n", listID, s.Seq())
			return nil
		},
	}
	cmd.Flags().StringVar(&list, "list", "", "Renumber the cards of this list instead of the lists")
	return cmd
}
