package cli

import (
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Saved match history commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved match records",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result HistoryList

			if err := client.Get(cmd.Context(), "/api/v1/matches/history", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save <code>",
		Short: "Save a record of a live match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result HistoryRecord

			if err := client.Post(cmd.Context(), matchPath("/api/v1/matches/match/%s/history", args[0]), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every saved match record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete(cmd.Context(), "/api/v1/matches/history", nil, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Match history cleared")
			return nil
		},
	})

	return cmd
}
