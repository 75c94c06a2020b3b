package cli

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newMatchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "matches",
		Aliases: []string{"match"},
		Short:   "Live match commands",
	}

	cmd.AddCommand(newMatchesListCmd())
	cmd.AddCommand(newMatchesGetCmd())
	cmd.AddCommand(newMatchesLockCmd())
	cmd.AddCommand(newMatchesDeleteCmd())
	cmd.AddCommand(newMatchesDeleteAllCmd())

	return cmd
}

func matchPath(format, code string) string {
	return fmt.Sprintf(format, url.PathEscape(code))
}

func newMatchesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result MatchList

			if err := client.Get(cmd.Context(), "/api/v1/matches", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newMatchesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <code>",
		Short: "Get match details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Match

			if err := client.Get(cmd.Context(), matchPath("/api/v1/matches/match/%s", args[0]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newMatchesLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock <code>",
		Short: "Toggle whether new players can join a match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var accessible bool

			if err := client.Patch(cmd.Context(), matchPath("/api/v1/matches/match/accessibility/%s", args[0]), nil, &accessible); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			if accessible {
				out.PrintMessage(fmt.Sprintf("Match %s is now open", args[0]))
			} else {
				out.PrintMessage(fmt.Sprintf("Match %s is now locked", args[0]))
			}
			return nil
		},
	}
}

func newMatchesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <code>",
		Short: "Finalize a match, pay out and remove it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result DeleteResult

			if err := client.Delete(cmd.Context(), matchPath("/api/v1/matches/match/%s", args[0]), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newMatchesDeleteAllCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Cancel and remove every live match",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = cfg.AdminPassword
			}
			if password == "" {
				return errors.New("an admin password is required (--password or QUIZCTL_ADMIN_PASSWORD)")
			}

			var result DeleteAllResult

			if err := client.Delete(cmd.Context(), "/api/v1/matches", map[string]string{"password": password}, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Admin password (env: QUIZCTL_ADMIN_PASSWORD)")

	return cmd
}
