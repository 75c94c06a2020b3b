package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Long: `Check that the server answers and report how many matches are live.

With --wait the check is retried until the server answers or the duration
passes, which suits deploy scripts that start the server in the background.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := checkHealth(cmd.Context(), wait)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(*result)
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "Keep retrying for up to this long")

	return cmd
}

const healthRetryInterval = 250 * time.Millisecond

func checkHealth(ctx context.Context, wait time.Duration) (*HealthResult, error) {
	deadline := time.Now().Add(wait)
	for {
		var result HealthResult
		err := client.Get(ctx, "/api/v1/health", &result)
		if err == nil {
			return &result, nil
		}
		if wait <= 0 || time.Now().After(deadline) {
			return nil, fmt.Errorf("server unhealthy: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(healthRetryInterval):
		}
	}
}
