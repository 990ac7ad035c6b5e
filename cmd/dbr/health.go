package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rnwolf/dbr/internal/api"
)

const healthPollInterval = 500 * time.Millisecond

// waitHealthy polls check until it reports "ok" or the wait elapses. A
// zero wait makes a single attempt.
func waitHealthy(ctx context.Context, check func(context.Context) (string, error), wait time.Duration) (string, error) {
	deadline := time.Now().Add(wait)
	for {
		status, err := check(ctx)
		if err == nil && status == "ok" {
			return status, nil
		}
		if wait <= 0 || time.Now().After(deadline) {
			if err != nil {
				return "", fmt.Errorf("checking health: %w", err)
			}
			return status, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(healthPollInterval):
		}
	}
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check that the server is up",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetDuration("wait")
		start := time.Now()
		status, err := waitHealthy(cmd.Context(), dbrClient.Health, wait)
		if err != nil {
			return err
		}
		err = emit(cmd.OutOrStdout(), api.HealthResponse{Status: status}, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "%s (%s)\n", status, time.Since(start).Round(time.Millisecond))
			return err
		})
		if err != nil {
			return err
		}
		if status != "ok" {
			return fmt.Errorf("server unhealthy: %s", status)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().Duration("wait", 0, "keep polling up to this long until the server is healthy")
}
