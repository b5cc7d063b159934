package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rh-ecosystem-edge/tempjobs/pkg/tempjobs"
	"github.com/spf13/cobra"
)

func newReapCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Remove stale temporary jobs",
		Long: `Remove the temporary jobs left behind by crashed test runs.

Examples:
  # Remove jobs older than one hour
  tempjobs reap --older-than 1h`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReap(cmd, olderThan)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "only remove jobs created before this age")

	return cmd
}

func runReap(cmd *cobra.Command, olderThan time.Duration) error {
	gateway, err := newGateway()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	removed, err := tempjobs.Reap(ctx, gateway, prefix, olderThan)
	for _, id := range removed {
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
	}

	if err != nil {
		return fmt.Errorf("failed to reap jobs: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d jobs removed\n", len(removed))

	return nil
}
