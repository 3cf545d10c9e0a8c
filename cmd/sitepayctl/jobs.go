package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/sitepay/cmd/sitepayctl/cli"
	"github.com/odyssey-erp/sitepay/internal/app"
)

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	var days int
	warmup := &cobra.Command{
		Use:   "warmup",
		Short: "Queue a report cache warmup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJobs(func(c *cli.JobsCLI) error {
				info, err := c.TriggerWarmup(cmd.Context(), days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued %s on %s\n", info.ID, info.Queue)
				return nil
			})
		},
	}
	warmup.Flags().IntVar(&days, "days", 2, "trailing days to warm")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJobs(func(c *cli.JobsCLI) error {
				s, err := c.InspectQueue(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
					s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry)
				return nil
			})
		},
	}

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune-keys",
		Short: "Delete upload idempotency keys older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd, func(deps *app.Deps) error {
				if err := deps.Idempotency.Cleanup(cmd.Context(), olderThan); err != nil {
					return fmt.Errorf("prune idempotency keys: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned keys older than %s\n", olderThan)
				return nil
			})
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "retention window")

	cmd.AddCommand(warmup, stats, prune)
	return cmd
}

func withJobs(fn func(*cli.JobsCLI) error) error {
	addr, err := redisAddr()
	if err != nil {
		return err
	}
	c, err := cli.NewJobsCLI(addr)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	return fn(c)
}

func redisAddr() (string, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.RedisAddr, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
