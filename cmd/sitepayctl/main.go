package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/sitepay/internal/app"
)

var rootCmd = &cobra.Command{
	Use:           "sitepayctl",
	Short:         "Operate the sitepay payroll engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(ratesCmd())
	rootCmd.AddCommand(jobsCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withDeps loads configuration, opens Postgres and Redis for the duration of
// fn and closes them afterwards.
func withDeps(cmd *cobra.Command, fn func(*app.Deps) error) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)
	deps, err := app.OpenDeps(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer deps.Close(logger)
	return fn(deps)
}
