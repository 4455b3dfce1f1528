package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"riskgate/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "riskgate",
		Short:         "Risk-gating middleware between alert webhooks and a brokerage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cfg := config.Bind(root.PersistentFlags())
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Resolve(root.PersistentFlags(), envFile); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level})))
		return nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the webhook server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "windows",
			Short: "Fetch the economic calendar once and print the blackout windows",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runWindows(cmd.Context(), cmd.OutOrStdout(), cfg)
			},
		},
	)
	return root
}

func generateRunID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	return timestamp + "-" + uuid.NewString()[:8]
}
