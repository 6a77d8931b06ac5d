// Command pmctl inspects access decisions and manages background jobs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/odyssey-pm/odyssey-pm/internal/app"
)

var rootCmd = &cobra.Command{
	Use:           "pmctl",
	Short:         "Odyssey PM operations tool",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			fmt.Fprintln(cmd.ErrOrStderr(), "skipping .env:", err)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withServices loads configuration, connects the shared services and runs fn.
func withServices(ctx context.Context, fn func(*app.Services) error) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc, err := app.NewServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}
