// Package main provides auditctl, the maintenance CLI for the catalog audit core.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rpattn/catalogaudit/internal/app"
	"github.com/rpattn/catalogaudit/internal/config"
)

var (
	flagConfigDir string
	flagJSON      bool
	flagVerbose   bool

	// cfg is loaded by PersistentPreRunE for every subcommand.
	cfg    config.Config
	logger *slog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "auditctl",
	Short:         "Maintenance commands for the catalog audit store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if flagVerbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		loaded, err := config.Load(flagConfigDir, logger)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", ".", "directory containing config.yaml")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(checkLinksCmd)
	rootCmd.AddCommand(purgeHistoryCmd)
	rootCmd.AddCommand(invalidateCmd)
	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(categoryCmd)
}

// openApp connects to the configured storage. The caller must defer Close.
func openApp(cmd *cobra.Command) (*app.App, error) {
	application, err := app.New(cmd.Context(), cfg, false, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return application, nil
}

func printJSON(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
