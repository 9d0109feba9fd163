// Package root contains the root command for the application.
package root

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kassabot/internal/config"
	"kassabot/internal/container"
	"kassabot/internal/logging"
)

var (
	// Log is the shared logger instance for commands.
	Log logging.Logger = logging.GetLogger()

	// Cfg is the loaded application configuration.
	Cfg *config.Config

	appContainer *container.Container

	// Cmd is the root command.
	Cmd = &cobra.Command{
		Use:   "kassabot",
		Short: "A Telegram bot that turns grocery receipt PDFs into split expenses.",
		Long: `kassabot extracts line items from receipt PDFs, sorts them into
configured buckets by fuzzy term matching, and registers the resulting
cost shares in the shared expense ledger.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("use --help to see available commands")
		},
	}
)

// Init wires the root command's persistent setup. Called once from main.
func Init() {
	Cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		config.LoadEnv()

		cfg, err := config.InitializeConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		Cfg = cfg

		Log = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
		logging.SetDefaultLogger(Log)
		return nil
	}
}

// GetContainer builds the application container on first use so that
// commands that never touch the pipeline (help, completion) do not need API
// keys configured.
func GetContainer(ctx context.Context, opts ...container.Option) (*container.Container, error) {
	if appContainer != nil {
		return appContainer, nil
	}
	c, err := container.NewContainer(ctx, Cfg, opts...)
	if err != nil {
		return nil, err
	}
	appContainer = c
	return c, nil
}
