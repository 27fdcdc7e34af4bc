package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"compass-auth/internal/app"
	"compass-auth/internal/config"
	"compass-auth/internal/logger"
)

// loadConfig is replaced in tests.
var loadConfig = config.Load

// NewRootCmd creates the root command. Running it without a subcommand
// starts the server.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "compass-auth",
		Short:        "Compass authentication service",
		Long:         `compass-auth issues and refreshes session cookies, signs users in with a password or Google, and verifies email codes.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
}

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending embedded migrations to the PostgreSQL database named by DATABASE_URL.`,
		RunE:  runMigrate,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	log := logger.New(os.Stdout, cfg.Environment, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return oops.Code("STARTUP_FAILED").Wrap(err)
	}

	return application.Run(ctx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.Println("Running migrations...")
	if err := app.Migrate(ctx, cfg); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
