package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/yieldbook/internal/auth/app"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the auth service CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Yieldbook authentication service",
		Long: `Registers accounts, checks credentials and issues signed access and
refresh tokens for the rest of Yieldbook.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML config file path")
	flags.Int("port", 8080, "HTTP listen port")
	flags.String("database-driver", "sqlite", "database driver (sqlite, postgres)")
	flags.String("database-url", "", "database DSN")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUsersCmd())
	cmd.AddCommand(NewSecretCmd())

	return cmd
}

// loadConfig layers env, the --config file and explicitly set flags.
func loadConfig(cmd *cobra.Command) (app.Config, error) {
	cfg, err := app.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return app.Config{}, oops.Code("CONFIG_INVALID").With("path", configFile).Wrap(err)
	}
	return cfg, nil
}
