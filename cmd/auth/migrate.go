package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/yieldbook/internal/auth/app"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(_ context.Context, st store.Store) error {
				if err := st.ApplyMigrations(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("direction", "up").Wrap(err)
				}
				cmd.Println("Migrations applied")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(_ context.Context, st store.Store) error {
				m, err := migrator(st)
				if err != nil {
					return err
				}
				if err := m.MigrateDown(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("direction", "down").Wrap(err)
				}
				cmd.Println("Migrations rolled back")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(_ context.Context, st store.Store) error {
				m, err := migrator(st)
				if err != nil {
					return err
				}
				version, dirty, err := m.MigrationVersion()
				if err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
				}
				cmd.Printf("version=%d dirty=%t\n", version, dirty)
				return nil
			})
		},
	})

	return cmd
}

func migrator(st store.Store) (store.Migrator, error) {
	m, ok := st.(store.Migrator)
	if !ok {
		return nil, oops.Code("MIGRATION_UNSUPPORTED").Errorf("driver cannot step migrations")
	}
	return m, nil
}

// withStore opens the configured store for a one-shot command. Only the
// database settings are required; the signing secret may be absent.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st store.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := app.OpenStore(ctx, cfg, app.NewLogger(cfg))
	if errors.Is(err, app.ErrConfiguration) {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("driver", cfg.DatabaseDriver).Wrap(err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("closing store", "error", err)
		}
	}()

	return fn(ctx, st)
}
