package postgres

import (
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"

	"github.com/aussiebroadwan/yieldbook/internal/auth/store/drivers/postgres/migrations"
)

// migrateURL rewrites postgres:// and postgresql:// to the pgx5:// scheme
// expected by the golang-migrate pgx/v5 driver.
func migrateURL(dsn string) string {
	if rest, found := strings.CutPrefix(dsn, "postgres://"); found {
		return "pgx5://" + rest
	}
	if rest, found := strings.CutPrefix(dsn, "postgresql://"); found {
		return "pgx5://" + rest
	}
	return dsn
}

// withMigrator opens a dedicated migrate instance, runs fn and closes it.
func (s *Store) withMigrator(fn func(m *migrate.Migrate) error) error {
	if s.dsn == "" {
		return oops.Code("MIGRATION_INIT_FAILED").Errorf("no database url configured")
	}

	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return oops.Code("MIGRATION_SOURCE_FAILED").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(s.dsn))
	if err != nil {
		_ = source.Close()
		return oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	defer func() { _, _ = m.Close() }()

	return fn(m)
}

// ApplyMigrations applies all pending up migrations.
func (s *Store) ApplyMigrations() error {
	return s.withMigrator(func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
		}
		return nil
	})
}

// MigrateDown rolls back every migration, dropping all tables.
func (s *Store) MigrateDown() error {
	return s.withMigrator(func(m *migrate.Migrate) error {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
		}
		return nil
	})
}

// MigrationVersion returns version 0 when nothing has been applied.
func (s *Store) MigrationVersion() (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := s.withMigrator(func(m *migrate.Migrate) error {
		var err error
		version, dirty, err = m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			version, dirty = 0, false
			return nil
		}
		if err != nil {
			return oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
		}
		return nil
	})
	return version, dirty, err
}
