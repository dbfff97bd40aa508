package sqlite

import (
	"errors"

	"github.com/aussiebroadwan/yieldbook/internal/auth/store/drivers/sqlite/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

// migrator builds a migrate instance over the store's own connection pool
// using the migrations compiled into the binary. The instance is never
// closed since that would close the shared *sql.DB.
func (m *Store) migrator() (*migrate.Migrate, error) {
	driver, err := sqlite.WithInstance(m.db, &sqlite.Config{})
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return nil, err
	}

	return migrate.NewWithInstance("iofs", source, "sqlite", driver)
}

// ApplyMigrations applies any pending up migrations.
func (m *Store) ApplyMigrations() error {
	instance, err := m.migrator()
	if err != nil {
		return err
	}

	err = instance.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// MigrateDown reverts every applied migration.
func (m *Store) MigrateDown() error {
	instance, err := m.migrator()
	if err != nil {
		return err
	}

	err = instance.Down()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// MigrationVersion reports the current schema version. A database with no
// migrations applied reports version 0.
func (m *Store) MigrationVersion() (uint, bool, error) {
	instance, err := m.migrator()
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := instance.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}
