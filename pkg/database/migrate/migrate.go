// Package migrate applies the storefront's embedded PostgreSQL schema
// migrations using golang-migrate.
package migrate

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// migrator is the subset of *migrate.Migrate used here.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
}

// migratorFactory builds a migrator for db. Tests replace it.
var migratorFactory = newMigrator

func newMigrator(db *sql.DB) (migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("creating postgres driver: %w", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// apply runs step against a fresh migrator. ErrNoChange is success.
func apply(db *sql.DB, what string, step func(migrator) error) (migrator, error) {
	m, err := migratorFactory(db)
	if err != nil {
		return nil, err
	}
	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return m, nil
}

// Run applies every pending migration. Applied migrations are skipped, so
// Run is safe at every startup.
func Run(db *sql.DB) error {
	m, err := apply(db, "running migrations", migrator.Up)
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		slog.Info("database has no migrations applied")
	case err != nil:
		return fmt.Errorf("getting migration version: %w", err)
	case dirty:
		slog.Warn("database migration state is dirty", "version", version)
	default:
		slog.Info("database schema up to date", "version", version)
	}
	return nil
}

// Version returns the applied schema version. A database without applied
// migrations reports version 0.
func Version(db *sql.DB) (uint, bool, error) {
	m, err := migratorFactory(db)
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err //nolint:wrapcheck // migrate errors are descriptive
}

// Down rolls back every migration, dropping the sessions and cart_events
// tables with their data.
func Down(db *sql.DB) error {
	_, err := apply(db, "rolling back migrations", migrator.Down)
	return err
}

// Steps applies n migrations up, or -n down when n is negative.
func Steps(db *sql.DB, n int) error {
	_, err := apply(db, "stepping migrations", func(m migrator) error { return m.Steps(n) })
	return err
}
