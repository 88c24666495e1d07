// Package migrations applies the embedded PostgreSQL schema migrations
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

const migrationsTable = "schema_migrations"

//go:embed sql/*.sql
var migrationsFS embed.FS

// Migrator runs schema migrations against a PostgreSQL database
type Migrator struct {
	migrate *migrate.Migrate
	logger  zerolog.Logger
}

// New creates a migrator for a postgres:// database URL
func New(databaseURL string, logger zerolog.Logger) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Migrator{
		migrate: m,
		logger:  logger.With().Str("component", "migrations").Logger(),
	}, nil
}

// Up applies all pending migrations. A dirty version is forced clean first.
func (m *Migrator) Up() error {
	version, dirty, err := m.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if dirty {
		m.logger.Warn().Uint("version", version).Msg("database is dirty, forcing version")
		if err := m.migrate.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version %d: %w", version, err)
		}
	}

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("database schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	newVersion, _, _ := m.migrate.Version()
	m.logger.Info().Uint("version", newVersion).Msg("database migrated")
	return nil
}

// Down rolls back one migration
func (m *Migrator) Down() error {
	if err := m.migrate.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return nil
}

// Version returns the current schema version and dirty flag
func (m *Migrator) Version() (uint, bool, error) {
	return m.migrate.Version()
}

// Close releases the source and database handles
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("failed to close migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close migration database: %w", dbErr)
	}
	return nil
}
