package db

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5:// scheme
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunMigrations applies every pending embedded migration against the configured database.
func RunMigrations(config Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	m, err := newMigrator(config)
	if err != nil {
		return err
	}
	defer closeMigrator(m, logger)

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("Database schema up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Info("Applied migrations", "version", version, "dirty", dirty)
	return nil
}

// RollbackMigrations reverts the given number of migration steps.
func RollbackMigrations(config Config, steps int, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}

	m, err := newMigrator(config)
	if err != nil {
		return err
	}
	defer closeMigrator(m, logger)

	if err := m.Steps(-steps); err != nil {
		return fmt.Errorf("failed to roll back %d migrations: %w", steps, err)
	}
	logger.Info("Rolled back migrations", "steps", steps)
	return nil
}

func newMigrator(config Config) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, config.URL("pgx5"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialise migrator: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate, logger *slog.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Warn("Failed to close migration source", "error", srcErr)
	}
	if dbErr != nil {
		logger.Warn("Failed to close migration database", "error", dbErr)
	}
}
