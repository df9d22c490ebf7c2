// Package app wires repositories and services for the configured storage driver.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/catalogaudit/internal/catalog"
	"github.com/rpattn/catalogaudit/internal/config"
	"github.com/rpattn/catalogaudit/internal/db"
	"github.com/rpattn/catalogaudit/internal/history"
	"github.com/rpattn/catalogaudit/internal/permission"
	"github.com/rpattn/catalogaudit/internal/registry"
	"github.com/rpattn/catalogaudit/internal/relationship"
	"github.com/rpattn/catalogaudit/internal/repository"
	"github.com/rpattn/catalogaudit/internal/repository/memory"
)

// Repositories groups one implementation of every repository.
type Repositories struct {
	Entities   repository.EntityRegistryRepository
	History    repository.HistoryRepository
	Categories repository.CategoryRepository
	Families   repository.FamilyRepository
	Users      repository.UserRepository
	Roles      repository.RoleRepository
}

// PostgresRepositories builds pgx-backed repositories over exec.
func PostgresRepositories(exec db.DBTX) Repositories {
	return Repositories{
		Entities:   repository.NewEntityRegistryRepository(exec),
		History:    repository.NewHistoryRepository(exec),
		Categories: repository.NewCategoryRepository(exec),
		Families:   repository.NewFamilyRepository(exec),
		Users:      repository.NewUserRepository(exec),
		Roles:      repository.NewRoleRepository(exec),
	}
}

// MemoryRepositories builds repositories sharing one in-memory store.
func MemoryRepositories(store *memory.Store) Repositories {
	return Repositories{
		Entities:   memory.NewEntityRegistryRepository(store),
		History:    memory.NewHistoryRepository(store),
		Categories: memory.NewCategoryRepository(store),
		Families:   memory.NewFamilyRepository(store),
		Users:      memory.NewUserRepository(store),
		Roles:      memory.NewRoleRepository(store),
	}
}

// Services is the assembled audit core.
type Services struct {
	Registry     *registry.Service
	Ledger       *history.Ledger
	Synchronizer *relationship.Synchronizer
	Checker      *relationship.Checker
	Invalidator  *permission.Invalidator
	Catalog      *catalog.Service
}

// NewServices wires every service over repos.
func NewServices(repos Repositories, audit config.AuditConfig, logger *slog.Logger) Services {
	reg := registry.NewService(repos.Entities, logger)
	ledger := history.NewLedger(repos.History, reg, logger,
		history.WithPageSizes(audit.DefaultPageSize, audit.MaxPageSize))
	sync := relationship.NewSynchronizer(repos.Categories, repos.Families, ledger, logger)
	return Services{
		Registry:     reg,
		Ledger:       ledger,
		Synchronizer: sync,
		Checker:      relationship.NewChecker(repos.Categories, repos.Families, sync, logger),
		Invalidator:  permission.NewInvalidator(repos.Users, repos.Roles, logger),
		Catalog:      catalog.NewService(repos.Categories, repos.Families, ledger, sync, reg, logger),
	}
}

// App owns the storage connection and the services built over it.
type App struct {
	Services
	conn   *db.Connection
	audit  config.AuditConfig
	logger *slog.Logger
}

// New connects to the configured storage, migrating Postgres first when migrate is set.
func New(ctx context.Context, cfg config.Config, migrate bool, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage; data is lost on exit")
		return &App{Services: NewServices(MemoryRepositories(memory.NewStore()), cfg.Audit, logger), audit: cfg.Audit, logger: logger}, nil
	case config.DriverPostgres:
		if migrate {
			if err := db.RunMigrations(cfg.Database, logger); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		conn, err := db.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return &App{
			Services: NewServices(PostgresRepositories(conn.Pool), cfg.Audit, logger),
			conn:     conn,
			audit:    cfg.Audit,
			logger:   logger,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// InTx runs fn with services bound to a single transaction. The memory driver
// has no transactions, so fn runs against the shared services.
func (a *App) InTx(ctx context.Context, fn func(Services) error) error {
	if a.conn == nil {
		return fn(a.Services)
	}
	return a.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(NewServices(PostgresRepositories(tx), a.audit, a.logger))
	})
}

// Close releases the storage connection.
func (a *App) Close() {
	if a.conn != nil {
		a.conn.Close()
	}
}
