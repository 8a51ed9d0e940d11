// Package store implements the state store gateway: the single
// relational source of truth for meeting and bot lifecycle state. All
// mutation goes through compare-and-set SQL so concurrent callers (API
// requests, worker callbacks, the reaper) never corrupt the status DAG.
package store

import (
	"context"
	stdsql "database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// Config tunes the underlying *sql.DB connection pool.
type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Store wraps a *sql.DB connected through the pgx stdlib driver and exposes
// the Meeting lifecycle as a set of typed, idempotent operations.
type Store struct {
	db *stdsql.DB
}

// Open connects to dsn, applies embedded migrations, and returns a ready
// Store. Migrations are embedded at compile time so a deployed binary never
// depends on an external migrations directory.
func Open(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// FromDB wraps an already-open *sql.DB, skipping migrations. Used by tests
// that manage schema setup themselves.
func FromDB(db *stdsql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying pool to callers that share it, such as the
// command bus in cmd/blm and the test harness.
func (s *Store) DB() *stdsql.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewMigrator builds a migrate.Migrate over the embedded migrations for an
// already-open pool. Used internally by Open and by the cmd/blm-migrate
// standalone runner's up/down/version subcommands.
func NewMigrator(db *stdsql.DB) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "blm", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

func runMigrations(db *stdsql.DB) error {
	m, err := NewMigrator(db)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	srcErr, dbErr := m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

// HealthStatus reports basic pool reachability, mirroring the shape a
// deployment's /health endpoint needs.
type HealthStatus struct {
	Reachable bool
	OpenConns int
	InUse     int
	Idle      int
}

// Health pings the pool and reports its current stats.
func (s *Store) Health(ctx context.Context) (*HealthStatus, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return &HealthStatus{Reachable: false}, fmt.Errorf("ping: %w", err)
	}
	stats := s.db.Stats()
	return &HealthStatus{
		Reachable: true,
		OpenConns: stats.OpenConnections,
		InUse:     stats.InUse,
		Idle:      stats.Idle,
	}, nil
}
