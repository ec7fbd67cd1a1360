// Package store persists the master catalog and purchase order history in
// SQLite or PostgreSQL.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds database connection configuration
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// Store owns the database handle shared by the repositories
type Store struct {
	db     *sqlx.DB
	driver string
	flavor sqlbuilder.Flavor
	logger *zap.Logger
}

// Open connects to the database, applies pragmas and migrations.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	driver := strings.ToLower(cfg.Driver)
	var flavor sqlbuilder.Flavor
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		flavor = sqlbuilder.SQLite
	case DriverPostgres, "postgresql":
		driver = DriverPostgres
		flavor = sqlbuilder.PostgreSQL
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	dsn := cfg.DSN
	if dsn == "" && driver == DriverSQLite {
		dsn = ":memory:"
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer; an in-memory database also only
		// exists on the connection that created it.
		db.SetMaxOpenConns(1)
		pragmas := []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		}
		if dsn != ":memory:" {
			pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
		}
		for _, pragma := range pragmas {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}

	s := &Store{db: db, driver: driver, flavor: flavor, logger: logger.Named("store")}
	if err := s.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.logger.Info("store ready", zap.String("driver", driver))
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks if the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the database driver name
func (s *Store) Driver() string {
	return s.driver
}

// Catalog returns the master catalog repository
func (s *Store) Catalog() *CatalogRepository {
	return &CatalogRepository{store: s}
}

// PurchaseOrders returns the purchase order history repository
func (s *Store) PurchaseOrders() *PurchaseOrderRepository {
	return &PurchaseOrderRepository{store: s}
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
