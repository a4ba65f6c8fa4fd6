package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nodefleet/config"
	"nodefleet/log"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	dialect Dialect
	driver  string
	log     zerolog.Logger

	outbox *operationOutbox
}

// Open connects to the database named by cfg.URL, applies the pool settings
// and migrates the schema. The scheme selects the driver.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	var (
		db  *DB
		err error
	)
	switch {
	case strings.HasPrefix(cfg.URL, "postgres://"), strings.HasPrefix(cfg.URL, "postgresql://"):
		db, err = openPostgres(cfg)
	case strings.HasPrefix(cfg.URL, "sqlite://"):
		db, err = openSQLite(strings.TrimPrefix(cfg.URL, "sqlite://"))
	case strings.HasPrefix(cfg.URL, "file:"):
		db, err = openSQLite(strings.TrimPrefix(cfg.URL, "file:"))
	default:
		return nil, fmt.Errorf("unsupported database url scheme: %q", redact(cfg.URL))
	}
	if err != nil {
		return nil, err
	}

	acquire := cfg.AcquireTimeout
	if acquire <= 0 {
		acquire = 30 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, acquire)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", db.driver, err)
	}
	if err := db.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", db.driver, err)
	}
	db.log.Info().Str("driver", db.driver).Msg("database ready")
	return db, nil
}

func openSQLite(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("open sqlite: empty path")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps transactions serialised.
	sqlDB.SetMaxOpenConns(1)
	return &DB{DB: sqlDB, dialect: sqliteDialect{}, driver: "sqlite", log: log.WithComponent("store")}, nil
}

func openPostgres(cfg *config.DatabaseConfig) (*DB, error) {
	sqlDB, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return &DB{DB: sqlDB, dialect: postgresDialect{}, driver: "postgres", log: log.WithComponent("store")}, nil
}

func (db *DB) Dialect() Dialect { return db.dialect }
func (db *DB) Driver() string   { return db.driver }

// Q rewrites ? placeholders for PostgreSQL, passes through for SQLite.
func (db *DB) Q(query string) string {
	if db.driver == "postgres" {
		return Rebind(query)
	}
	return query
}

// ExecTx runs fn inside a transaction, rolling back when fn fails.
func (db *DB) ExecTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (db *DB) migrate(ctx context.Context) error {
	var schema string
	switch db.driver {
	case "sqlite":
		schema = schemaSQLite
	case "postgres":
		schema = schemaPostgres
	default:
		return fmt.Errorf("no schema for driver: %s", db.driver)
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

// now is the repository clock for updated_at.
func (db *DB) now() any {
	return db.dialect.Timestamp(time.Now().UTC())
}

// redact drops credentials from a connection URL before it is logged.
func redact(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return url
	}
	return url[:scheme+3] + "***" + url[at:]
}
