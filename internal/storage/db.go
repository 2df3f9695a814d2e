package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/wmarzella/ronin/internal/common"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL engine behind a DB.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB wraps a database/sql connection with its dialect. Entity storages
// share query text written with ? placeholders; rebind translates for
// postgres.
type DB struct {
	db      *sql.DB
	dialect Dialect
	logger  arbor.ILogger

	// path is set for sqlite engines and used by the backup job.
	path string
}

// NewSQLiteDB opens the embedded single-file engine.
func NewSQLiteDB(logger arbor.ILogger, config *common.SQLiteConfig) (*DB, error) {
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// modernc.org/sqlite uses "sqlite" driver name (not "sqlite3")
	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &DB{
		db:      db,
		dialect: DialectSQLite,
		logger:  logger,
		path:    config.Path,
	}

	if err := s.configureSQLite(config); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Str("path", config.Path).Msg("SQLite database initialized")
	return s, nil
}

// NewPostgresDB opens the server engine via the pgx stdlib driver.
func NewPostgresDB(logger arbor.ILogger, config *common.PostgresConfig) (*DB, error) {
	db, err := sql.Open("pgx", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &DB{
		db:      db,
		dialect: DialectPostgres,
		logger:  logger,
	}

	if err := s.db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: postgres unreachable: %v", common.ErrTransient, err)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Msg("Postgres database initialized")
	return s, nil
}

// configureSQLite sets up SQLite pragmas and settings
func (s *DB) configureSQLite(config *common.SQLiteConfig) error {
	cacheMB := config.CacheSizeMB
	if cacheMB <= 0 {
		cacheMB = 32
	}
	busyMS := config.BusyTimeoutMS
	if busyMS <= 0 {
		busyMS = 5000
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheMB*1024), // Negative for KB
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyMS),
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}

	if config.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

// rebind translates ? placeholders to $1..$n for postgres. Query text in
// the entity storages is written once in ? style.
func (s *DB) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}

// Rebind exposes placeholder translation for callers outside the entity
// storages, such as the scheduler's job settings persistence.
func (s *DB) Rebind(query string) string {
	return s.rebind(query)
}

// Dialect returns the engine behind this connection.
func (s *DB) Dialect() Dialect {
	return s.dialect
}

// Path returns the database file path for sqlite engines, empty otherwise.
func (s *DB) Path() string {
	return s.path
}

// DB returns the underlying database connection
func (s *DB) DB() *sql.DB {
	return s.db
}

// BeginTx starts a new transaction
func (s *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// Ping verifies the database connection
func (s *DB) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransient, err)
	}
	return nil
}

// Close closes the database connection
func (s *DB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
