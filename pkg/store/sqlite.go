package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"resultdb/pkg/config"
	"resultdb/pkg/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// ErrNotFound is returned when a row lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Store wraps two connection pools over the same SQLite file: db is the
// shared request pool, writer is a single-connection pool owned by the
// batch flush path so all batched writes serialize on one connection.
type Store struct {
	db     *sqlx.DB
	writer *sqlx.DB
	path   string
}

// Open opens the request pool and the dedicated writer connection, applying
// journal and checkpoint pragmas from config.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	path := cfg.URL
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db dir %s: %w", dir, err)
		}
	}

	dsn := buildDSN(cfg)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db %s: %w", path, err)
	}

	writer, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open writer conn %s: %w", path, err)
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)
	if err := writer.Ping(); err != nil {
		db.Close()
		writer.Close()
		return nil, fmt.Errorf("ping writer conn %s: %w", path, err)
	}
	if cfg.WAL && cfg.WALAutocheckpoint > 0 {
		if _, err := writer.Exec(fmt.Sprintf("PRAGMA wal_autocheckpoint = %d", cfg.WALAutocheckpoint)); err != nil {
			db.Close()
			writer.Close()
			return nil, fmt.Errorf("set wal_autocheckpoint: %w", err)
		}
	}

	logger.Info("store_opened", "path", path, "wal", cfg.WAL, "pool", cfg.MaxConnections)
	return &Store{db: db, writer: writer, path: path}, nil
}

func buildDSN(cfg config.DatabaseConfig) string {
	path := cfg.URL
	params := []string{
		"_synchronous=NORMAL",
		"_foreign_keys=on",
		"_busy_timeout=5000",
	}
	if cfg.WAL {
		params = append([]string{"_journal_mode=WAL"}, params...)
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&"))
}

// Migrate applies embedded migrations on the writer connection.
func (s *Store) Migrate() error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(s.writer.DB, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("migrations_applied", "path", s.path)
	return nil
}

// Ping verifies the request pool is reachable. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes both pools.
func (s *Store) Close() error {
	var first error
	if err := s.writer.Close(); err != nil {
		first = err
	}
	if err := s.db.Close(); err != nil && first == nil {
		first = err
	}
	if first == nil {
		logger.Info("store_closed", "path", s.path)
	}
	return first
}
