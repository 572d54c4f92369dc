package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config describes where the SQLite database lives.
type Config struct {
	DatabasePath string
}

// DB owns the SQLite connection pool.
type DB struct {
	conn *sql.DB
}

// NewDB opens (creating if needed) the database and applies pending
// migrations.
func NewDB(cfg Config) (*DB, error) {
	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("[database NewDB] database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("[database NewDB] create data dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", cfg.DatabasePath)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("[database NewDB] open: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("[database NewDB] ping: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("[database migrate] %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db.conn, migrations)
	if err != nil {
		return fmt.Errorf("[database migrate] provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("[database migrate] up: %w", err)
	}
	for _, r := range results {
		log.Info().Str("migration", r.Source.Path).Dur("took", r.Duration).Msg("applied migration")
	}
	return nil
}

// Connection returns the underlying pool.
func (db *DB) Connection() *sql.DB {
	return db.conn
}

func (db *DB) Close() error {
	return db.conn.Close()
}
