// Package sqlite is the single-node credential store. All transactions go
// through one writer goroutine, so at most one runs at a time and row locks
// reduce to reading under that transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"gate-admission/internal/infra/db/migrations"
)

// Open opens the database file at path with per-connection PRAGMAs and applies migrations.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn, err := fileDSN(path)
	if err != nil {
		return nil, err
	}
	return openDSN(ctx, dsn)
}

// Migrate applies the schema in direction without opening a store.
func Migrate(path, direction string) error {
	dsn, err := fileDSN(path)
	if err != nil {
		return err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	defer db.Close()
	return migrations.SQLite(db, direction)
}

func fileDSN(path string) (string, error) {
	if path == "" {
		path = "./data/admission.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir db dir: %w", err)
	}
	return fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	), nil
}

func openDSN(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// Single connection: the writer owns it while a transaction runs.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := migrations.SQLite(db, migrations.DirectionUp); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
