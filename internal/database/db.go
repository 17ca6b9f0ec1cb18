// Package database provides the SQLite connection, schema migrations and
// the SQLite-backed snapshot store for chat messages.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	moderncsqlite "modernc.org/sqlite"

	"github.com/Usernoise/chatd/internal/logger"
	"github.com/Usernoise/chatd/internal/persist"
	"github.com/Usernoise/chatd/migrations"
)

// Primary SQLite result codes for a damaged or foreign file.
const (
	sqliteCorrupt = 11
	sqliteNotADB  = 26
)

// NewDB opens the SQLite database at dbPath, applies migrations, and
// returns the connection pool.
func NewDB(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite doesn't support concurrent writes, so max open conns = 1
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := ApplyMigrations(db.DB); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database connected and migrations applied successfully", "path", dbPath)
	return db, nil
}

// OpenOrRecover opens dbPath like NewDB. A file SQLite rejects as corrupt
// is moved aside to "<path>.backup_YYYYMMDD_HHMMSS" and an empty database
// is created in its place.
func OpenOrRecover(dbPath string, now time.Time, log *slog.Logger) (*sqlx.DB, error) {
	if log == nil {
		log = logger.Discard()
	}
	db, err := NewDB(dbPath)
	if err == nil || !isCorrupt(err) {
		return db, err
	}

	backup := persist.BackupPath(dbPath, now)
	log.Error("Database file is corrupt", "path", dbPath, "error", err)
	if renameErr := os.Rename(dbPath, backup); renameErr != nil {
		return nil, fmt.Errorf("failed to move corrupt database aside: %w", renameErr)
	}
	// Side files of the old database must not be replayed into the new one.
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		if mvErr := os.Rename(dbPath+suffix, backup+suffix); mvErr != nil && !errors.Is(mvErr, os.ErrNotExist) {
			log.Warn("Failed to move database side file", "path", dbPath+suffix, "error", mvErr)
		}
	}
	log.Info("Corrupt database saved as backup", "backup", backup)
	return NewDB(dbPath)
}

func isCorrupt(err error) bool {
	var se *moderncsqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqliteCorrupt, sqliteNotADB:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "not a database") || strings.Contains(msg, "malformed")
}

// ApplyMigrations runs the embedded migrations against db.
func ApplyMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create embed source driver instance: %w", err)
	}

	dbDriver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite database driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Debug("No database migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database migrations applied successfully")
	return nil
}
