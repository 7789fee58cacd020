// Package database holds the pantry's SQLite storage: connection setup,
// embedded migrations and the item Store.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/pantrybot/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

const busyTimeoutMS = 5000

// NewDB opens the pantry database at dbPath and migrates it to the latest
// schema.
func NewDB(dbPath string, logger *slog.Logger) (*sqlx.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "database")

	db, err := sqlx.Connect("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open pantry database: %w", err)
	}

	// One connection: handler writes and the digest's reads never interleave.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := ApplyMigrations(db.DB, DBFilePath(dbPath), log); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database after migration error", "error", closeErr)
		}
		return nil, err
	}

	log.Info("Pantry database ready", "path", dbPath)
	return db, nil
}

// dsn adds the connection pragmas to dbPath.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)", dbPath, sep, busyTimeoutMS)
}

// CloseDB closes db, logging instead of failing.
func CloseDB(db *sqlx.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.Close(); err != nil {
		logger.Error("Failed to close pantry database", "component", "database", "error", err)
		return
	}
	logger.Info("Pantry database closed", "component", "database")
}

// ApplyMigrations brings the items schema up to date from the embedded
// migration files.
func ApplyMigrations(db *sql.DB, dbName string, log *slog.Logger) error {
	switch {
	case db == nil:
		return errors.New("cannot migrate: nil database")
	case dbName == "":
		return errors.New("cannot migrate: empty database name")
	}
	if log == nil {
		log = slog.Default()
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	target, err := sqlite.WithInstance(db, &sqlite.Config{DatabaseName: dbName})
	if err != nil {
		return fmt.Errorf("failed to prepare sqlite migration target: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", target)
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug("Schema already up to date")
		return nil
	case err != nil:
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	log.Info("Schema migrated", "version", version)
	return nil
}

// DBFilePath strips a "file:" scheme and query string from dbPath and
// unescapes it, leaving the file name.
func DBFilePath(dbPath string) string {
	p := strings.TrimPrefix(dbPath, "file:")
	p, _, _ = strings.Cut(p, "?")
	if decoded, err := url.PathUnescape(p); err == nil {
		return decoded
	}
	return p
}
