package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"outlook_service/internal/app/config"
	"outlook_service/internal/app/logger"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

type migrationLogger struct {
	log *logger.Logger
}

func (l migrationLogger) Printf(format string, v ...interface{}) {
	l.log.SugaredLogger.Debugf(format, v...)
}

func (l migrationLogger) Verbose() bool { return false }

func newMigrate(conn *sql.DB, driver string) (*migrate.Migrate, error) {
	var (
		dbDriver database.Driver
		dir      string
		err      error
	)
	switch driver {
	case config.DriverPostgres:
		dir = "migrations/postgres"
		dbDriver, err = migratepg.WithInstance(conn, &migratepg.Config{})
	case config.DriverSQLite:
		dir = "migrations/sqlite"
		dbDriver, err = migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	src, err := iofs.New(migrationFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, driver, dbDriver)
}

// Migrate applies all pending migrations. It is safe to call on an up-to-date database.
func Migrate(conn *sql.DB, driver string, log *logger.Logger) error {
	m, err := newMigrate(conn, driver)
	if err != nil {
		return err
	}
	m.Log = migrationLogger{log: log}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Warn("Failed to close migration source", "error", srcErr)
		}
		if dbErr != nil {
			log.Warn("Failed to close migration database", "error", dbErr)
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("No migrations to apply (database up-to-date)")
		return nil
	}
	if err != nil {
		version, dirty, _ := m.Version()
		return fmt.Errorf("failed to run migrations (version=%d dirty=%t): %w", version, dirty, err)
	}

	version, _, _ := m.Version()
	log.Info("Applied migrations successfully", "version", version)
	return nil
}
