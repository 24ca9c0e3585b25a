package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQLドライバ
	_ "github.com/mattn/go-sqlite3" // SQLiteドライバ
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"outlook_service/internal/app/config"
	"outlook_service/internal/app/logger"
)

// SQLiteDSN builds the connection string for a SQLite file with foreign keys enforced.
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
}

func sqlDriver(cfg config.DatabaseConfig) (driverName, dsn string, err error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return "postgres", cfg.URL, nil
	case config.DriverSQLite:
		return "sqlite3", SQLiteDSN(cfg.SQLitePath), nil
	}
	return "", "", fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// Connect opens a plain database/sql handle, retrying until the database answers a ping.
// The handle is used for schema migrations; data access goes through Open.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*sql.DB, error) {
	driverName, dsn, err := sqlDriver(cfg)
	if err != nil {
		return nil, err
	}

	maxRetries := cfg.ConnectRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	retryInterval := cfg.ConnectInterval

	// データベースに接続（リトライ付き）
	for i := 0; i < maxRetries; i++ {
		log.Info("Attempting to connect to database", "driver", cfg.Driver, "attempt", i+1, "max", maxRetries)
		conn, err := sql.Open(driverName, dsn)
		if err == nil {
			// 接続の確認（Ping）
			if err = conn.PingContext(ctx); err == nil {
				// 接続成功
				log.Info("Successfully connected to database", "driver", cfg.Driver)
				return conn, nil
			}
			conn.Close()
		}
		log.Warn("Failed to connect to database", "error", err, "retry_in", retryInterval)

		if i == maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}

	// 最大リトライ回数を超えても接続できなかった場合
	return nil, fmt.Errorf("failed to connect to database after %d retries", maxRetries)
}

// Open opens the gorm handle used by the repositories.
func Open(cfg config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.URL)
	case config.DriverSQLite:
		dialector = sqlite.Open(SQLiteDSN(cfg.SQLitePath))
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 log.Gorm(cfg.SlowThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == config.DriverSQLite {
		// SQLite serialises writers itself; one connection keeps it from returning SQLITE_BUSY mid-transaction.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return gdb, nil
}

// Setup connects, applies pending migrations and returns the gorm handle.
func Setup(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	conn, err := Connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(conn, cfg.Driver, log); err != nil {
		conn.Close()
		return nil, err
	}
	// the migrate driver may already have closed the handle
	_ = conn.Close()

	return Open(cfg, log)
}
