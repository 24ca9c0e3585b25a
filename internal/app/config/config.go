package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the outlook service configuration.
// Values come from an optional YAML file, environment variables override them.
type Config struct {
	LogMode  string `yaml:"log_mode" env:"LOG_MODE" env-default:"development"`
	HTTPAddr string `yaml:"http_addr" env:"HTTP_ADDR" env-default:":8080"`

	Database DatabaseConfig `yaml:"database"`
	Store    StoreConfig    `yaml:"store"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

// DatabaseConfig selects the storage engine and connection settings.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	URL             string        `yaml:"-" env:"DATABASE_URL"` // secret, env only
	SQLitePath      string        `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"outlook.db"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnectRetries  int           `yaml:"connect_retries" env:"DB_CONNECT_RETRIES" env-default:"10"`
	ConnectInterval time.Duration `yaml:"connect_interval" env:"DB_CONNECT_INTERVAL" env-default:"5s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" env:"DB_SLOW_THRESHOLD" env-default:"1s"`
}

// StoreConfig bounds every store operation.
type StoreConfig struct {
	OpTimeout time.Duration `yaml:"op_timeout" env:"STORE_OP_TIMEOUT" env-default:"5s"`
}

// IngestConfig controls the batch ingester.
type IngestConfig struct {
	Concurrency  int           `yaml:"concurrency" env:"INGEST_CONCURRENCY" env-default:"4"`
	MaxRetries   int           `yaml:"max_retries" env:"INGEST_MAX_RETRIES" env-default:"3"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"INGEST_RETRY_DELAY" env-default:"200ms"`
}

// Load reads path (when it exists) and then applies environment overrides.
// An empty path reads the environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			return cfg, cfg.Validate()
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL environment variable not set")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return errors.New("sqlite_path must be set for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.ConnectRetries < 1 {
		return errors.New("connect_retries must be at least 1")
	}
	if c.Store.OpTimeout <= 0 {
		return errors.New("store op_timeout must be positive")
	}
	if c.Ingest.Concurrency < 1 {
		return errors.New("ingest concurrency must be at least 1")
	}
	if c.Ingest.MaxRetries < 0 {
		return errors.New("ingest max_retries must not be negative")
	}
	return nil
}

// Help renders the environment variable reference.
func Help() string {
	desc, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return ""
	}
	return desc
}
