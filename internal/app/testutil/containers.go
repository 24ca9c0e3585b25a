package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"outlook_service/internal/app/config"
)

const postgresImage = "postgres:16-alpine"

var (
	pgOnce sync.Once
	pgURL  string
	pgErr  error
)

// PostgresDB returns a migrated, empty database in a Postgres container
// shared by the whole test binary. Skipped with -short or without Docker.
func PostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	pgOnce.Do(func() {
		pgURL, pgErr = startPostgres()
	})
	if pgErr != nil {
		t.Fatalf("Failed to start postgres container: %v", pgErr)
	}

	cfg := DatabaseConfig(t)
	cfg.Driver = config.DriverPostgres
	cfg.URL = pgURL
	cfg.MaxOpenConns = 10
	cfg.ConnectRetries = 10
	cfg.ConnectInterval = 500 * time.Millisecond
	return Open(t, cfg)
}

func startPostgres() (string, error) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "outlook_test",
			"POSTGRES_USER":     "outlook",
			"POSTGRES_PASSWORD": "test_password",
		},
		// the entrypoint restarts the server once after initdb
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("failed to get container port: %w", err)
	}
	return fmt.Sprintf("postgres://outlook:test_password@%s:%s/outlook_test?sslmode=disable", host, port.Port()), nil
}
