package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"outlook_service/internal/app/config"
	"outlook_service/internal/app/db"
	"outlook_service/internal/app/logger"
	"outlook_service/internal/app/model"
)

var tables = []string{"outlooks", "programs", "program_areas", "sections", "economic_regions", "unit_groups"}

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.Nop()
}

// DatabaseConfig returns a config for a fresh SQLite file in a temp dir, or
// for Postgres when TEST_DATABASE_URL is set.
func DatabaseConfig(tb testing.TB) config.DatabaseConfig {
	tb.Helper()
	cfg := config.DatabaseConfig{
		Driver:          config.DriverSQLite,
		SQLitePath:      filepath.Join(tb.TempDir(), "outlook.db"),
		ConnectRetries:  1,
		ConnectInterval: 10 * time.Millisecond,
		SlowThreshold:   time.Second,
	}
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		cfg.Driver = config.DriverPostgres
		cfg.URL = dsn
		cfg.MaxOpenConns = 10
	}
	return cfg
}

// DB returns a migrated, empty database.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	return Open(tb, DatabaseConfig(tb))
}

// Open migrates the database described by cfg and empties every table.
func Open(tb testing.TB, cfg config.DatabaseConfig) *gorm.DB {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gdb, err := db.Setup(ctx, cfg, Logger(tb))
	if err != nil {
		tb.Fatalf("DB接続失敗: %v", err)
	}
	tb.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if cfg.Driver == config.DriverPostgres {
		// packages share the database, run with -p 1 against Postgres
		if err := gdb.Exec("TRUNCATE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE").Error; err != nil {
			tb.Fatalf("truncate: %v", err)
		}
	}
	return gdb
}

func SeedUnitGroup(tb testing.TB, ctx context.Context, tx *gorm.DB, noc, occupation string) *model.UnitGroup {
	tb.Helper()
	ug := &model.UnitGroup{NOC: noc, Occupation: occupation}
	if err := tx.WithContext(ctx).Create(ug).Error; err != nil {
		tb.Fatalf("seed unit group: %v", err)
	}
	return ug
}

func SeedEconomicRegion(tb testing.TB, ctx context.Context, tx *gorm.DB, code, name string) *model.EconomicRegion {
	tb.Helper()
	er := &model.EconomicRegion{Code: code, Name: name}
	if err := tx.WithContext(ctx).Create(er).Error; err != nil {
		tb.Fatalf("seed economic region: %v", err)
	}
	return er
}

func SeedProgramArea(tb testing.TB, ctx context.Context, tx *gorm.DB, title string) *model.ProgramArea {
	tb.Helper()
	pa := &model.ProgramArea{Title: title}
	if err := tx.WithContext(ctx).Create(pa).Error; err != nil {
		tb.Fatalf("seed program area: %v", err)
	}
	return pa
}

func SeedProgram(tb testing.TB, ctx context.Context, tx *gorm.DB, nid int, areaID uint) *model.Program {
	tb.Helper()
	p := &model.Program{
		NID:            nid,
		Title:          "program",
		Keywords:       []string{},
		NOC:            []string{},
		KnownNOCGroups: []string{},
		Credential:     model.CredentialDiploma,
		ProgramAreaID:  areaID,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed program: %v", err)
	}
	return p
}

func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
