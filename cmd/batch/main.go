// Command batch applies migrations and loads upstream exports into the
// outlook store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"outlook_service/internal/app/config"
	"outlook_service/internal/app/db"
	"outlook_service/internal/app/ingest"
	"outlook_service/internal/app/logger"
	"outlook_service/internal/app/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is what every subcommand needs, built after flag parsing.
type env struct {
	cfg *config.Config
	log *logger.Logger
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		e          env
	)

	cmd := &cobra.Command{
		Use:           "batch",
		Short:         "Outlook data store batch jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogMode)
			if err != nil {
				return err
			}
			e = env{cfg: cfg, log: log}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.log != nil {
				e.log.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "YAML config file; environment variables override it")

	cmd.AddCommand(migrateCmd(&e), ingestCmd(&e), &cobra.Command{
		Use:   "env",
		Short: "Print the supported environment variables",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Help())
		},
	})
	return cmd
}

func migrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Connect(cmd.Context(), e.cfg.Database, e.log)
			if err != nil {
				return err
			}
			return db.Migrate(conn, e.cfg.Database.Driver, e.log)
		},
	}
}

func ingestCmd(e *env) *cobra.Command {
	var summaryPath string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load upstream data into the store",
	}
	cmd.PersistentFlags().StringVar(&summaryPath, "summary", "", "write the run summary as JSON to this file")

	cmd.AddCommand(&cobra.Command{
		Use:   "bundle <file>",
		Short: "Ingest a YAML or JSON bundle of dimensions, programs and outlooks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := ingest.ReadBundleFile(args[0])
			if err != nil {
				return err
			}
			return withRunner(cmd.Context(), e, summaryPath, func(ctx context.Context, r *ingest.Runner) (*ingest.Summary, error) {
				return r.RunBundle(ctx, b)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "html <file...>",
		Short: "Ingest outlooks from saved outlook report pages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var recs []ingest.OutlookRecord
			for _, path := range args {
				page, err := parsePage(path)
				if page == nil && err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err != nil {
					// 一部のレポートが壊れていても、正常なものは取り込む
					e.log.Warn("page partially parsed", "file", path, "error", err)
				}
				recs = append(recs, page...)
			}
			source := filepath.Base(args[0])
			if len(args) > 1 {
				source = fmt.Sprintf("%d pages", len(args))
			}
			return withRunner(cmd.Context(), e, summaryPath, func(ctx context.Context, r *ingest.Runner) (*ingest.Summary, error) {
				return r.RunOutlooks(ctx, source, recs)
			})
		},
	})
	return cmd
}

func parsePage(path string) ([]ingest.OutlookRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.ParseOutlookPage(f)
}

func withRunner(parent context.Context, e *env, summaryPath string, fn func(ctx context.Context, r *ingest.Runner) (*ingest.Summary, error)) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Setup(ctx, e.cfg.Database, e.log)
	if err != nil {
		return err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}

	st := store.New(gdb, e.log, store.WithTimeout(e.cfg.Store.OpTimeout))
	// バッチは短命なのでメトリクスは使わず、サマリで報告する
	runner := ingest.NewRunner(st, e.cfg.Ingest, e.log, nil)

	sum, err := fn(ctx, runner)
	if sum != nil && summaryPath != "" {
		if werr := writeSummary(summaryPath, sum); werr != nil {
			e.log.Error("failed to write summary", "file", summaryPath, "error", werr)
		}
	}
	if err != nil {
		return err
	}
	if n := sum.Failed(); n > 0 {
		return fmt.Errorf("ingest run %s: %d records failed: %w", sum.RunID, n, errors.Join(sum.Errors...))
	}
	return nil
}

func writeSummary(path string, sum *ingest.Summary) error {
	raw, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
