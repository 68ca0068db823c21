package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/google/subcommands"

	"pricefeed/internal/app"
	"pricefeed/internal/config"
	"pricefeed/internal/export"
	"pricefeed/internal/slogx"
)

// initApp builds the application and switches logging to the configured level.
func initApp(path string) (*App, func(), error) {
	a, cleanup, err := InitializeApp(app.ConfigPath(path))
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(slogx.NewDefault(a.Config.LogLevel))
	return a, cleanup, nil
}

type updateCmd struct {
	configPath string
	workers    int
}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "fetch the latest daily prices for every instrument" }
func (*updateCmd) Usage() string {
	return `update [-config pricefeed.yaml] [-workers N]:
  Fetch daily OHLCV for the whole instrument universe and append new records
  to the raw store. Exits non-zero when any instrument fails.
`
}

func (c *updateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "pricefeed.yaml", "configuration file")
	f.IntVar(&c.workers, "workers", 0, "worker pool size, overrides config when > 0")
}

func (c *updateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, cleanup, err := initApp(c.configPath)
	if err != nil {
		slog.Error("initialization failed", "error", err)
		return subcommands.ExitFailure
	}
	defer cleanup()
	a.Updater.SetWorkers(c.workers)

	return runUpdate(ctx, a)
}

func runUpdate(ctx context.Context, a *App) subcommands.ExitStatus {
	report, err := a.Updater.Run(ctx)
	if err != nil {
		slog.Error("update run aborted", "error", err)
		return subcommands.ExitFailure
	}
	for _, o := range report.Failures() {
		slog.Error("instrument failed", "instrument", o.Instrument, "error", o.Error)
	}
	if report.Failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type exportCmd struct {
	configPath string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "build and write the canonical OHLCV dataset" }
func (*exportCmd) Usage() string {
	return `export [-config pricefeed.yaml]:
  Canonicalize the raw store into one series per instrument and write it
  atomically as a Parquet file.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "pricefeed.yaml", "configuration file")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, cleanup, err := initApp(c.configPath)
	if err != nil {
		slog.Error("initialization failed", "error", err)
		return subcommands.ExitFailure
	}
	defer cleanup()

	return runExport(ctx, a)
}

func runExport(ctx context.Context, a *App) subcommands.ExitStatus {
	snapshot, err := a.Store.Snapshot(ctx)
	if err != nil {
		slog.Error("raw store unreadable", "error", err)
		return subcommands.ExitFailure
	}

	result := a.Canonicalizer.Build(snapshot)
	dest := a.Config.CanonicalFile()
	if err := export.Write(result.Bars, dest); err != nil {
		slog.Error("export failed", "path", dest, "error", err)
		return subcommands.ExitFailure
	}
	slog.Info("canonical dataset exported", "path", dest, "rows", len(result.Bars), "dropped", result.Dropped)
	return subcommands.ExitSuccess
}

type rebuildCmd struct {
	configPath string
}

func (*rebuildCmd) Name() string     { return "rebuild" }
func (*rebuildCmd) Synopsis() string { return "discard local data and refetch everything" }
func (*rebuildCmd) Usage() string {
	return `rebuild [-config pricefeed.yaml]:
  Delete the raw store and the canonical dataset, then run a full update
  followed by an export.
`
}

func (c *rebuildCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "pricefeed.yaml", "configuration file")
}

func (c *rebuildCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	// Remove data files before the store is opened, so the update starts
	// from an empty database.
	cfg, err := config.Load(c.configPath)
	if err != nil {
		slog.Error("initialization failed", "error", err)
		return subcommands.ExitFailure
	}
	rawDB := cfg.RawDBPath()
	for _, path := range []string{rawDB, rawDB + "-wal", rawDB + "-shm", cfg.CanonicalFile()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Error("could not remove", "path", path, "error", err)
			return subcommands.ExitFailure
		}
	}
	slog.Info("local data removed, refetching full history")

	a, cleanup, err := initApp(c.configPath)
	if err != nil {
		slog.Error("initialization failed", "error", err)
		return subcommands.ExitFailure
	}
	defer cleanup()

	if status := runUpdate(ctx, a); status != subcommands.ExitSuccess {
		return status
	}
	return runExport(ctx, a)
}
