// Command pricefeed maintains a local daily OHLCV dataset: it fetches raw
// prices from the configured sources, stores every ingested version, and
// exports a canonical per-instrument series.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"

	"pricefeed/internal/slogx"
)

func init() {
	slog.SetDefault(slogx.NewDefault("info"))
}

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&updateCmd{}, "")
	subcommands.Register(&exportCmd{}, "")
	subcommands.Register(&rebuildCmd{}, "")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := subcommands.Execute(ctx)
	stop()
	os.Exit(int(status))
}
