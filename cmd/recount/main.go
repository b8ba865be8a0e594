// Command recount repairs like counters from their membership keys.
//
// Run it against the same store the server uses:
//
//	recount -config blog-edge.toml -dry-run
//
// The report is printed to stdout as JSON; logs go to stderr. The exit status
// is non-zero when the run fails part way.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/blog-edge/internal/config"
	"github.com/sakif/blog-edge/internal/repository/backend"
	"github.com/sakif/blog-edge/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "recount:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv(config.EnvConfigFile), "path to a TOML config file")
	dryRun := flag.Bool("dry-run", false, "report drift without rewriting counters")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateStore(); err != nil {
		return err
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	defer store.Close()

	reconciler := service.NewReconciler(store, cfg.Store.Timeout, cfg.Recount.Concurrency, logger).
		WithScanTimeout(cfg.Recount.ScanTimeout)
	report, err := reconciler.Recount(ctx, *dryRun)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
