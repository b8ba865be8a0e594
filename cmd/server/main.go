// Package main is the entry point for the blog edge API server.
//
// The main package stays minimal. Its job is to:
// 1. Read configuration (TOML file + BLOGEDGE_* environment variables)
// 2. Create dependencies (logger, key-value store)
// 3. Start the application
//
// All actual logic lives in internal/server, internal/service and friends.
// cmd/recount is the second executable: it repairs like counters offline.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/sakif/blog-edge/internal/config"
	"github.com/sakif/blog-edge/internal/repository/backend"
	"github.com/sakif/blog-edge/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvConfigFile), "path to a TOML config file")
	flag.Parse()

	// === 1. READ CONFIGURATION ===
	// Defaults, then the file, then the environment. Validate reports every
	// problem at once so a fresh deployment can be fixed in one pass.
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger, err := newLogger(cfg.Log)
	if err != nil {
		slog.Error("failed to set up logging", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// === 3. OPEN THE STORE ===
	// The server refuses to start against a store it cannot reach.
	store, err := backend.Open(context.Background(), cfg.Store)
	if err != nil {
		logger.Error("failed to open store",
			slog.String("backend", cfg.Store.Backend),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, store, logger)
	if err != nil {
		store.Close()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newLogger builds the slog logger described by the log section.
func newLogger(cfg config.Log) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}
