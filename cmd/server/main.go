// Package main implements the entry point for the chat relay server, which
// bridges browser chat clients to the upstream generation endpoint and keeps
// the conversation history.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/bugstars/chat-relay/internal/config"
	"github.com/bugstars/chat-relay/internal/platform/logger"
)

// main wires configuration, logging, the database and the application
// together, then runs the HTTP server until it is signalled to stop.
func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
	os.Exit(0)
}

// run holds the real startup sequence so main stays trivially small and the
// sequence stays testable.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"upstream_base_url", cfg.Upstream.BaseURL)

	db, err := setupDatabase(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	if err := runMigrations(db, appLogger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
