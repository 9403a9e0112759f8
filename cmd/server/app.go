package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/bugstars/chat-relay/internal/config"
	"github.com/bugstars/chat-relay/internal/platform/postgres"
	"github.com/bugstars/chat-relay/internal/scheduler"
	"github.com/bugstars/chat-relay/internal/service"
	"github.com/bugstars/chat-relay/internal/store"
	"github.com/bugstars/chat-relay/internal/stream"
	"github.com/bugstars/chat-relay/internal/upstream"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	conversationStore store.ConversationStore

	sched      *scheduler.Scheduler
	fetcher    *upstream.Fetcher
	translator *stream.Translator

	conversationService service.ConversationService
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies that must be established before
// application initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.conversationStore = postgres.NewPostgresConversationStore(db, logger)

	app.sched = scheduler.New(scheduler.Config{
		MaxConcurrent: cfg.Scheduler.MaxConcurrent,
		MaxRetries:    cfg.Scheduler.MaxRetries,
	}, logger)
	logger.Info("Task scheduler initialized",
		"max_concurrent", cfg.Scheduler.MaxConcurrent,
		"max_retries", cfg.Scheduler.MaxRetries)

	app.fetcher = upstream.NewFetcher(
		cfg.Upstream.BaseURL,
		cfg.Upstream.Timeout,
		logger.With("component", "upstream_fetcher"),
	)
	app.translator = stream.NewTranslator(app.fetcher, logger)

	var err error
	app.conversationService, err = service.NewConversationService(
		app.conversationStore,
		app.sched,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation service: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	// Let in-flight background persistence finish before the pool closes.
	if app.sched != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.sched.Stop(stopCtx); err != nil {
			app.logger.Error("Scheduler did not drain in time", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
