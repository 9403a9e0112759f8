package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bugstars/chat-relay/internal/api"
	apiMiddleware "github.com/bugstars/chat-relay/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware. Returns the configured router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	chatHandler := api.NewChatHandler(app.conversationService, app.translator, app.logger)
	conversationHandler := api.NewConversationHandler(app.conversationService, app.logger)

	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/generate", chatHandler.Generate)

		r.Get("/conversations", conversationHandler.List)
		r.Get("/conversations/{sessionID}/history", conversationHandler.History)
		r.Delete("/conversations/{sessionID}", conversationHandler.Delete)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
