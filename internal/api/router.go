package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/quizmatch/internal/api/handler"
	"github.com/mcoot/quizmatch/internal/api/middleware"
	basemiddleware "github.com/mcoot/quizmatch/internal/middleware"
	"github.com/mcoot/quizmatch/internal/services/match"
	"github.com/mcoot/quizmatch/internal/services/registry"
	"github.com/mcoot/quizmatch/internal/storage"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger       *slog.Logger
	Registry     *registry.Registry
	Matches      *match.Controller
	Session      handler.Session
	Storage      storage.Storage
	PasswordHash []byte
	// WebSocket serves /ws when set
	WebSocket http.Handler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	matchHandler := handler.NewMatchHandler(cfg.Registry, cfg.Matches, cfg.Session, cfg.PasswordHash, cfg.Logger)
	historyHandler := handler.NewHistoryHandler(cfg.Matches, cfg.Storage, cfg.Logger)

	// Create middleware
	loggingMiddleware := basemiddleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Match list routes
	api.HandleFunc("/matches", matchHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/matches", matchHandler.DeleteAll).Methods(http.MethodDelete)
	api.HandleFunc("/matches/join-match", matchHandler.Join).Methods(http.MethodPost)

	// Saved history
	api.HandleFunc("/matches/history", historyHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/matches/history", historyHandler.Clear).Methods(http.MethodDelete)

	// Single match routes. Fixed paths are registered before {code}.
	matches := api.PathPrefix("/matches/match").Subrouter()
	matches.HandleFunc("", matchHandler.Create).Methods(http.MethodPost)
	matches.HandleFunc("/player", matchHandler.AddPlayer).Methods(http.MethodPost)
	matches.HandleFunc("/playerNameValidity", matchHandler.PlayerNameValidity).Methods(http.MethodPost)
	matches.HandleFunc("/validity/{code}", matchHandler.Validity).Methods(http.MethodGet)
	matches.HandleFunc("/accessibility/{code}", matchHandler.Accessibility).Methods(http.MethodGet)
	matches.HandleFunc("/accessibility/{code}", matchHandler.ToggleAccessibility).Methods(http.MethodPatch)
	matches.HandleFunc("/{code}/history", historyHandler.Save).Methods(http.MethodPost)
	matches.HandleFunc("/{code}", matchHandler.Get).Methods(http.MethodGet)
	matches.HandleFunc("/{code}", matchHandler.Delete).Methods(http.MethodDelete)

	// Health check endpoint
	api.HandleFunc("/health", handler.Health(cfg.Registry)).Methods(http.MethodGet)

	// The websocket upgrade sits outside the subrouter so the logging
	// middleware does not hold the hijacked connection.
	if cfg.WebSocket != nil {
		r.Handle("/ws", recoveryMiddleware(cfg.WebSocket))
	}

	return r
}
