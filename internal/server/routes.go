package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /projects", h.CreateProject)
	mux.HandleFunc("DELETE /projects/{id}", h.DeleteProject)
	mux.HandleFunc("POST /projects/{id}/assets", h.CreateAsset)
	mux.HandleFunc("POST /projects/{id}/scenes", h.CreateScene)
	mux.HandleFunc("GET /projects/{id}/scenes", h.ListScenes)
	mux.HandleFunc("GET /scenes/{id}", h.GetScene)
	mux.HandleFunc("POST /scenes/{id}/generate", h.GenerateScene)
	mux.HandleFunc("POST /scenes/{id}/cancel", h.CancelScene)
	mux.HandleFunc("POST /scenes/{id}/recover", h.RecoverScene)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
