// ABOUTME: HTTP gateway wiring for strand-gateway
// ABOUTME: Builds the route table, applies CORS, and runs the server with graceful shutdown

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/strand-gateway/internal/config"
	"github.com/2389/strand-gateway/internal/thread"
)

// Gateway exposes the thread lifecycle operations over HTTP.
type Gateway struct {
	threads *thread.Service
	server  *http.Server
	logger  *slog.Logger
}

// New creates a Gateway serving the given thread service.
func New(cfg *config.Config, threads *thread.Service, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		threads: threads,
		logger:  logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", g.handleHealth)
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/api/threads", g.handleListThreads)
	mux.HandleFunc("/api/thread/", g.handleThreadRoutes)
	mux.HandleFunc("/api/search", g.handleSearch)
	mux.HandleFunc("/api/chat", g.handleChat)

	g.server = &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: corsMiddleware(mux),
	}
	return g
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully with a fresh timeout context.
func (g *Gateway) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", g.server.Addr)
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.server.Shutdown(shutdownCtx)
}

// Handler returns the gateway's HTTP handler, for tests.
func (g *Gateway) Handler() http.Handler {
	return g.server.Handler
}

// corsMiddleware allows cross-origin access from any frontend origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth handles GET / and GET /health as liveness probes.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/health" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
