// ABOUTME: HTTP routing for the gateway: health endpoints plus the MCP transports.
// ABOUTME: chi middleware supplies request ids, real client IPs, panic recovery and access logs.

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389/plex-mcp-server/internal/auth"
)

// readyTimeout bounds the Plex probe behind /health/ready.
const readyTimeout = 10 * time.Second

// Handler builds the HTTP handler. /health endpoints never require auth.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(g.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", g.handleHealth)
	r.Get("/health/ready", g.handleReady)

	r.Group(func(r chi.Router) {
		r.Use(auth.BearerMiddleware(g.verifier, g.logger))
		g.mcpServer.RegisterRoutes(r)
	})

	return r
}

// requestLogger logs one line per request once the handler returns. SSE
// streams are logged when they close.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"remote", r.RemoteAddr,
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handleHealth reports liveness. It does not contact Plex.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": ServiceName,
	})
}

// handleReady reports whether the Plex server can be reached.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	srv, err := g.plex.Acquire(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unavailable",
			"service": ServiceName,
			"error":   err.Error(),
		})
		return
	}
	id := srv.Identity()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"service":      ServiceName,
		"plex_server":  id.FriendlyName,
		"plex_version": id.Version,
		"tools":        g.registry.Len(),
	})
}
