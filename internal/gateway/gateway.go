// ABOUTME: Gateway orchestrator that wires the Plex tools to the configured MCP transport
// ABOUTME: Manages the cache, audit store, HTTP or stdio serving and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/plex-mcp-server/internal/auth"
	"github.com/2389/plex-mcp-server/internal/builtins"
	"github.com/2389/plex-mcp-server/internal/cache"
	"github.com/2389/plex-mcp-server/internal/config"
	"github.com/2389/plex-mcp-server/internal/mcp"
	"github.com/2389/plex-mcp-server/internal/packs"
	"github.com/2389/plex-mcp-server/internal/plex"
	"github.com/2389/plex-mcp-server/internal/store"
)

// ServiceName is reported by /health and the MCP initialize handshake.
const ServiceName = "plex-mcp-server"

// shutdownTimeout bounds the graceful shutdown of the HTTP server.
const shutdownTimeout = 5 * time.Second

// Gateway owns every long-lived component of the server process.
type Gateway struct {
	config *config.Config
	logger *slog.Logger

	plex     *plex.Manager
	registry *packs.Registry
	router   *packs.Router
	cache    cache.Cache
	store    *store.SQLiteStore // nil when auditing is disabled
	verifier auth.TokenVerifier // nil when auth is disabled

	mcpServer   *mcp.Server
	httpServer  *http.Server
	tsnetServer *tsnet.Server

	stdin  io.Reader
	stdout io.Writer
}

// Options overrides process-level collaborators, for tests.
type Options struct {
	Version   string
	PlexTVURL string
	Stdin     io.Reader
	Stdout    io.Writer
}

// initStore opens the audit store when a path is configured.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	if cfg.Audit.Path == "" {
		return nil, nil
	}
	s, err := store.NewSQLiteStore(cfg.Audit.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing audit store: %w", err)
	}
	return s, nil
}

// initVerifier builds the bearer token verifier when a secret is configured.
func initVerifier(cfg *config.Config, logger *slog.Logger) (auth.TokenVerifier, error) {
	if cfg.Auth.JWTSecret == "" {
		if cfg.Server.Transport != config.TransportStdio {
			logger.Warn("auth disabled - no jwt_secret configured")
		}
		return nil, nil
	}
	v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}
	logger.Info("bearer auth enabled")
	return v, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Gateway, error) {
	mgr, err := plex.NewManager(plex.ManagerConfig{
		URL:       cfg.Plex.URL,
		Token:     cfg.Plex.Token,
		PlexTVURL: opts.PlexTVURL,
		RateLimit: cfg.Plex.RateLimit,
		Logger:    logger.With("component", "plex"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating plex manager: %w", err)
	}

	verifier, err := initVerifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	resultCache := cache.New(cache.Config{
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
		RedisAddr:  cfg.Cache.RedisAddr,
		RedisDB:    cfg.Cache.RedisDB,
		Password:   cfg.Cache.RedisPassword,
		Prefix:     ServiceName + ":",
	})

	registry := packs.NewRegistry(logger.With("component", "pack-registry"), cfg.Tier())
	exposed := builtins.RegisterAll(registry, mgr, logger.With("component", "tools"), cfg.Plex.Username)
	logger.Info("tools registered", "count", exposed, "permissions", cfg.Tier().String())

	routerCfg := packs.RouterConfig{
		Registry: registry,
		Logger:   logger.With("component", "pack-router"),
		Timeout:  cfg.Tools.Timeout,
		Cache:    resultCache,
	}
	if s != nil {
		routerCfg.Audit = s
	}
	router := packs.NewRouter(routerCfg)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Registry: registry,
		Router:   router,
		Logger:   logger.With("component", "mcp"),
		Name:     ServiceName,
		Version:  opts.Version,
	})
	if err != nil {
		if s != nil {
			_ = s.Close()
		}
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	gw := &Gateway{
		config:    cfg,
		logger:    logger.With("component", "gateway"),
		plex:      mgr,
		registry:  registry,
		router:    router,
		cache:     resultCache,
		store:     s,
		verifier:  verifier,
		mcpServer: mcpServer,
		stdin:     opts.Stdin,
		stdout:    opts.Stdout,
	}
	if gw.stdin == nil {
		gw.stdin = os.Stdin
	}
	if gw.stdout == nil {
		gw.stdout = os.Stdout
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return gw, nil
}

// Registry returns the tool registry.
func (g *Gateway) Registry() *packs.Registry {
	return g.registry
}

// Run serves the configured transport until ctx is canceled or the
// transport ends, then shuts down.
func (g *Gateway) Run(ctx context.Context) error {
	var runErr error
	if g.config.Server.Transport == config.TransportStdio {
		runErr = g.mcpServer.ServeStdio(ctx, g.stdin, g.stdout)
	} else {
		ln, err := g.setupListener(ctx)
		if err != nil {
			g.closeComponents()
			return err
		}
		runErr = g.Serve(ctx, ln)
	}

	shutdownErr := g.gracefulShutdown()
	if runErr != nil {
		return runErr
	}
	return shutdownErr
}

// Serve runs the HTTP server on ln until ctx is canceled or the server
// fails. It does not release the other components; Run does.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening",
			"addr", ln.Addr().String(),
			"transport", g.config.Server.Transport,
		)
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// SSE streams never finish on their own
		if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
			g.logger.Warn("graceful HTTP shutdown timed out, closing connections", "error", err)
			_ = g.httpServer.Close()
		}
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// setupListener creates the TCP or tailnet listener for the HTTP transports.
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		return g.setupTailscaleListener(ctx)
	}
	ln, err := net.Listen("tcp", g.config.Addr())
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", g.config.Addr(), err)
	}
	return ln, nil
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeComponents releases everything except the HTTP server.
func (g *Gateway) closeComponents() []error {
	var errs []error
	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	if g.cache != nil {
		errs = appendCloseError(errs, "cache close", g.cache.Close())
	}
	if g.store != nil {
		errs = appendCloseError(errs, "store close", g.store.Close())
	}
	g.registry.Close()
	return errs
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = append(errs, g.closeComponents()...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
