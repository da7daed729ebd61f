// ABOUTME: Connection Manager: lazily established, auto-renewing Plex handle.
// ABOUTME: Probes identity and library sections, caches for StaleAfter, retries after failure.

package plex

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// StaleAfter is how long an established handle is reused before the next
	// Acquire re-probes the server.
	StaleAfter = 1800 * time.Second

	// ConnectTimeout bounds the establishment probe and the TCP dial of every
	// request.
	ConnectTimeout = 5 * time.Second
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	URL       string
	Token     string
	PlexTVURL string

	// RateLimit caps requests per second to the server. Zero disables it.
	RateLimit float64

	// HTTPClient overrides the default client built from the settings above.
	HTTPClient *http.Client
	Logger     *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Manager owns the single connection handle shared by every tool.
type Manager struct {
	endpoint string
	token    string
	tvURL    string
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time

	// mu guards server and lastConnect. It is never held across the probe,
	// so concurrent establishments race and the last writer wins.
	mu          sync.Mutex
	server      *Server
	lastConnect time.Time
}

// NewManager creates a Manager. No network traffic happens until Acquire.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.URL == "" {
		return nil, errors.New("plex url is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("plex token is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	client := cfg.HTTPClient
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = (&net.Dialer{Timeout: ConnectTimeout}).DialContext
		transport.TLSHandshakeTimeout = ConnectTimeout

		var rt http.RoundTripper = transport
		if cfg.RateLimit > 0 {
			burst := int(cfg.RateLimit)
			if burst < 1 {
				burst = 1
			}
			rt = &rateLimitedTransport{base: transport, limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)}
		}
		client = &http.Client{Transport: rt}
	}

	return &Manager{
		endpoint: cfg.URL,
		token:    cfg.Token,
		tvURL:    cfg.PlexTVURL,
		client:   client,
		logger:   logger,
		now:      now,
	}, nil
}

// Endpoint returns the configured server address.
func (m *Manager) Endpoint() string { return m.endpoint }

// Acquire returns a live handle, establishing one when none exists or the
// current one is older than StaleAfter. Failures return *ConnectionError and
// leave the manager without a handle so the next call retries.
func (m *Manager) Acquire(ctx context.Context) (*Server, error) {
	m.mu.Lock()
	srv, last := m.server, m.lastConnect
	m.mu.Unlock()

	if srv != nil && m.now().Sub(last) <= StaleAfter {
		return srv, nil
	}

	fresh, err := m.connect(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.server = nil
		m.lastConnect = time.Time{}
		m.logger.Error("plex connection failed", "endpoint", m.endpoint, "error", err)
		return nil, &ConnectionError{Endpoint: m.endpoint, Err: err}
	}

	m.server = fresh
	m.lastConnect = m.now()
	m.logger.Info("connected to plex server",
		"endpoint", m.endpoint,
		"name", fresh.identity.FriendlyName,
		"version", fresh.identity.Version,
	)
	return fresh, nil
}

// connect probes the endpoint: server identity first, then the section list.
func (m *Manager) connect(ctx context.Context) (*Server, error) {
	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	m.logger.Debug("probing plex server", "endpoint", m.endpoint)

	srv := newServer(m.endpoint, m.token, m.tvURL, m.client)
	identity, err := srv.fetchIdentity(ctx)
	if err != nil {
		return nil, err
	}
	srv.identity = identity

	if _, err := srv.Sections(ctx); err != nil {
		return nil, err
	}
	return srv, nil
}
