// ABOUTME: Configuration loading and parsing for plex-mcp-server
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/plex-mcp-server/internal/auth"
	"github.com/2389/plex-mcp-server/internal/tier"
)

// Transports accepted by server.transport.
const (
	TransportSSE        = "sse"
	TransportStreamable = "streamable-http"
	TransportStdio      = "stdio"
)

// Transports lists the accepted transport names.
var Transports = []string{TransportSSE, TransportStreamable, TransportStdio}

// ErrUnsupportedFormat is returned for config files that are neither YAML nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported config file format")

// Config represents the complete plex-mcp-server configuration
type Config struct {
	Plex      PlexConfig      `yaml:"plex" toml:"plex"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tools     ToolsConfig     `yaml:"tools" toml:"tools"`
	Cache     CacheConfig     `yaml:"cache" toml:"cache"`
	Audit     AuditConfig     `yaml:"audit" toml:"audit"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// PlexConfig holds the media server connection settings
type PlexConfig struct {
	URL       string  `yaml:"url" toml:"url"`
	Token     string  `yaml:"token" toml:"token"`
	Username  string  `yaml:"username" toml:"username"`
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"` // requests per second, 0 = unlimited
}

// ServerConfig holds the listening address, transport and exposure tier
type ServerConfig struct {
	Host        string `yaml:"host" toml:"host"`
	Port        int    `yaml:"port" toml:"port"`
	Transport   string `yaml:"transport" toml:"transport"`
	Permissions string `yaml:"permissions" toml:"permissions"`
}

// ToolsConfig holds tool execution settings
type ToolsConfig struct {
	Timeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for file unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// CacheConfig holds the read-result cache settings. A zero TTL disables it.
type CacheConfig struct {
	TTL time.Duration `yaml:"-" toml:"-"`

	TTLRaw        string `yaml:"ttl" toml:"ttl"`
	MaxEntries    int    `yaml:"max_entries" toml:"max_entries"`
	RedisAddr     string `yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword string `yaml:"redis_password" toml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" toml:"redis_db"`
}

// AuditConfig holds the mutation audit log settings. An empty path disables it.
type AuditConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when nothing overrides a field.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			Transport:   TransportSSE,
			Permissions: tier.Read.String(),
		},
		Tools:   ToolsConfig{Timeout: 60 * time.Second},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file on top of the defaults. The format is
// chosen by extension: .yaml/.yml or .toml. Environment variables in the
// format ${VAR_NAME} are expanded. Load does not validate; flags and
// environment may still fill required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal([]byte(expanded), cfg)
	case ".toml":
		_, err = toml.Decode(expanded, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// Addr returns the host:port the HTTP transports listen on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Tier returns the parsed exposure tier. Validate has already rejected
// unknown names.
func (c *Config) Tier() tier.Tier {
	t, _ := tier.Parse(c.Server.Permissions)
	return t
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Plex.URL == "" {
		return fmt.Errorf("plex.url is required (--plex-url or PLEX_URL)")
	}
	if c.Plex.Token == "" {
		return fmt.Errorf("plex.token is required (--plex-token or PLEX_TOKEN)")
	}
	if c.Plex.RateLimit < 0 {
		return fmt.Errorf("plex.rate_limit must not be negative")
	}

	if _, err := tier.Parse(c.Server.Permissions); err != nil {
		return fmt.Errorf("server.permissions: %w", err)
	}
	if !slices.Contains(Transports, c.Server.Transport) {
		return fmt.Errorf("server.transport %q is not one of %s", c.Server.Transport, strings.Join(Transports, ", "))
	}
	if c.Server.Transport != TransportStdio || c.Tailscale.Enabled {
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return fmt.Errorf("server.port %d is out of range 1-65535", c.Server.Port)
		}
	}

	if c.Tools.Timeout < 0 {
		return fmt.Errorf("tools.timeout must not be negative")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}

	if s := c.Auth.JWTSecret; s != "" && len(s) < auth.MinSecretLength {
		return fmt.Errorf("auth.jwt_secret: %w", auth.ErrWeakSecret)
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Tools.TimeoutRaw != "" {
		cfg.Tools.Timeout, err = time.ParseDuration(cfg.Tools.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing tools.timeout %q: %w", cfg.Tools.TimeoutRaw, err)
		}
	}

	if cfg.Cache.TTLRaw != "" {
		cfg.Cache.TTL, err = time.ParseDuration(cfg.Cache.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache.ttl %q: %w", cfg.Cache.TTLRaw, err)
		}
	}

	return nil
}

// MaskToken hides all but the last four characters of a secret for display.
func MaskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
