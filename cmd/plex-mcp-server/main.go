// ABOUTME: Entry point for plex-mcp-server
// ABOUTME: Parses flags and environment, loads config and dispatches subcommands

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/2389/plex-mcp-server/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
        _                                            
  _ __ | | _____  __     _ __ ___   ___ _ __  
 | '_ \| |/ _ \ \/ /____| '_ ' _ \ / __| '_ \ 
 | |_) | |  __/>  <_____| | | | | | (__| |_) |
 | .__/|_|\___/_/\_\    |_| |_| |_|\___| .__/ 
 |_|                                   |_|    
`

// options are the global flags. Every flag has an environment equivalent and
// overrides the config file when set.
type options struct {
	Config       string        `long:"config" env:"PLEX_MCP_CONFIG" description:"YAML or TOML config file"`
	PlexURL      string        `long:"plex-url" env:"PLEX_URL" description:"Plex server URL"`
	PlexToken    string        `long:"plex-token" env:"PLEX_TOKEN" description:"Plex authentication token"`
	PlexUsername string        `long:"plex-username" env:"PLEX_USERNAME" description:"Plex username reported as the owner"`
	Permissions  string        `long:"permissions" env:"PERMISSIONS" description:"Exposed tool tier: read, write or delete"`
	Host         string        `long:"host" env:"HOST" description:"Listen host"`
	Port         int           `long:"port" env:"PORT" description:"Listen port"`
	Transport    string        `long:"transport" env:"TRANSPORT" description:"Transport: sse, streamable-http or stdio"`
	Debug        bool          `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogFormat    string        `long:"log-format" env:"LOG_FORMAT" description:"Log format: text or json"`
	AuditDB      string        `long:"audit-db" env:"AUDIT_DB" description:"SQLite audit log path"`
	CacheTTL     time.Duration `long:"cache-ttl" env:"CACHE_TTL" description:"Read result cache TTL, 0 disables"`
	RedisAddr    string        `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for a shared cache"`
	AuthSecret   string        `long:"auth-secret" env:"AUTH_SECRET" description:"HS256 secret enabling bearer auth"`
}

// app carries state shared by the subcommands.
type app struct {
	ctx  context.Context
	opts options
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{ctx: ctx}
	parser := flags.NewParser(&a.opts, flags.Default)
	parser.SubcommandsOptional = true
	parser.LongDescription = "Exposes a Plex Media Server as MCP tools over SSE, streamable HTTP or stdio."

	commands := []struct {
		name, short string
		data        any
	}{
		{"serve", "Start the MCP server (default)", &serveCommand{app: a}},
		{"health", "Check the health endpoint of a running server", &healthCommand{app: a}},
		{"audit", "Print recent audited tool calls", &auditCommand{app: a}},
		{"token", "Generate a bearer token for MCP clients", &tokenCommand{app: a}},
		{"version", "Print the version", &versionCommand{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.short, c.data); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	_, err := parser.Parse()
	if err == nil && parser.Active == nil {
		err = a.serve()
	}
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
			// go-flags already printed the message.
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig builds the effective configuration: defaults, then the config
// file if one is given, then flags and environment.
func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	applyOverrides(cfg, opts)
	return cfg, nil
}

func applyOverrides(cfg *config.Config, opts *options) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&cfg.Plex.URL, opts.PlexURL)
	setString(&cfg.Plex.Token, opts.PlexToken)
	setString(&cfg.Plex.Username, opts.PlexUsername)
	setString(&cfg.Server.Permissions, opts.Permissions)
	setString(&cfg.Server.Host, opts.Host)
	setString(&cfg.Server.Transport, opts.Transport)
	setString(&cfg.Logging.Format, opts.LogFormat)
	setString(&cfg.Audit.Path, opts.AuditDB)
	setString(&cfg.Cache.RedisAddr, opts.RedisAddr)
	setString(&cfg.Auth.JWTSecret, opts.AuthSecret)

	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	if opts.CacheTTL != 0 {
		cfg.Cache.TTL = opts.CacheTTL
	}
	if opts.Debug {
		cfg.Logging.Level = "debug"
	}
}
