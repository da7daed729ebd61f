// ABOUTME: Subcommands: serve, health, audit, token and version
// ABOUTME: Each command loads the effective config the same way serve does

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/plex-mcp-server/internal/auth"
	"github.com/2389/plex-mcp-server/internal/config"
	"github.com/2389/plex-mcp-server/internal/gateway"
	"github.com/2389/plex-mcp-server/internal/store"
)

type serveCommand struct{ app *app }

func (c *serveCommand) Execute([]string) error { return c.app.serve() }

func (a *app) serve() error {
	cfg, err := loadConfig(&a.opts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stderr)
	printBanner(os.Stderr, cfg, a.opts.Config)

	logger.Info("starting plex-mcp-server",
		"version", version,
		"transport", cfg.Server.Transport,
		"permissions", cfg.Server.Permissions,
		"plex_url", cfg.Plex.URL,
	)

	gw, err := gateway.New(cfg, logger, gateway.Options{Version: version})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	return gw.Run(a.ctx)
}

// printBanner writes the startup summary. It goes to stderr so stdout stays
// free for the stdio transport.
func printBanner(w io.Writer, cfg *config.Config, configPath string) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(w, banner)
	gray.Fprintf(w, "    version: %s\n\n", version)

	line := func(label, value string) {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "%-12s %s\n", label+":", value)
	}
	if configPath != "" {
		line("Config", configPath)
	}
	line("Plex", cfg.Plex.URL)
	line("Token", config.MaskToken(cfg.Plex.Token))
	line("Permissions", cfg.Server.Permissions)
	if cfg.Server.Transport == config.TransportStdio {
		line("Transport", "stdio")
	} else {
		line("Transport", cfg.Server.Transport+" on "+cfg.Addr())
	}
	if cfg.Cache.TTL > 0 {
		backend := "memory"
		if cfg.Cache.RedisAddr != "" {
			backend = "redis " + cfg.Cache.RedisAddr
		}
		line("Cache", cfg.Cache.TTL.String()+" ("+backend+")")
	}
	if cfg.Audit.Path != "" {
		line("Audit", cfg.Audit.Path)
	}
	if cfg.Auth.JWTSecret != "" {
		line("Auth", "bearer (HS256)")
	}
	if cfg.Tailscale.Enabled {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "%-12s ", "Tailscale:")
		cyan.Fprint(w, cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			yellow.Fprint(w, " (ephemeral)")
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

type healthCommand struct{ app *app }

func (c *healthCommand) Execute([]string) error {
	cfg, err := loadConfig(&c.app.opts)
	if err != nil {
		return err
	}
	if cfg.Server.Transport == config.TransportStdio {
		return errors.New("health check needs an HTTP transport")
	}

	ctx, cancel := context.WithTimeout(c.app.ctx, 10*time.Second)
	defer cancel()

	url := "http://" + healthAddr(cfg) + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	fmt.Println("healthy")
	return nil
}

// healthAddr returns a dialable address for the configured listener.
func healthAddr(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
}

type auditCommand struct {
	app *app

	Tool    string `long:"tool" description:"Only calls of this tool"`
	Limit   int    `long:"limit" default:"20" description:"Maximum entries to print"`
	Summary bool   `long:"summary" description:"Print per-tool totals instead of entries"`
	JSON    bool   `long:"json" description:"Print JSON instead of a table"`
}

func (c *auditCommand) Execute([]string) error {
	cfg, err := loadConfig(&c.app.opts)
	if err != nil {
		return err
	}
	if cfg.Audit.Path == "" {
		return errors.New("audit log not configured (set --audit-db or audit.path)")
	}

	s, err := store.NewSQLiteStore(cfg.Audit.Path)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer s.Close()

	if c.Summary {
		summaries, err := s.Summarize(c.app.ctx)
		if err != nil {
			return fmt.Errorf("summarizing audit log: %w", err)
		}
		if c.JSON {
			return writeJSON(os.Stdout, summaries)
		}
		return printSummaries(os.Stdout, summaries)
	}

	calls, err := s.ListToolCalls(c.app.ctx, store.ToolCallFilter{Tool: c.Tool, Limit: c.Limit})
	if err != nil {
		return fmt.Errorf("listing audit log: %w", err)
	}
	if c.JSON {
		return writeJSON(os.Stdout, calls)
	}
	return printToolCalls(os.Stdout, calls)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printToolCalls(w io.Writer, calls []store.ToolCall) error {
	if len(calls) == 0 {
		fmt.Fprintln(w, "no audited calls")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, color.CyanString("TIME\tTOOL\tTIER\tSTATUS\tDURATION\tMESSAGE"))
	for _, c := range calls {
		status := c.Status
		if status == "error" {
			status = color.RedString(status)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dms\t%s\n",
			c.CreatedAt.Local().Format(time.DateTime), c.Tool, c.Tier, status, c.DurationMS, truncate(c.Message, 60))
	}
	return tw.Flush()
}

func printSummaries(w io.Writer, summaries []store.ToolCallSummary) error {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "no audited calls")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, color.CyanString("TOOL\tCALLS\tFAILURES\tLAST CALL"))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.Tool, s.Calls, s.Failures, s.LastCall.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

type tokenCommand struct {
	app *app

	Subject string        `long:"subject" default:"mcp-client" description:"Token subject, recorded as the session owner"`
	TTL     time.Duration `long:"ttl" default:"720h" description:"Token lifetime"`
}

func (c *tokenCommand) Execute([]string) error {
	cfg, err := loadConfig(&c.app.opts)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth secret not configured (set --auth-secret or auth.jwt_secret)")
	}
	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(c.Subject, c.TTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	color.New(color.FgHiBlack).Fprintf(os.Stderr, "subject %s, expires %s\n",
		c.Subject, time.Now().Add(c.TTL).Format("Jan 02, 2006"))
	return nil
}

type versionCommand struct{}

func (versionCommand) Execute([]string) error {
	fmt.Println("plex-mcp-server", version)
	return nil
}
