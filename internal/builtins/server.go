// ABOUTME: Server pack: identity, bandwidth, resources, butler tasks, activities and logs.
// ABOUTME: Log tails are read from the server's diagnostics archive.

package builtins

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/2389/plex-mcp-server/internal/envelope"
	"github.com/2389/plex-mcp-server/internal/packs"
	"github.com/2389/plex-mcp-server/internal/plex"
	"github.com/2389/plex-mcp-server/internal/tier"
)

// ServerPack creates the server pack.
func ServerPack(mgr *plex.Manager, logger *slog.Logger) *packs.BuiltinPack {
	h := &serverHandlers{mgr: mgr, logger: logger}
	return &packs.BuiltinPack{
		ID: "builtin:server",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "server_get_info",
					Description: "Get the identity and version of the Plex server",
					InputSchema: packs.EmptySchema,
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting server info", h.Info),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "server_get_bandwidth",
					Description: "Get bandwidth statistics per device and account",
					InputSchema: packs.SchemaFor[bandwidthInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting bandwidth statistics", h.Bandwidth),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "server_get_current_resources",
					Description: "Get current CPU and memory utilization of the server",
					InputSchema: packs.EmptySchema,
					Tier:        tier.Read,
					NoCache:     true,
				},
				Handler: envelope.Wrap("getting server resources", h.Resources),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "server_get_butler_tasks",
					Description: "List scheduled maintenance tasks",
					InputSchema: packs.EmptySchema,
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting butler tasks", h.ButlerTasks),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "server_get_activities",
					Description: "List running background activities",
					InputSchema: packs.EmptySchema,
					Tier:        tier.Read,
					NoCache:     true,
				},
				Handler: envelope.Wrap("getting server activities", h.Activities),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "server_get_plex_logs",
					Description: "Get the last lines of a Plex log file",
					InputSchema: packs.SchemaFor[logsInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting Plex logs", h.Logs),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "server_run_butler_task",
					Description: "Start a maintenance task now",
					InputSchema: packs.SchemaFor[butlerInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("running butler task", h.RunButlerTask),
			},
		},
	}
}

type serverHandlers struct {
	mgr    *plex.Manager
	logger *slog.Logger
}

type bandwidthInput struct {
	Timespan string `json:"timespan,omitempty" jsonschema:"seconds, hours (default), days, weeks or months"`
}

type logsInput struct {
	NumLines   int    `json:"num_lines,omitempty" jsonschema:"number of lines to return (default 100)"`
	LogType    string `json:"log_type,omitempty" jsonschema:"server (default), scanner or transcoder"`
	SearchTerm string `json:"search_term,omitempty" jsonschema:"only lines containing this text"`
}

type butlerInput struct {
	TaskName string `json:"task_name" jsonschema:"butler task name, as listed by server_get_butler_tasks"`
}

// logFiles maps log_type values to the log file they read.
var logFiles = map[string]string{
	"server":     "Plex Media Server.log",
	"scanner":    "Plex Media Scanner.log",
	"transcoder": "Plex Transcoder Statistics.log",
}

func (h *serverHandlers) Info(ctx context.Context, _ json.RawMessage) (envelope.Envelope, error) {
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	id, err := srv.RefreshIdentity(ctx)
	if err != nil {
		return nil, err
	}
	return envelope.Success(map[string]any{
		"friendly_name":                    id.FriendlyName,
		"machine_identifier":               id.MachineIdentifier,
		"version":                          id.Version,
		"platform":                         id.Platform,
		"platform_version":                 id.PlatformVersion,
		"my_plex":                          id.MyPlex,
		"my_plex_username":                 id.MyPlexUsername,
		"my_plex_subscription":             id.MyPlexSubscription,
		"transcoder_active_video_sessions": id.TranscoderActiveVideoSessions,
		"updated_at":                       timestamp(id.UpdatedAt),
		"url":                              srv.BaseURL(),
	}), nil
}

func (h *serverHandlers) Bandwidth(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[bandwidthInput](input)
	if err != nil {
		return nil, err
	}
	timespan := orDefault(in.Timespan, "hours")
	if _, ok := plex.Timespans[timespan]; !ok {
		valid := make([]string, 0, len(plex.Timespans))
		for k := range plex.Timespans {
			valid = append(valid, k)
		}
		sort.Strings(valid)
		return nil, envelope.Invalid("Invalid timespan '%s'. Valid values are: %s", timespan, strings.Join(valid, ", "))
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	mc, err := srv.Bandwidth(ctx, timespan)
	if err != nil {
		return nil, err
	}

	devices := map[int64]plex.Device{}
	for _, d := range mc.Device {
		devices[int64(d.ID)] = d
	}
	accounts := map[int64]string{}
	for _, a := range mc.Account {
		accounts[int64(a.ID)] = a.Name
	}

	var total, lan int64
	stats := make([]map[string]any, 0, len(mc.StatisticsBandwidth))
	for _, b := range mc.StatisticsBandwidth {
		dev := devices[int64(b.DeviceID)]
		stats = append(stats, map[string]any{
			"account":         orDefault(accounts[int64(b.AccountID)], "Unknown"),
			"device_name":     orDefault(dev.Name, "Unknown"),
			"device_platform": dev.Platform,
			"bytes":           b.Bytes,
			"lan":             bool(b.LAN),
			"at":              timestamp(b.At),
		})
		total += b.Bytes
		if b.LAN {
			lan += b.Bytes
		}
	}
	return envelope.Success(map[string]any{
		"timespan":    timespan,
		"total_bytes": total,
		"lan_bytes":   lan,
		"wan_bytes":   total - lan,
		"count":       len(stats),
		"statistics":  stats,
	}), nil
}

func (h *serverHandlers) Resources(ctx context.Context, _ json.RawMessage) (envelope.Envelope, error) {
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	samples, err := srv.Resources(ctx)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, envelope.NotFound("No resource statistics available")
	}
	latest := samples[0]
	for _, s := range samples[1:] {
		if s.At > latest.At {
			latest = s
		}
	}
	return envelope.Success(map[string]any{
		"at":                         timestamp(latest.At),
		"host_cpu_utilization":       latest.HostCPUUtilization,
		"process_cpu_utilization":    latest.ProcessCPUUtilization,
		"host_memory_utilization":    latest.HostMemoryUtilization,
		"process_memory_utilization": latest.ProcessMemoryUtilization,
		"sample_count":               len(samples),
	}), nil
}

func (h *serverHandlers) ButlerTasks(ctx context.Context, _ json.RawMessage) (envelope.Envelope, error) {
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := srv.ButlerTasks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, map[string]any{
			"name":                t.Name,
			"title":               t.Title,
			"description":         t.Description,
			"enabled":             bool(t.Enabled),
			"interval_days":       t.Interval,
			"schedule_randomized": bool(t.ScheduleRandomized),
		})
	}
	return envelope.Success(map[string]any{"count": len(out), "tasks": out}), nil
}

func (h *serverHandlers) Activities(ctx context.Context, _ json.RawMessage) (envelope.Envelope, error) {
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	acts, err := srv.Activities(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(acts))
	for _, a := range acts {
		out = append(out, map[string]any{
			"uuid":        a.UUID,
			"type":        a.Type,
			"title":       a.Title,
			"subtitle":    a.Subtitle,
			"progress":    a.Progress,
			"cancellable": bool(a.Cancellable),
		})
	}
	return envelope.Success(map[string]any{"count": len(out), "activities": out}), nil
}

func (h *serverHandlers) Logs(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[logsInput](input)
	if err != nil {
		return nil, err
	}
	if in.NumLines <= 0 {
		in.NumLines = 100
	}
	logType := orDefault(strings.ToLower(in.LogType), "server")
	name, ok := logFiles[logType]
	if !ok {
		return nil, envelope.Invalid("Invalid log_type '%s'. Valid types are: server, scanner, transcoder", in.LogType)
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	files, err := srv.Logs(ctx)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(files, func(f plex.LogFile) bool { return f.Name == name || strings.HasSuffix(f.Name, "/"+name) })
	if idx < 0 {
		return nil, envelope.NotFound("Log file '%s' not found in the server's log archive", name)
	}

	var lines []string
	term := strings.ToLower(in.SearchTerm)
	for _, line := range strings.Split(strings.TrimRight(files[idx].Content, "\n"), "\n") {
		if term == "" || strings.Contains(strings.ToLower(line), term) {
			lines = append(lines, line)
		}
	}
	if len(lines) > in.NumLines {
		lines = lines[len(lines)-in.NumLines:]
	}
	if lines == nil {
		lines = []string{}
	}
	return envelope.Success(map[string]any{
		"log_type":    logType,
		"file":        name,
		"search_term": in.SearchTerm,
		"count":       len(lines),
		"lines":       lines,
	}), nil
}

func (h *serverHandlers) RunButlerTask(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[butlerInput](input)
	if err != nil {
		return nil, err
	}
	if in.TaskName == "" {
		return nil, envelope.Invalid("task_name must be provided")
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := srv.ButlerTasks(ctx)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(tasks, func(t plex.ButlerTask) bool { return strings.EqualFold(t.Name, in.TaskName) })
	if idx < 0 {
		return nil, envelope.NotFound("Butler task '%s' not found", in.TaskName)
	}
	if err := srv.RunButlerTask(ctx, tasks[idx].Name); err != nil {
		return nil, err
	}
	h.logger.Info("butler task started", "task", tasks[idx].Name)
	return envelope.Message("Butler task '%s' started", tasks[idx].Name), nil
}
