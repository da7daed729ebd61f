// ABOUTME: Tool call audit entity and store methods
// ABOUTME: Records which mutating tool ran with which arguments and how it ended

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// tsLayout keeps a fixed width so timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// ToolCall is a single audited tool invocation.
type ToolCall struct {
	ID         string          // UUID v4
	Tool       string          // registered tool name
	Tier       string          // tier required by the tool
	Arguments  json.RawMessage // arguments as received
	Status     string          // envelope status, or "error" for failed dispatch
	Message    string          // envelope message, if any
	DurationMS int64
	SessionID  string // MCP session the call arrived on, empty for stdio
	CreatedAt  time.Time
}

// ToolCallFilter specifies filtering options for listing tool calls.
type ToolCallFilter struct {
	Tool  string     // exact tool name
	Since *time.Time // calls at or after this time
	Limit int        // max results (default 100, max 1000)
}

// ToolCallSummary aggregates audited calls per tool.
type ToolCallSummary struct {
	Tool     string
	Calls    int
	Failures int
	LastCall time.Time
}

// RecordToolCall appends a tool call to the audit log.
// Generates ID and CreatedAt if not set.
func (s *SQLiteStore) RecordToolCall(ctx context.Context, c *ToolCall) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	args := string(c.Arguments)
	if args == "" {
		args = "{}"
	}

	query := `
		INSERT INTO tool_calls (call_id, tool, tier, arguments_json, status, message, duration_ms, ts, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.Tool,
		c.Tier,
		args,
		c.Status,
		nullString(c.Message),
		c.DurationMS,
		c.CreatedAt.UTC().Format(tsLayout),
		nullString(c.SessionID),
	)
	if err != nil {
		return fmt.Errorf("inserting tool call: %w", err)
	}

	s.logger.Debug("recorded tool call",
		"id", c.ID,
		"tool", c.Tool,
		"status", c.Status,
	)
	return nil
}

// normalizeLimit applies default (100) and cap (1000) to a list limit.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const toolCallQuery = `
	SELECT call_id, tool, tier, arguments_json, status, message, duration_ms, ts, session_id
	FROM tool_calls
	WHERE (? IS NULL OR tool = ?)
	  AND (? IS NULL OR ts >= ?)
	ORDER BY ts DESC
	LIMIT ?
`

// scanToolCall scans a row into a ToolCall.
func scanToolCall(scanner interface{ Scan(dest ...any) error }) (ToolCall, error) {
	var c ToolCall
	var args, ts string
	var message, session *string

	if err := scanner.Scan(&c.ID, &c.Tool, &c.Tier, &args, &c.Status, &message, &c.DurationMS, &ts, &session); err != nil {
		return c, fmt.Errorf("scanning tool call: %w", err)
	}
	c.Arguments = json.RawMessage(args)
	if message != nil {
		c.Message = *message
	}
	if session != nil {
		c.SessionID = *session
	}
	var err error
	c.CreatedAt, err = time.Parse(tsLayout, ts)
	if err != nil {
		return c, fmt.Errorf("parsing timestamp: %w", err)
	}
	return c, nil
}

// ListToolCalls returns audited calls matching the filter, newest first.
func (s *SQLiteStore) ListToolCalls(ctx context.Context, f ToolCallFilter) ([]ToolCall, error) {
	var since *string
	if f.Since != nil {
		str := f.Since.UTC().Format(tsLayout)
		since = &str
	}

	rows, err := s.db.QueryContext(ctx, toolCallQuery,
		nullString(f.Tool), nullString(f.Tool),
		since, since,
		normalizeLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying tool calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	calls := []ToolCall{}
	for rows.Next() {
		c, err := scanToolCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool calls: %w", err)
	}
	return calls, nil
}

// Summarize returns per-tool call counts ordered by tool name.
func (s *SQLiteStore) Summarize(ctx context.Context) ([]ToolCallSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tool, COUNT(*), SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), MAX(ts)
		FROM tool_calls
		GROUP BY tool
		ORDER BY tool
	`)
	if err != nil {
		return nil, fmt.Errorf("summarizing tool calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ToolCallSummary
	for rows.Next() {
		var sum ToolCallSummary
		var last string
		if err := rows.Scan(&sum.Tool, &sum.Calls, &sum.Failures, &last); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		sum.LastCall, err = time.Parse(tsLayout, last)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
