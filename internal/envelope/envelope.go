// ABOUTME: JSON reply envelope (status + payload) and its constructors.
// ABOUTME: Candidate lists for ambiguous lookups are capped at MaxCandidates.

package envelope

import (
	"encoding/json"
	"fmt"
)

// Status values.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusMultiple = "multiple_results"
	StatusNoChange = "no_changes"
)

// MaxCandidates bounds the results list of a multiple_results reply.
const MaxCandidates = 10

// Envelope is a tool reply. The status key is always present.
type Envelope map[string]any

// Success builds a success envelope from payload fields.
func Success(fields map[string]any) Envelope {
	env := Envelope{"status": StatusSuccess}
	for k, v := range fields {
		env[k] = v
	}
	return env
}

// Message builds a success envelope carrying only a message.
func Message(format string, args ...any) Envelope {
	return Envelope{"status": StatusSuccess, "message": fmt.Sprintf(format, args...)}
}

// Errorf builds an error envelope.
func Errorf(format string, args ...any) Envelope {
	return Envelope{"status": StatusError, "message": fmt.Sprintf(format, args...)}
}

// NoChanges builds a no_changes envelope.
func NoChanges(message string) Envelope {
	return Envelope{"status": StatusNoChange, "message": message}
}

// Multiple builds a multiple_results envelope. count is the total number of
// matches; candidates beyond MaxCandidates are dropped.
func Multiple(message string, count int, candidates []Candidate) Envelope {
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	results := make([]map[string]any, 0, len(candidates))
	for i, c := range candidates {
		results = append(results, c.fields(i+1))
	}
	return Envelope{
		"status":  StatusMultiple,
		"message": message,
		"count":   count,
		"results": results,
	}
}

// Status returns the status of an envelope.
func (e Envelope) Status() string {
	s, _ := e["status"].(string)
	return s
}

// Marshal renders the envelope with two-space indentation.
func (e Envelope) Marshal() (json.RawMessage, error) {
	return json.MarshalIndent(e, "", "  ")
}

// StatusOf reads the status of a rendered envelope. It returns "" when raw is
// not an envelope.
func StatusOf(raw json.RawMessage) string {
	status, _ := Summarize(raw)
	return status
}

// Summarize reads the status and message of a rendered envelope.
func Summarize(raw json.RawMessage) (status, message string) {
	var probe struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", ""
	}
	return probe.Status, probe.Message
}

// Candidate is one entry of a disambiguation list.
type Candidate struct {
	Title     string
	Type      string
	RatingKey int64
	Year      int
	// Extra holds additional identifying fields, such as show/season/episode
	// for episodes or item_count for playlists.
	Extra map[string]any
}

func (c Candidate) fields(index int) map[string]any {
	m := map[string]any{
		"index":      index,
		"title":      c.Title,
		"type":       c.Type,
		"rating_key": c.RatingKey,
	}
	if c.Year != 0 {
		m["year"] = c.Year
	}
	for k, v := range c.Extra {
		m[k] = v
	}
	return m
}
