// ABOUTME: Tests for envelope constructors and the Wrap combinator.
// ABOUTME: Covers error conversion, ambiguity rendering and panic recovery.

package envelope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestMultipleCapsCandidates(t *testing.T) {
	var cands []Candidate
	for i := 0; i < 15; i++ {
		cands = append(cands, Candidate{Title: fmt.Sprintf("Alien %d", i), Type: "movie", RatingKey: int64(100 + i)})
	}
	env := Multiple("too many", 15, cands)

	assert.Equal(t, StatusMultiple, env.Status())
	assert.Equal(t, 15, env["count"])
	results := env["results"].([]map[string]any)
	assert.Len(t, results, MaxCandidates)
	assert.Equal(t, 1, results[0]["index"])
	assert.Equal(t, int64(100), results[0]["rating_key"])
	_, hasYear := results[0]["year"]
	assert.False(t, hasYear)
}

func TestWrap(t *testing.T) {
	ctx := context.Background()

	t.Run("passes success through with indentation", func(t *testing.T) {
		h := Wrap("doing things", func(context.Context, json.RawMessage) (Envelope, error) {
			return Success(map[string]any{"message": "ok", "count": 2}), nil
		})
		raw, err := h(ctx, nil)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "\n  \"count\": 2")
		m := decode(t, raw)
		assert.Equal(t, "success", m["status"])
	})

	t.Run("generic errors carry the action and cause", func(t *testing.T) {
		h := Wrap("searching for media", func(context.Context, json.RawMessage) (Envelope, error) {
			return nil, errors.New("connection refused")
		})
		raw, err := h(ctx, nil)
		require.NoError(t, err)
		m := decode(t, raw)
		assert.Equal(t, "error", m["status"])
		assert.Equal(t, "Error searching for media: connection refused", m["message"])
	})

	t.Run("not found and input errors keep their message", func(t *testing.T) {
		for _, e := range []error{
			NotFound("Library '%s' not found", "Anime"),
			Invalid("Either media_id or media_title must be provided"),
		} {
			h := Wrap("x", func(context.Context, json.RawMessage) (Envelope, error) { return nil, e })
			raw, _ := h(ctx, nil)
			m := decode(t, raw)
			assert.Equal(t, "error", m["status"])
			assert.Equal(t, e.Error(), m["message"])
		}
	})

	t.Run("ambiguity becomes multiple_results", func(t *testing.T) {
		h := Wrap("x", func(context.Context, json.RawMessage) (Envelope, error) {
			return nil, fmt.Errorf("lookup: %w", &AmbiguousError{
				Message: "Multiple items found matching 'Alien'.",
				Count:   3,
				Candidates: []Candidate{
					{Title: "Alien", Type: "movie", RatingKey: 1, Year: 1979},
					{Title: "Aliens", Type: "movie", RatingKey: 2, Year: 1986},
					{Title: "Alien 3", Type: "movie", RatingKey: 3, Year: 1992},
				},
			})
		})
		raw, _ := h(ctx, nil)
		m := decode(t, raw)
		assert.Equal(t, "multiple_results", m["status"])
		assert.EqualValues(t, 3, m["count"])
		results := m["results"].([]any)
		require.Len(t, results, 3)
		for _, r := range results {
			item := r.(map[string]any)
			assert.NotEmpty(t, item["title"])
			assert.Equal(t, "movie", item["type"])
			assert.IsType(t, float64(0), item["rating_key"])
		}
	})

	t.Run("panics are recovered", func(t *testing.T) {
		h := Wrap("exploding", func(context.Context, json.RawMessage) (Envelope, error) {
			panic("boom")
		})
		raw, err := h(ctx, nil)
		require.NoError(t, err)
		m := decode(t, raw)
		assert.Equal(t, "error", m["status"])
		assert.Equal(t, "Error exploding: boom", m["message"])
	})

	t.Run("nil envelope is an error", func(t *testing.T) {
		h := Wrap("x", func(context.Context, json.RawMessage) (Envelope, error) { return nil, nil })
		raw, _ := h(ctx, nil)
		assert.Equal(t, StatusError, StatusOf(raw))
	})
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, "success", StatusOf(json.RawMessage(`{"status":"success"}`)))
	assert.Equal(t, "", StatusOf(json.RawMessage(`[1,2]`)))
}
