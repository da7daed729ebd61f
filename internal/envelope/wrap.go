// ABOUTME: Wrap, the single combinator applied to every tool handler.
// ABOUTME: Converts errors and panics into envelopes so handlers always return JSON.

package envelope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Handler builds a reply envelope from raw tool arguments.
type Handler func(ctx context.Context, input json.RawMessage) (Envelope, error)

// Wrap turns h into a function that always yields a rendered envelope and a
// nil error. action names the operation in generic error messages, as in
// "Error searching for media: <cause>".
func Wrap(action string, h Handler) func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	return func(ctx context.Context, input json.RawMessage) (out json.RawMessage, err error) {
		defer func() {
			if r := recover(); r != nil {
				out = mustMarshal(Errorf("Error %s: %v", action, r))
			}
		}()

		env, herr := h(ctx, input)
		if herr != nil {
			env = FromError(action, herr)
		}
		if env == nil {
			env = Errorf("Error %s: empty reply", action)
		}
		return mustMarshal(env), nil
	}
}

// FromError converts a handler error into its envelope.
func FromError(action string, err error) Envelope {
	var ambiguous *AmbiguousError
	var notFound *NotFoundError
	var invalid *InputError
	switch {
	case errors.As(err, &ambiguous):
		return Multiple(ambiguous.Message, ambiguous.Count, ambiguous.Candidates)
	case errors.As(err, &notFound):
		return Errorf("%s", notFound.Message)
	case errors.As(err, &invalid):
		return Errorf("%s", invalid.Message)
	default:
		return Errorf("Error %s: %v", action, err)
	}
}

func mustMarshal(env Envelope) json.RawMessage {
	data, err := env.Marshal()
	if err != nil {
		data, _ = json.Marshal(map[string]string{
			"status":  StatusError,
			"message": fmt.Sprintf("encoding reply: %v", err),
		})
	}
	return data
}
