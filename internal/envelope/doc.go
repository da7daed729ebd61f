// Package envelope defines the JSON reply every tool returns and the one
// combinator that turns tool handlers into envelope-producing handlers.
//
// Every reply is an object with a "status" of success, error,
// multiple_results or no_changes. Wrap converts handler errors and panics into
// error envelopes and AmbiguousError into multiple_results, so a tool never
// surfaces a Go error to the protocol layer.
package envelope
